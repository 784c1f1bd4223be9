package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/config"
	"github.com/chenjy16/webtools-sub001/internal/provider"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

// checkTally counts doctor results.
type checkTally struct {
	passed, warned, failed int
}

func (t *checkTally) pass(check, detail string) { printPass(check, detail); t.passed++ }
func (t *checkTally) warn(check, detail string) { printWarn(check, detail); t.warned++ }
func (t *checkTally) fail(check, detail string) { printFail(check, detail); t.failed++ }

func doctorCmd() *cobra.Command {
	var skipProviders bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your tool.blog installation",
		Long: `Verifies that the configuration, database, inference providers,
browser and listening ports are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("tool.blog doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			var t checkTally

			if _, err := os.Stat(cfgPath); err != nil {
				t.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'toolblog init' to create a default configuration.\n")
				return nil
			}
			t.pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				t.fail("Config validation", err.Error())
				return fmt.Errorf("config is invalid")
			}
			t.pass("Config validation", "valid")

			dbPath := config.ExpandPath(cfg.Store.DBPath)
			if err := checkDatabase(dbPath); err != nil {
				t.fail("Database", err.Error())
			} else {
				t.pass("Database", dbPath)
			}

			if skipProviders {
				t.warn("Providers", "skipped")
			} else {
				checkProviders(cmd.Context(), cfg, &t)
			}

			if cfg.Analysis.FetchMode == "browser" {
				if path, err := findChrome(); err != nil {
					t.fail("Browser", "analysis.fetchMode is browser but Chrome was not found")
				} else {
					t.pass("Browser", path)
				}
			}

			if cfg.Channels.Web.Enabled {
				addr := net.JoinHostPort(cfg.Channels.Web.Host, strconv.Itoa(cfg.Channels.Web.Port))
				if err := checkPort(addr); err != nil {
					t.warn("Web port", fmt.Sprintf("%s may be in use: %v", addr, err))
				} else {
					t.pass("Web port", addr+" available")
				}
				if cfg.Channels.Web.Auth.Enabled && len(cfg.Channels.Web.Auth.PasswordHash) != 64 {
					t.fail("Web auth", "passwordHash must be a hex SHA-256 digest")
				}
			}

			if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
				t.fail("Telegram", "enabled but no token configured")
			}

			if cfg.General.LogFile != "" {
				dir := filepath.Dir(config.ExpandPath(cfg.General.LogFile))
				if err := os.MkdirAll(dir, 0o755); err != nil {
					t.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					t.pass("Log file", cfg.General.LogFile)
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", t.passed, t.warned, t.failed)
			if t.failed > 0 {
				return fmt.Errorf("%d check(s) failed", t.failed)
			}
			if t.warned > 0 {
				fmt.Printf("\ntool.blog should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed.\n")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipProviders, "offline", false, "skip provider health checks")
	return cmd
}

// checkProviders pings every enabled provider. Analysis works without one,
// so a missing provider is a warning.
func checkProviders(ctx context.Context, cfg *config.Config, t *checkTally) {
	factory := provider.NewFactory(cfg, logger)
	names := factory.Enabled()
	if len(names) == 0 {
		t.warn("Providers", "none enabled; page analysis is unavailable")
		return
	}
	for _, name := range names {
		p, err := factory.Get(name)
		if err != nil {
			t.fail("Provider: "+name, err.Error())
			continue
		}
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = p.Healthy(hctx)
		cancel()
		if err != nil {
			t.warn("Provider: "+name, err.Error())
		} else {
			t.pass("Provider: "+name, "reachable")
		}
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")
	return nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}

func findChrome() (string, error) {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	mac := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	if _, err := os.Stat(mac); err == nil {
		return mac, nil
	}
	return "", fmt.Errorf("chrome not found")
}
