package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/chenjy16/webtools-sub001/internal/config"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "blog.tool.serve"
	systemdUnit  = "toolblog.service"
)

// serviceFile is one generated service definition.
type serviceFile struct {
	Path    string
	Content string
	Hints   []string
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run 'toolblog serve' as a user service (launchd/systemd)",
	}

	var dryRun bool
	install := &cobra.Command{
		Use:   "install",
		Short: "Write the service definition for this user",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			sf, err := buildServiceFile(runtime.GOOS, home, execPath, resolveConfigPath())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "# %s\n%s\n", sf.Path, sf.Content)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(sf.Path), 0o755); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(config.DefaultConfigDir(), "logs"), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(sf.Path, []byte(sf.Content), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "Service installed: %s\n", sf.Path)
			for _, h := range sf.Hints {
				fmt.Fprintln(out, h)
			}
			return nil
		},
	}
	install.Flags().BoolVar(&dryRun, "dry-run", false, "print the definition instead of writing it")
	cmd.AddCommand(install)

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the service definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path, err := servicePath(runtime.GOOS, home)
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove service definition: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service uninstalled: %s\n", path)
			return nil
		},
	})
	return cmd
}

func servicePath(goos, home string) (string, error) {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist"), nil
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", systemdUnit), nil
	}
	return "", fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", goos)
}

// buildServiceFile renders the launchd plist or systemd unit that runs
// execPath serve with cfgPath.
func buildServiceFile(goos, home, execPath, cfgPath string) (*serviceFile, error) {
	path, err := servicePath(goos, home)
	if err != nil {
		return nil, err
	}
	logDir := filepath.Join(home, ".toolblog", "logs")
	r := strings.NewReplacer(
		"{{EXEC}}", execPath,
		"{{CONFIG}}", cfgPath,
		"{{LABEL}}", launchdLabel,
		"{{LOG}}", filepath.Join(logDir, "toolblog.log"),
		"{{ERR_LOG}}", filepath.Join(logDir, "toolblog-error.log"),
	)

	if goos == "darwin" {
		return &serviceFile{
			Path:    path,
			Content: r.Replace(launchdTemplate),
			Hints: []string{
				"To start: launchctl load " + path,
				"To stop:  launchctl unload " + path,
			},
		}, nil
	}
	name := strings.TrimSuffix(systemdUnit, ".service")
	return &serviceFile{
		Path:    path,
		Content: r.Replace(systemdTemplate),
		Hints: []string{
			"To start:  systemctl --user start " + name,
			"To enable: systemctl --user enable " + name,
			"To stop:   systemctl --user stop " + name,
		},
	}, nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=tool.blog web API and Telegram bot
After=network-online.target

[Service]
Type=simple
ExecStart={{EXEC}} serve --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
