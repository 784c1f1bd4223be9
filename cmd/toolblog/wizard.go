package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chenjy16/webtools-sub001/internal/config"
)

// providerMeta describes a provider option for the wizard.
type providerMeta struct {
	Name         string
	NeedsKey     bool
	EnvVar       string
	APIBase      string
	DefaultModel string
}

var knownProviders = []providerMeta{
	{Name: "ollama", APIBase: "http://localhost:11434", DefaultModel: "llama3.1:8b"},
	{Name: "openai", NeedsKey: true, EnvVar: "OPENAI_API_KEY", APIBase: "https://api.openai.com/v1", DefaultModel: "gpt-4o-mini"},
	{Name: "claude", NeedsKey: true, EnvVar: "ANTHROPIC_API_KEY", APIBase: "https://api.anthropic.com", DefaultModel: "claude-sonnet-4-20250514"},
	{Name: "deepseek", NeedsKey: true, EnvVar: "DEEPSEEK_API_KEY", APIBase: "https://api.deepseek.com/v1", DefaultModel: "deepseek-chat"},
	{Name: "groq", NeedsKey: true, EnvVar: "GROQ_API_KEY", APIBase: "https://api.groq.com/openai/v1", DefaultModel: "llama-3.3-70b-versatile"},
}

// runWizard asks for the data directory, the analysis provider and the
// front ends to enable, filling cfg in place.
func runWizard(in io.Reader, out io.Writer, cfg *config.Config) error {
	reader := bufio.NewReader(in)
	prompt := func(def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, " [%s]: ", def)
		} else {
			fmt.Fprint(out, ": ")
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" {
			return def, nil
		}
		return s, nil
	}
	yes := func(def bool) (bool, error) {
		d := "n"
		if def {
			d = "y"
		}
		ans, err := prompt(d)
		if err != nil {
			return false, err
		}
		return strings.HasPrefix(strings.ToLower(ans), "y"), nil
	}

	fmt.Fprintln(out, "\n--- Step 1: Data directory ---")
	fmt.Fprint(out, "Directory for the database and browser profile")
	dir, err := prompt(cfg.General.DataDir)
	if err != nil {
		return err
	}
	cfg.General.DataDir = dir
	cfg.Store.DBPath = strings.TrimRight(dir, "/") + "/toolblog.db"

	fmt.Fprintln(out, "\n--- Step 2: Analysis provider ---")
	for i, p := range knownProviders {
		fmt.Fprintf(out, "  %d) %s", i+1, p.Name)
		if p.NeedsKey {
			fmt.Fprintf(out, " (set %s)", p.EnvVar)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Choose provider (1-%d)", len(knownProviders))
	choice, err := prompt("1")
	if err != nil {
		return err
	}
	var idx int
	if n, _ := fmt.Sscanf(choice, "%d", &idx); n != 1 || idx < 1 || idx > len(knownProviders) {
		idx = 1
	}
	prov := knownProviders[idx-1]
	pc := config.ProviderConfig{
		Enabled:      true,
		APIBase:      prov.APIBase,
		DefaultModel: prov.DefaultModel,
	}
	if prov.NeedsKey {
		fmt.Fprintf(out, "API key: paste key or env var (e.g. ${%s})", prov.EnvVar)
		key, err := prompt("${" + prov.EnvVar + "}")
		if err != nil {
			return err
		}
		pc.APIKey = key
	}
	cfg.Providers = map[string]config.ProviderConfig{prov.Name: pc}
	cfg.General.DefaultProvider = prov.Name
	cfg.General.FailoverChain = nil

	fmt.Fprintln(out, "\n--- Step 3: Page fetching ---")
	fmt.Fprint(out, "Render pages in headless Chrome instead of plain HTTP? (y/n)")
	useBrowser, err := yes(cfg.Analysis.FetchMode == "browser")
	if err != nil {
		return err
	}
	if useBrowser {
		cfg.Analysis.FetchMode = "browser"
	} else {
		cfg.Analysis.FetchMode = "http"
	}

	fmt.Fprintln(out, "\n--- Step 4: Front ends ---")
	fmt.Fprint(out, "Enable the web API? (y/n)")
	if cfg.Channels.Web.Enabled, err = yes(cfg.Channels.Web.Enabled); err != nil {
		return err
	}
	fmt.Fprint(out, "Enable the Telegram bot? (y/n)")
	if cfg.Channels.Telegram.Enabled, err = yes(cfg.Channels.Telegram.Enabled); err != nil {
		return err
	}
	if cfg.Channels.Telegram.Enabled {
		fmt.Fprint(out, "Telegram bot token (from @BotFather)")
		tok, err := prompt("${TELEGRAM_BOT_TOKEN}")
		if err != nil {
			return err
		}
		cfg.Channels.Telegram.Token = tok
	}

	fmt.Fprintln(out, "\nNext: run 'toolblog chat' for the terminal, or 'toolblog serve' for web and Telegram.")
	return nil
}
