package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chenjy16/webtools-sub001/internal/config"
)

// configCmd reads and edits config.json in place. Values are addressed by
// dotted paths such as games.snake.width.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit config.json",
	}
	cmd.AddCommand(configGetCmd(), configSetCmd(), configListCmd(), configCheckCmd(), configPathCmd())
	return cmd
}

// readConfig loads the config file without installing the configured
// logger, so these subcommands never write to the log file.
func readConfig() (*config.Config, string, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

func configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <path>",
		Short:   "Print one value, secrets masked",
		Example: "  toolblog config get tools.qr.size",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := readConfig()
			if err != nil {
				return err
			}
			v, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), highlight(string(out), "json"))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <path> <value>",
		Short:   "Change one value and save the file",
		Example: "  toolblog config set analysis.fetchMode browser\n  toolblog config set general.failoverChain '[\"ollama\",\"groq\"]'",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := readConfig()
			if err != nil {
				return err
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return err
			}
			// SetByPath keeps the struct decodable; ranges and references
			// still need checking before anything reaches disk.
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "key", args[0], "file", path)
			return nil
		},
	}
}

func configListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every leaf value, secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := readConfig()
			if err != nil {
				return err
			}
			leaves := config.ListPaths(config.Sanitize(cfg))
			rows := make([][]string, 0, len(leaves))
			for _, k := range sortedKeys(leaves) {
				rows = append(rows, []string{k, fmt.Sprint(leaves[k])})
			}
			return printTable(cmd.OutOrStdout(), []string{"Path", "Value"}, rows)
		},
	}
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Parse and validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := readConfig()
			if err != nil {
				return err
			}
			printPass("config", path)
			return nil
		},
	}
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}
