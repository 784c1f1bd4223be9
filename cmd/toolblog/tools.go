package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/tool"

	"github.com/spf13/cobra"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			reg, err := registerTools(cfg, nil, nil)
			if err != nil {
				return err
			}
			defs := reg.Definitions()
			rows := make([][]string, 0, len(defs))
			for _, d := range defs {
				rows = append(rows, []string{d.Name, paramNames(d.Parameters), d.Description})
			}
			return printTable(cmd.OutOrStdout(), []string{"Tool", "Arguments", "Description"}, rows)
		},
	}
}

// paramNames lists a tool's argument names, required ones marked with *.
func paramNames(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, r := range req {
			required[r] = true
		}
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}
	names := make([]string, 0, len(props))
	for _, n := range sortedKeys(props) {
		if required[n] {
			n += "*"
		}
		names = append(names, n)
	}
	return strings.Join(names, " ")
}

func execCmd() *cobra.Command {
	var (
		file    string
		fileArg string
		raw     bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "exec <tool> [key=value ...]",
		Short: "Run one tool",
		Long: `Runs a tool with key=value arguments, or a single JSON object.
Values are decoded as JSON when possible. --file reads an argument from a file.

  toolblog exec base64 action=encode text=hello
  toolblog exec hash algorithm=sha512 --file go.sum
  toolblog exec cron expression="*/5 * * * *"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			toolArgs, err := tool.ParseArgs(args[1:])
			if err != nil {
				return err
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				toolArgs[fileArg] = string(data)
			}

			reg, err := registerTools(cfg, nil, nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			out, err := reg.Execute(ctx, args[0], toolArgs)
			if err != nil {
				return err
			}
			if !raw {
				out = highlight(out, outputLanguage(out))
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read an argument value from this file")
	cmd.Flags().StringVar(&fileArg, "file-arg", "text", "argument name that receives --file contents")
	cmd.Flags().BoolVar(&raw, "raw", false, "print output without highlighting")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "tool timeout")
	return cmd
}

func streamsCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "streams [category]",
		Short: "Browse the streaming site directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := tool.DefaultStreamDirectory()
			var list []tool.Stream
			switch {
			case search != "":
				list = dir.Search(search)
			case len(args) == 1:
				list = dir.List(args[0])
			default:
				cats := dir.Categories()
				rows := make([][]string, 0, len(cats))
				for _, c := range sortedKeys(cats) {
					rows = append(rows, []string{c, fmt.Sprint(cats[c])})
				}
				return printTable(cmd.OutOrStdout(), []string{"Category", "Sites"}, rows)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching streams.")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, s := range list {
				rows = append(rows, []string{s.Name, s.Category, s.URL, s.Description})
			}
			return printTable(cmd.OutOrStdout(), []string{"Name", "Category", "URL", "Description"}, rows)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "search names, descriptions and tags")
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
