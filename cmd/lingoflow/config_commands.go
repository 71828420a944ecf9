package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lingoflow/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key (or export OPENAI_API_KEY) and fill in keywords before running.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n\n", ctx.configPath)
			fmt.Fprintf(out, "api_base: %s\n", cfg.APIBase)
			fmt.Fprintf(out, "keywords: %s\n", strings.Join(cfg.Keywords, ", "))
			fmt.Fprintf(out, "history_file: %s\n", cfg.HistoryFile)
			fmt.Fprintf(out, "workspace: %s\n", cfg.Paths.Workspace)
			fmt.Fprintf(out, "llm model: %s (base %s)\n", cfg.LLM.Model, cfg.LLM.BaseURL)
			fmt.Fprintf(out, "target language: %s\n", cfg.Processing.TargetLanguage)
			fmt.Fprintf(out, "dubbing: %v, burn subtitles: %v, resolution: %s\n",
				cfg.Processing.EnableDubbing, cfg.Processing.BurnSubtitles, cfg.Processing.Resolution)
			fmt.Fprintf(out, "poll: every %ds, timeout %ds\n", cfg.Poll.IntervalSec, cfg.Poll.TimeoutSec)
			fmt.Fprintf(out, "upload retries: %d, backoff %ds\n", cfg.Upload.RetryAttempts, cfg.Upload.RetryBackoffSec)
			return nil
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ctx.configPath)
			return nil
		},
	}
}
