package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lingoflow/internal/config"
	"lingoflow/internal/dupcheck"
	"lingoflow/internal/history"
	"lingoflow/internal/logging"
	"lingoflow/internal/pipeline"
	"lingoflow/internal/services/bilibili"
	"lingoflow/internal/services/biliup"
	"lingoflow/internal/services/llm"
	"lingoflow/internal/services/videolingo"
	"lingoflow/internal/services/ytdlp"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every configured keyword once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner, checks, err := buildRunner(cfg, logger)
			if err != nil {
				return err
			}
			if !skipPreflight {
				if err := pipeline.FirstFailure(pipeline.RunChecks(runCtx, checks)); err != nil {
					return err
				}
			}
			return runner.Run(runCtx)
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip dependency and service health checks")
	return cmd
}

func buildRunner(cfg *config.Config, logger *slog.Logger) (*pipeline.Runner, []pipeline.Check, error) {
	jobs, err := videolingo.NewClient(cfg.APIBase)
	if err != nil {
		return nil, nil, fmt.Errorf("job service client: %w", err)
	}
	llmClient := llm.NewClient(llm.Config{
		APIKey:             cfg.LLM.APIKey,
		BaseURL:            cfg.LLM.BaseURL,
		Model:              cfg.LLM.Model,
		TimeoutSeconds:     cfg.LLM.TimeoutSeconds,
		JSONAttempts:       cfg.LLM.JSONAttempts,
		TotalBudgetSeconds: cfg.LLM.TotalBudgetSeconds,
	})
	discover, err := ytdlp.New(cfg.SearchBinary(), cfg.YouTube.CookiesFile,
		ytdlp.WithRegion(cfg.YouTube.SearchRegion))
	if err != nil {
		return nil, nil, fmt.Errorf("discovery client: %w", err)
	}
	uploader, err := biliup.New(cfg.UploadBinary(), cfg.Upload.RetryAttempts, cfg.Upload.RetryBackoffSec)
	if err != nil {
		return nil, nil, fmt.Errorf("uploader: %w", err)
	}
	ledger, err := history.New(cfg.HistoryFile)
	if err != nil {
		return nil, nil, fmt.Errorf("history ledger: %w", err)
	}
	judge := dupcheck.New(llmClient, bilibili.NewClient(), logger)

	runner, err := pipeline.New(cfg, logger, ledger, pipeline.Dependencies{
		Discoverer: discover,
		Judge:      judge,
		Jobs:       jobs,
		Metadata:   llmClient,
		Publisher:  uploader,
		Covers:     discover,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}

	checks := []pipeline.Check{
		{Name: cfg.SearchBinary(), Run: func(context.Context) error { return discover.CheckAvailable() }},
		{Name: cfg.UploadBinary(), Run: func(context.Context) error { return uploader.CheckAvailable() }},
		{Name: "videolingo", Run: jobs.HealthCheck},
		{Name: "llm", Run: llmClient.HealthCheck},
	}
	return runner, checks, nil
}
