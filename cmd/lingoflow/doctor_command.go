package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lingoflow/internal/logging"
	"lingoflow/internal/pipeline"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and service reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			_, checks, err := buildRunner(cfg, logging.NewNop())
			if err != nil {
				return err
			}

			results := pipeline.RunChecks(cmd.Context(), checks)
			out := cmd.OutOrStdout()
			failures := 0
			for _, result := range results {
				if result.Err != nil {
					failures++
					fmt.Fprintf(out, "FAIL  %-12s %v\n", result.Name, result.Err)
					continue
				}
				fmt.Fprintf(out, "ok    %s\n", result.Name)
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d checks failed", failures, len(results))
			}
			fmt.Fprintln(out, "All checks passed.")
			return nil
		},
	}
}
