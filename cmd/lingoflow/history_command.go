package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lingoflow/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded pipeline outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, err := history.New(cfg.HistoryFile)
			if err != nil {
				return err
			}
			records, err := ledger.Records()
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				if failedOnly && rec.Status != history.StatusUploadFailed {
					continue
				}
				rows = append(rows, []string{
					rec.ID,
					rec.Status,
					truncateCell(rec.Reason, 40),
					truncateCell(rec.Title, 40),
					strconv.Itoa(rec.Attempts),
					rec.RecordedAt,
				})
			}
			if limit > 0 && len(rows) > limit {
				rows = rows[len(rows)-limit:]
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No history records.")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Reason", "Title", "Attempts", "Recorded"},
				rows, 4))
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only upload failures (retry-eligible)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show only the most recent N records")
	return cmd
}

func truncateCell(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
