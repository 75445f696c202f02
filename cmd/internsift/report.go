package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/internsift/internal/app"
	"github.com/FranksOps/internsift/internal/report"
	"github.com/FranksOps/internsift/internal/storage"
	"github.com/spf13/cobra"
)

func newReportCmd(c *cli) *cobra.Command {
	var (
		format  string
		src     string
		outcome string
		runID   string
		since   time.Duration
		blocked bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise stored fetch records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := app.OpenStorage(cmd.Context(), c.cfg.Storage)
			if err != nil {
				return err
			}
			if b == nil {
				return errors.New("no storage backend configured (set storage.backend)")
			}
			defer b.Close()

			filter := storage.Filter{
				Source:  src,
				Outcome: outcome,
				RunID:   runID,
				Limit:   limit,
			}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}
			if cmd.Flags().Changed("blocked") {
				filter.DetectedBot = &blocked
			}

			records, err := b.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query fetch records: %w", err)
			}
			return report.Write(cmd.OutOrStdout(), format, report.GenerateSummary(records))
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&format, "format", "f", "text", "output format: text, json or html")
	fl.StringVar(&src, "source", "", "only records from this source")
	fl.StringVar(&outcome, "outcome", "", "only records with this outcome")
	fl.StringVar(&runID, "run", "", "only records from this run ID")
	fl.DurationVar(&since, "since", 0, "only records newer than this (e.g. 24h)")
	fl.BoolVar(&blocked, "blocked", false, "only records with (true) or without (false) bot detection")
	fl.IntVar(&limit, "limit", 0, "maximum records to summarise, newest first")
	return cmd
}
