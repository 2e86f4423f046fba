package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/omegac/internal/report"
	"github.com/banshee-data/omegac/internal/storage/sqlite"
)

func newReportCommand() *cobra.Command {
	var dbPath, runID, outDir string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write histograms and a summary of a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID == "" {
				if runID, err = store.LatestRunID(ctx); err != nil {
					return err
				}
			}
			cands, err := store.ListCandidates(ctx, runID)
			if err != nil {
				return err
			}
			gens, err := store.ListGenerated(ctx, runID)
			if err != nil {
				return err
			}

			h, s := report.Build(runID, cands, gens)
			if err := report.Write(outDir, h, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d candidates (%d matched), %d generated, report in %s\n",
				runID, s.Candidates, s.Matched, s.Generated, outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "candidates.db", "Candidate database")
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (latest run when empty)")
	cmd.Flags().StringVar(&outDir, "out-dir", "report", "Output directory")
	return cmd
}
