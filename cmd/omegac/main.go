// Command omegac reconstructs Ωc⁰ and Ξc⁰ candidates from strangeness-tracked
// cascades and reports on stored runs.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/omegac/internal/monitoring"
	"github.com/banshee-data/omegac/internal/reco"
	"github.com/banshee-data/omegac/internal/vertexing"
	"github.com/banshee-data/omegac/internal/version"
)

type logOptions struct {
	diag     bool
	traceLog string
}

func newRootCommand() *cobra.Command {
	lo := &logOptions{}
	var traceFile *os.File

	root := &cobra.Command{
		Use:           "omegac",
		Short:         "Charm-baryon reconstruction from tracked cascades",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var diag, trace io.Writer
			if lo.diag {
				diag = cmd.ErrOrStderr()
			}
			if lo.traceLog != "" {
				f, err := os.Create(lo.traceLog)
				if err != nil {
					return fmt.Errorf("open trace log: %w", err)
				}
				traceFile = f
				trace = f
			}
			ops := cmd.ErrOrStderr()
			reco.SetLogWriters(ops, diag, trace)
			vertexing.SetLogWriters(diag, trace)
			monitoring.SetLogWriter(ops)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if traceFile != nil {
				return traceFile.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&lo.diag, "diag", false, "Write diagnostic logs to stderr")
	root.PersistentFlags().StringVar(&lo.traceLog, "trace-log", "", "Write per-fit trace logs to this file")

	root.AddCommand(
		newProcessCommand(),
		newReportCommand(),
		newConditionsCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("omegac: %v", err)
	}
}
