package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nvandessel/epinet/internal/experiment"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an SIR epidemic over a contact network",
		Long: `Build the contact network (grow it, or read --graph-file), seed the
initial infections and advance the epidemic for the configured number of
steps. Counts are written after every step, so an interrupted run leaves a
valid prefix behind.

Examples:
  epinet simulate
  epinet simulate --population 5000 --transmission 0.1 --steps 200
  epinet simulate --policy attachment --seed 7 --db sim/runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, source, err := resolveParams(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, p)
			if source != "" {
				logger.Debug("parameters loaded", "path", source)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			report, runErr := experiment.Run(ctx, p, experiment.Env{Logger: logger})
			if runErr != nil && !report.Interrupted {
				return runErr
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if err := json.NewEncoder(out).Encode(report); err != nil {
					return err
				}
				return runErr
			}

			if report.RunID != "" {
				fmt.Fprintf(out, "run %s\n", report.RunID)
			}
			fmt.Fprintf(out, "policy %s, seed %d, %d nodes, %d edges\n",
				report.Policy, report.Seed, report.Nodes, report.Edges)
			if len(report.Series) > 0 {
				peakStep, peak := report.Series.Peak()
				fmt.Fprintf(out, "step %d: %s\n", len(report.Series)-1, report.Series.Final())
				fmt.Fprintf(out, "peak infected %d at step %d\n", peak, peakStep)
			}
			if p.Output.Series != "" {
				fmt.Fprintf(out, "series: %s\n", p.Output.Series)
			}
			if report.Interrupted {
				return errors.Join(errors.New("simulation interrupted"), runErr)
			}
			return nil
		},
	}
	addModelFlags(cmd)
	addNetworkFlags(cmd)
	addRunFlags(cmd)
	return cmd
}
