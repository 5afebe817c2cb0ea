package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/epinet/internal/constants"
	"github.com/nvandessel/epinet/internal/meanfield"
	"github.com/nvandessel/epinet/internal/output"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/store"
	"github.com/spf13/cobra"
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [actual] [simulated]",
		Short: "Per-step error between two S,I,R series",
		Long: `Compare two series step by step and report actual minus simulated for
every compartment, with root-mean-square and maximum absolute error.

Series are read from CSV files, or from Arrow streams when the file ends in
.arrow. With --run the simulated series comes from the run store instead.

Examples:
  epinet compare
  epinet compare sim/actual.csv sim/simulated.csv --out sim/error.csv
  epinet compare sim/actual.csv --run 6f1c... --db sim/runs.db`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actualPath := constants.DefaultMeanFieldFile
			simulatedPath := constants.DefaultSeriesFile
			if len(args) > 0 {
				actualPath = args[0]
			}
			if len(args) > 1 {
				simulatedPath = args[1]
			}

			actual, err := loadSeries(actualPath)
			if err != nil {
				return err
			}

			var simulated []meanfield.Point
			if runID, _ := cmd.Flags().GetString("run"); runID != "" {
				dbPath, _ := cmd.Flags().GetString("db")
				simulated, err = storedSeries(cmd.Context(), dbPath, runID)
				simulatedPath = "run " + runID
			} else {
				simulated, err = loadSeries(simulatedPath)
			}
			if err != nil {
				return err
			}

			diff, err := meanfield.Compare(actual, simulated)
			if err != nil {
				return fmt.Errorf("%s vs %s: %w", actualPath, simulatedPath, err)
			}
			stats := meanfield.Summarize(diff)

			precision, _ := cmd.Flags().GetInt("precision")
			if path, _ := cmd.Flags().GetString("out"); path != "" {
				if err := output.SavePoints(path, diff, precision); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"actual":    actualPath,
					"simulated": simulatedPath,
					"steps":     len(diff) - 1,
					"error":     stats,
				})
			}
			fmt.Fprintf(out, "%s vs %s, %d steps\n", actualPath, simulatedPath, len(diff)-1)
			fmt.Fprintf(out, "rmse     S=%.3f I=%.3f R=%.3f\n", stats.RMSE.S, stats.RMSE.I, stats.RMSE.R)
			fmt.Fprintf(out, "max |e|  S=%.3f I=%.3f R=%.3f\n", stats.MaxAbs.S, stats.MaxAbs.I, stats.MaxAbs.R)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Write the per-step difference series here")
	cmd.Flags().Int("precision", 3, "Decimals written per value with --out")
	cmd.Flags().String("run", "", "Take the simulated series from this stored run")
	cmd.Flags().String("db", constants.DefaultDatabase, "Run store used with --run")
	return cmd
}

// loadSeries reads a CSV series, or an Arrow stream for .arrow files.
func loadSeries(path string) ([]meanfield.Point, error) {
	if !strings.EqualFold(filepath.Ext(path), ".arrow") {
		return output.LoadPoints(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.IO(path, err)
	}
	defer f.Close()
	series, err := output.ReadArrowSeries(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return meanfield.FromSeries(series), nil
}

func storedSeries(ctx context.Context, dbPath, runID string) ([]meanfield.Point, error) {
	st, err := openExistingStore(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	series, err := st.Counts(ctx, runID)
	if err != nil {
		return nil, err
	}
	return meanfield.FromSeries(series), nil
}

// openExistingStore opens a run store that must already exist.
func openExistingStore(ctx context.Context, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, simerr.IO(path, err)
	}
	return store.Open(ctx, path)
}
