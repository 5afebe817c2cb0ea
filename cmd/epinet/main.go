package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nvandessel/epinet/internal/config"
	"github.com/nvandessel/epinet/internal/logging"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "epinet",
		Short: "SIR epidemics on contact networks",
		Long: `epinet grows preferential-attachment contact networks and runs
discrete-time SIR epidemics over them.

Parameters come from params.yaml (or the legacy params.txt) in the working
directory; flags override individual values. Results are written as an
S,I,R series and optionally as per-node states, an Arrow stream, a SQLite
run store and a Prometheus textfile.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(
		newVersionCmd(),
		newNetworkCmd(),
		newSimulateCmd(),
		newMeanFieldCmd(),
		newCompareCmd(),
		newConfigCmd(),
		newRunsCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// addPersistentFlags registers the flags every command understands.
func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("json", false, "Output as JSON")
	cmd.PersistentFlags().String("dir", ".", "Directory searched for params.yaml / params.txt")
	cmd.PersistentFlags().String("config", "", "Parameter file (overrides --dir lookup)")
	cmd.PersistentFlags().String("log-level", "", "Log level: warn, info, debug, trace (default from params)")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
}

// exitCode maps an error to the process exit status: 2 for bad
// parameters, 3 for network construction failures, 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, simerr.ErrConfiguration):
		return 2
	case errors.Is(err, simerr.ErrConstruction):
		return 3
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

// loadParams resolves the parameter file from --config or --dir.
func loadParams(cmd *cobra.Command) (*config.Params, string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		p, err := config.LoadFromFile(path)
		return p, path, err
	}
	dir, _ := cmd.Flags().GetString("dir")
	return config.Load(dir)
}

// newLogger builds the stderr logger. --log-level wins over the params.
func newLogger(cmd *cobra.Command, p *config.Params) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" && p != nil {
		level = p.Logging.Level
	}
	if asJSON, _ := cmd.Flags().GetBool("log-json"); asJSON {
		return logging.NewJSONLogger(level, cmd.ErrOrStderr())
	}
	return logging.NewLogger(level, cmd.ErrOrStderr())
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	stop := notifySignals(sigCh)
	go func() {
		defer stop()
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
