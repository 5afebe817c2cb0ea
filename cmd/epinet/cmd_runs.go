package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/nvandessel/epinet/internal/backup"
	"github.com/nvandessel/epinet/internal/constants"
	"github.com/nvandessel/epinet/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List and inspect stored runs",
		Long: `Work with the SQLite run store written by "simulate --db".

Examples:
  epinet runs list
  epinet runs show 6f1c0a2e-...
  epinet runs delete 6f1c0a2e-... --db sim/runs.db
  epinet runs export --out runs.epinet
  epinet runs import runs.epinet --db other/runs.db`,
	}
	cmd.PersistentFlags().String("db", constants.DefaultDatabase, "Run store path")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
		newRunsExportCmd(),
		newRunsImportCmd(),
		newRunsVerifyCmd(),
	)
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			st, err := openExistingStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(runs) > limit {
				runs = runs[:limit]
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return json.NewEncoder(out).Encode(map[string]any{"runs": runs, "count": len(runs)})
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tPOLICY\tN\tBETA\tGAMMA\tSTEPS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%g\t%g\t%d/%d\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.Policy,
					r.Population, r.Transmission, r.Recovery, max(r.Recorded-1, 0), r.Steps)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 0, "Show at most this many runs (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a run and its recorded series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			st, err := openExistingStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			series, err := st.Counts(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{"run": run, "series": series})
			}
			fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
			fmt.Fprintf(out, "  policy=%s N=%d edges=%d beta=%g gamma=%g steps=%d seed=%d\n",
				run.Policy, run.Population, run.Edges, run.Transmission, run.Recovery, run.Steps, run.Seed)
			fmt.Fprintln(out, "step,S,I,R")
			for i, c := range series {
				fmt.Fprintf(out, "%d,%d,%d,%d\n", i, c.S, c.I, c.R)
			}
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a run and its series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			st, err := openExistingStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Write runs to an archive file",
		Long:  "Write the named runs, or every run, with their series to a checksummed archive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				return errors.New("--out is required")
			}
			st, err := openExistingStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			archive, err := backup.Export(cmd.Context(), st, args)
			if err != nil {
				return err
			}
			header, err := backup.Write(outPath, archive)
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"path": outPath, "header": header})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs (%d steps) to %s\n", header.RunCount, header.StepCount, outPath)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Archive path")
	return cmd
}

func newRunsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive>",
		Short: "Add the runs of an archive to the store",
		Long:  "Add archived runs to the run store, creating it if needed. Runs already present are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := backup.Read(args[0])
			if err != nil {
				return err
			}
			dbPath, _ := cmd.Flags().GetString("db")
			st, err := store.Open(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := backup.Import(cmd.Context(), st, archive)
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs, skipped %d already present\n", len(res.Imported), len(res.Skipped))
			return nil
		},
	}
}

func newRunsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check an archive's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, err := backup.Verify(args[0])
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(header)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d runs, created %s\n",
				args[0], header.RunCount, header.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
