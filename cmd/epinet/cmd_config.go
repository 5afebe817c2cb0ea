package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nvandessel/epinet/internal/config"
	"github.com/nvandessel/epinet/internal/constants"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create parameter files",
		Long: `Show, validate or create run parameters.

Parameters are read from params.yaml, or the legacy params.txt
("N beta gamma I0 [m]"), in --dir unless --config names a file.

Examples:
  epinet config show                    # Effective parameters as YAML
  epinet config show --population 500   # With flag overrides applied
  epinet config validate
  epinet config init                    # Write params.yaml with defaults`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigValidateCmd(),
		newConfigInitCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := resolveParams(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			data, err := p.YAML()
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	addModelFlags(cmd)
	addNetworkFlags(cmd)
	addRunFlags(cmd)
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the effective parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, path, err := resolveParams(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(defaults)"
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			verr := p.Validate()
			if jsonOut {
				result := map[string]any{"source": path, "valid": verr == nil}
				if verr != nil {
					result["error"] = verr.Error()
				}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
					return err
				}
				return verr
			}
			if verr != nil {
				return verr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			return nil
		},
	}
	addModelFlags(cmd)
	addNetworkFlags(cmd)
	addRunFlags(cmd)
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a parameter file with the defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := constants.DefaultParamsYAML
			if len(args) > 0 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return simerr.Config("path", "%s already exists (use --force to overwrite)", path)
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}
