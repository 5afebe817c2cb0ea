package main

import (
	"github.com/nvandessel/epinet/internal/constants"
	"github.com/nvandessel/epinet/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve epinet tools over MCP on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout.

Tools: epinet_grow, epinet_simulate, epinet_meanfield and epinet_runs.
Stored run series are exposed as epinet://runs/{id}/series resources.
Omitted tool arguments take their values from the parameter file.

Logs go to stderr so they never mix with the protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := resolveParams(cmd)
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			logger := newLogger(cmd, p)

			dbPath, _ := cmd.Flags().GetString("db")
			auditPath, _ := cmd.Flags().GetString("audit")

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			server, err := mcp.NewServer(ctx, &mcp.Config{
				Name:      constants.ServerName,
				Version:   version,
				Base:      p,
				StorePath: dbPath,
				AuditPath: auditPath,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			return server.Run(ctx)
		},
	}
	cmd.Flags().String("db", constants.DefaultDatabase, "Run store for epinet_simulate and epinet_runs (empty disables)")
	cmd.Flags().String("audit", constants.DefaultAuditFile, "Tool call audit log (empty disables)")
	return cmd
}
