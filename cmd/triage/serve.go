package main

import (
	"github.com/spf13/cobra"

	"github.com/offline-triage-engine/internal/api"
	"github.com/offline-triage-engine/internal/mcp"
	"github.com/offline-triage-engine/internal/setup"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			c, err := setup.Build(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer c.Close()

			server := api.NewServer(a.cfg.Server, version, c.Engine, c.Records, a.logger)
			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the triage tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup.Build(cmd.Context(), a.cfg, a.logger, setup.WithoutRecords())
			if err != nil {
				return err
			}
			defer c.Close()

			return mcp.NewServer(a.cfg.MCP, c.Engine, a.logger).Run(cmd.Context())
		},
	}
}
