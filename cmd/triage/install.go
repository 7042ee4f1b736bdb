package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offline-triage-engine/internal/setup"
)

func newInstallCmd(a *app) *cobra.Command {
	var opts setup.InstallOptions

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register the MCP tool server with a desktop client",
		Long: `Adds an mcpServers entry that runs "triage mcp" to the client config
file. The --config flag, when given, is passed through to the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TriageConfig = a.configFile
			entry, err := setup.Install(opts)
			if err != nil {
				return err
			}
			a.logger.WithField("command", entry.Command).Info("MCP server registered")

			status, err := setup.Inspect(opts.ConfigPath, opts.ServerName)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "client-config", "", "client config file (default: desktop client location)")
	cmd.Flags().StringVar(&opts.ServerName, "name", setup.DefaultServerName, "server entry name")
	cmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "triage binary (default: this executable)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "data directory exported to the server")
	return cmd
}

func newUninstallCmd(a *app) *cobra.Command {
	var clientConfig, name string

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the MCP tool server from a desktop client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := setup.Uninstall(clientConfig, name)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Server %q was not configured\n", name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed server %q\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientConfig, "client-config", "", "client config file (default: desktop client location)")
	cmd.Flags().StringVar(&name, "name", setup.DefaultServerName, "server entry name")
	return cmd
}
