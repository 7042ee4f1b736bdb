package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/offline-triage-engine/internal/records"
)

func newRecordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Export and import stored health records",
	}

	openStore := func() (*records.SQLiteStore, error) {
		return records.NewSQLiteStore(a.cfg.Records.DBPath)
	}

	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write every health record as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return store.ExportJSON(cmd.Context(), w)
		},
	}
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import records from a JSON export, skipping IDs that already exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records, skipped %d\n", imported, skipped)
			return nil
		},
	}

	cmd.AddCommand(exportCmd, importCmd)
	return cmd
}
