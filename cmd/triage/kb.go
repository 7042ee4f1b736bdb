package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/knowledge"
	"github.com/offline-triage-engine/internal/setup"
)

func newKBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Export, import and publish knowledge bases",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the knowledge base currently served by the configured source to a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, closers, err := setup.NewProvider(a.cfg.KnowledgeBase, a.logger)
			if err != nil {
				return err
			}
			defer closeAll(closers)

			loader := knowledge.NewLoader(provider, a.cfg.KnowledgeBase.LoadTimeout, a.logger)
			kb, err := loader.Ensure(cmd.Context())
			if err != nil {
				return err
			}
			if err := knowledge.WriteFile(args[0], kb); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries from %s to %s\n", kb.Size(), kb.Source, args[0])
			return nil
		},
	})

	var sqlitePath string
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a YAML or JSON knowledge base into the SQLite knowledge store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := knowledge.NewFileProvider(args[0]).Load(cmd.Context())
			if err != nil {
				return err
			}
			dest := sqlitePath
			if dest == "" {
				dest = a.cfg.KnowledgeBase.SQLitePath
			}
			if err := knowledge.ImportSQLiteFile(cmd.Context(), dest, kb); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries into %s\n", kb.Size(), dest)
			return nil
		},
	}
	importCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "destination database (default: knowledge_base.sqlite_path)")
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "publish <file>",
		Short: "Publish a YAML or JSON knowledge base as the shared Redis snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := knowledge.NewFileProvider(args[0]).Load(cmd.Context())
			if err != nil {
				return err
			}
			provider, err := knowledge.NewRedisProviderFromURL(a.cfg.KnowledgeBase.RedisURL, a.cfg.KnowledgeBase.RedisKey)
			if err != nil {
				return err
			}
			defer provider.Close()

			if err := provider.Publish(cmd.Context(), kb); err != nil {
				return domain.WrapTriageError(domain.ErrCodeStorage, "failed to publish knowledge base", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d entries to %s\n", kb.Size(), provider.Name())
			return nil
		},
	})

	return cmd
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
