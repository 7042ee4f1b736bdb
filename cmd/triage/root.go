package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offline-triage-engine/internal/config"
	"github.com/offline-triage-engine/internal/domain"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *domain.Config
	logger     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "triage",
		Short:         "Offline symptom triage and drug interaction checks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default: ./triage.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")
	flags.String("kb-source", "", "knowledge base source (baseline, file, sqlite, redis)")
	flags.String("kb-file", "", "knowledge base YAML/JSON file")
	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("knowledge_base.source", flags.Lookup("kb-source"))
	_ = a.v.BindPFlag("knowledge_base.file_path", flags.Lookup("kb-file"))

	root.AddCommand(
		newAnalyzeCmd(a),
		newInteractionsCmd(a),
		newStatusCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newKBCmd(a),
		newRecordsCmd(a),
		newInstallCmd(a),
		newUninstallCmd(a),
	)
	return root
}

func (a *app) load() error {
	manager, err := config.NewManagerWithViper(a.v, a.configFile)
	if err != nil {
		return err
	}
	if err := manager.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = manager.GetConfig()
	a.logger = config.NewLogger(a.cfg.Logging)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
