package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/offline-triage-engine/internal/api"
	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/records"
	"github.com/offline-triage-engine/internal/service"
	"github.com/offline-triage-engine/internal/setup"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		file       string
		save       bool
		patientRef string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a JSON symptom request read from --file or stdin",
		Example: `  echo '{"symptoms":[{"code":"chest_pain","severity":9}]}' | triage analyze
  triage analyze --file request.json --save --patient p-17`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readAnalysisRequest(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			var opts []setup.BuildOption
			if !save {
				opts = append(opts, setup.WithoutRecords())
			}
			c, err := setup.Build(cmd.Context(), a.cfg, a.logger, opts...)
			if err != nil {
				return err
			}
			defer c.Close()

			result := c.Engine.Analyze(cmd.Context(), req)

			if save {
				if c.Records == nil {
					return domain.NewTriageError(domain.ErrCodeStorage, "record keeping is disabled", "set records.enabled to true")
				}
				record := records.NewRecord(uuid.NewString(), patientRef, req.Symptoms, result)
				if err := c.Records.Save(cmd.Context(), record); err != nil {
					return err
				}
				a.logger.WithField("record_id", record.ID).Info("Health record saved")
			}

			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "request file (default: stdin)")
	cmd.Flags().BoolVar(&save, "save", false, "persist the result as a health record")
	cmd.Flags().StringVar(&patientRef, "patient", "", "patient reference stored with the record")
	return cmd
}

func readAnalysisRequest(stdin io.Reader, file string) (service.AnalysisRequest, error) {
	var req service.AnalysisRequest

	in := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return req, fmt.Errorf("failed to open request: %w", err)
		}
		defer f.Close()
		in = f
	}

	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return req, domain.WrapTriageError(domain.ErrCodeInputValidation, "request is not valid JSON", err)
	}
	return req, nil
}

func newInteractionsCmd(a *app) *cobra.Command {
	var medicines []string

	cmd := &cobra.Command{
		Use:     "interactions [medicine...]",
		Short:   "Check a medicine list for known drug interactions",
		Example: `  triage interactions warfarin "aspirin 81mg"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := append(append([]string{}, medicines...), args...)
			if len(list) == 0 {
				return domain.NewValidationError("medicines", "at least one medicine is required", nil)
			}
			for i := range list {
				list[i] = strings.TrimSpace(list[i])
			}

			checker := service.NewDefaultDrugInteractionChecker()
			findings := checker.Check(list)
			return writeJSON(cmd.OutOrStdout(), api.InteractionsResponse{
				Interactions: findings,
				Count:        len(findings),
			})
		},
	}

	cmd.Flags().StringSliceVarP(&medicines, "medicines", "m", nil, "comma separated medicine list")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Load the knowledge base and print the engine status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup.Build(cmd.Context(), a.cfg, a.logger, setup.WithoutRecords())
			if err != nil {
				return err
			}
			defer c.Close()

			return writeJSON(cmd.OutOrStdout(), c.Engine.Status())
		},
	}
}
