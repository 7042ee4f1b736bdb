package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/service"
)

// MaxSymptoms bounds a single analyze_symptoms call.
const MaxSymptoms = 50

// AnalyzeSymptomsParams is the input of analyze_symptoms.
type AnalyzeSymptomsParams struct {
	Symptoms []domain.SymptomObservation `json:"symptoms" jsonschema:"reported symptoms; code is a catalog code or free text, severity is 1-10"`
	Age      *int                        `json:"age,omitempty" jsonschema:"age in years"`
	Gender   string                      `json:"gender,omitempty" jsonschema:"female or male"`
	Vitals   *domain.VitalSigns          `json:"vitals,omitempty" jsonschema:"measured vital signs"`
}

// CheckDrugInteractionsParams is the input of check_drug_interactions.
type CheckDrugInteractionsParams struct {
	Medicines []string `json:"medicines" jsonschema:"medicine names, doses may be included"`
}

// DrugInteractionsOutput is the output of check_drug_interactions.
type DrugInteractionsOutput struct {
	Interactions []domain.DrugInteractionFinding `json:"interactions"`
	Count        int                             `json:"count"`
}

// GetEngineStatusParams is the (empty) input of get_engine_status.
type GetEngineStatusParams struct{}

func (s *Server) handleAnalyzeSymptoms(ctx context.Context, req *mcp.CallToolRequest, params AnalyzeSymptomsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolAnalyzeSymptoms).Info("Tool invoked")

	if err := validateParams(params); err != nil {
		return errorResult(err), nil, nil
	}

	result := s.engine.Analyze(ctx, service.AnalysisRequest{
		Symptoms: params.Symptoms,
		Age:      params.Age,
		Gender:   params.Gender,
		Vitals:   params.Vitals,
	})
	return jsonResult(result), result, nil
}

func (s *Server) handleCheckDrugInteractions(ctx context.Context, req *mcp.CallToolRequest, params CheckDrugInteractionsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolCheckDrugInteractions).Info("Tool invoked")

	findings := s.engine.CheckDrugInteractions(params.Medicines)
	out := DrugInteractionsOutput{Interactions: findings, Count: len(findings)}
	return jsonResult(out), out, nil
}

func (s *Server) handleGetEngineStatus(ctx context.Context, req *mcp.CallToolRequest, _ GetEngineStatusParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolGetEngineStatus).Debug("Tool invoked")

	status := s.engine.Status()
	return jsonResult(status), status, nil
}

func validateParams(params AnalyzeSymptomsParams) error {
	if len(params.Symptoms) > MaxSymptoms {
		return domain.NewValidationError("symptoms", fmt.Sprintf("at most %d symptoms are accepted", MaxSymptoms), len(params.Symptoms))
	}
	for i, sym := range params.Symptoms {
		if sym.Severity < 0 || sym.Severity > domain.MaxSeverity {
			return domain.NewValidationError(fmt.Sprintf("symptoms[%d].severity", i), "severity must be between 1 and 10", sym.Severity)
		}
	}
	if params.Vitals != nil {
		return params.Vitals.BloodPressure.Validate()
	}
	return nil
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(domain.WrapTriageError(domain.ErrCodeInternalComputation, "failed to encode result", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// errorResult reports a tool-level failure to the client without failing
// the protocol call.
func errorResult(err error) *mcp.CallToolResult {
	te := domain.WrapTriageError(domain.ErrorCode(err), err.Error(), err)
	data, _ := json.Marshal(map[string]interface{}{"error": te})
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
