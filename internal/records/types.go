// Package records persists triage results for later review. Storing a
// record is optional and happens outside the engine.
package records

import (
	"time"

	"github.com/google/uuid"

	"github.com/offline-triage-engine/internal/domain"
)

// ExportVersion is the current record export format.
const ExportVersion = "1.0"

// RecordExport represents the JSON export format.
type RecordExport struct {
	Version    string                 `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Count      int                    `json:"count"`
	Records    []*domain.HealthRecord `json:"records"`
}

// NewRecord builds a record for result. The symptom codes are taken from
// the request as submitted.
func NewRecord(requestID, patientRef string, symptoms []domain.SymptomObservation, result *domain.AnalysisResult) *domain.HealthRecord {
	codes := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		if s.Code != "" {
			codes = append(codes, s.Code)
		} else if s.Name != "" {
			codes = append(codes, s.Name)
		}
	}

	record := &domain.HealthRecord{
		ID:           uuid.New().String(),
		RequestID:    requestID,
		PatientRef:   patientRef,
		SymptomCodes: codes,
		Result:       result,
		CreatedAt:    time.Now().UTC(),
	}
	if result != nil {
		record.UrgencyLevel = result.UrgencyLevel
		record.UrgencyScore = result.UrgencyScore
	}
	return record
}
