// Package domain contains the core entities of the offline triage engine:
// symptom observations, vital signs, condition candidates and the analysis
// result returned to callers.
//
// The engine is a deterministic decision-support heuristic, not a clinical
// diagnostic system. Every type in this package is a plain value so that a
// result can be serialized, compared and audited without hidden state.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// UrgencyLevel is the discrete triage tier summarizing the severity of a
// patient's presentation.
type UrgencyLevel string

const (
	LOW       UrgencyLevel = "LOW"
	MEDIUM    UrgencyLevel = "MEDIUM"
	HIGH      UrgencyLevel = "HIGH"
	EMERGENCY UrgencyLevel = "EMERGENCY"
)

// InteractionSeverity grades a drug-drug interaction finding.
type InteractionSeverity string

const (
	MINOR    InteractionSeverity = "MINOR"
	MODERATE InteractionSeverity = "MODERATE"
	MAJOR    InteractionSeverity = "MAJOR"
)

// Score bounds for urgency and confidence values.
const (
	MinUrgencyScore = 1.0
	MaxUrgencyScore = 10.0

	MinSeverity     = 1
	MaxSeverity     = 10
	DefaultSeverity = 5
)

var (
	ErrInvalidUrgencyLevel = errors.New("invalid urgency level")
	ErrInvalidSeverity     = errors.New("invalid interaction severity")
)

// IsValid reports whether the urgency level is one of the four known tiers.
func (u UrgencyLevel) IsValid() bool {
	switch u {
	case LOW, MEDIUM, HIGH, EMERGENCY:
		return true
	default:
		return false
	}
}

// String returns the string representation of the urgency level.
func (u UrgencyLevel) String() string {
	return string(u)
}

// ParseUrgencyLevel parses a stored or user-supplied urgency level.
func ParseUrgencyLevel(raw string) (UrgencyLevel, error) {
	level := UrgencyLevel(strings.ToUpper(strings.TrimSpace(raw)))
	if !level.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUrgencyLevel, raw)
	}
	return level, nil
}

// Rank orders urgency levels so callers can compare them; unknown levels
// rank highest so they are never treated as benign.
func (u UrgencyLevel) Rank() int {
	switch u {
	case LOW:
		return 0
	case MEDIUM:
		return 1
	case HIGH:
		return 2
	default:
		return 3
	}
}

// LogFields returns structured logging fields for audit trails.
func (u UrgencyLevel) LogFields() map[string]any {
	return map[string]any{
		"urgency_level": string(u),
		"is_valid":      u.IsValid(),
		"rank":          u.Rank(),
	}
}

// IsValid reports whether the interaction severity is known.
func (s InteractionSeverity) IsValid() bool {
	switch s {
	case MINOR, MODERATE, MAJOR:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s InteractionSeverity) String() string {
	return string(s)
}

// SymptomObservation is a single patient-reported symptom. Code is the
// canonical catalog identifier; Severity is on a 1-10 scale where zero
// means "not reported" and is read as DefaultSeverity.
type SymptomObservation struct {
	Code      string `json:"code" yaml:"code"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Severity  int    `json:"severity,omitempty" yaml:"severity,omitempty"`
	Duration  string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Frequency string `json:"frequency,omitempty" yaml:"frequency,omitempty"`
}

// EffectiveSeverity returns the severity used for scoring: DefaultSeverity
// when unreported, otherwise clamped into [MinSeverity, MaxSeverity].
func (s SymptomObservation) EffectiveSeverity() int {
	if s.Severity == 0 {
		return DefaultSeverity
	}
	if s.Severity < MinSeverity {
		return MinSeverity
	}
	if s.Severity > MaxSeverity {
		return MaxSeverity
	}
	return s.Severity
}

// Weight is the severity expressed as a fraction of the scale maximum.
func (s SymptomObservation) Weight() float64 {
	return float64(s.EffectiveSeverity()) / float64(MaxSeverity)
}

// BloodPressure is a single systolic/diastolic reading in mmHg. A zero
// component was not measured.
type BloodPressure struct {
	Systolic  int `json:"systolic,omitempty" yaml:"systolic,omitempty"`
	Diastolic int `json:"diastolic,omitempty" yaml:"diastolic,omitempty"`
}

// HasSystolic reports whether the systolic component was measured.
func (b *BloodPressure) HasSystolic() bool { return b != nil && b.Systolic > 0 }

// HasDiastolic reports whether the diastolic component was measured.
func (b *BloodPressure) HasDiastolic() bool { return b != nil && b.Diastolic > 0 }

// Measured reports whether either component was measured.
func (b *BloodPressure) Measured() bool { return b.HasSystolic() || b.HasDiastolic() }

// MaxBloodPressure bounds either component of a physiological reading.
const MaxBloodPressure = 300

// Validate rejects readings no patient could produce. A nil reading or an
// unmeasured component is valid.
func (b *BloodPressure) Validate() error {
	if b == nil {
		return nil
	}
	if b.Systolic < 0 || b.Systolic > MaxBloodPressure {
		return NewValidationError("vitals.blood_pressure.systolic", "systolic pressure must be between 1 and 300 mmHg", b.Systolic)
	}
	if b.Diastolic < 0 || b.Diastolic > MaxBloodPressure {
		return NewValidationError("vitals.blood_pressure.diastolic", "diastolic pressure must be between 1 and 300 mmHg", b.Diastolic)
	}
	if b.HasSystolic() && b.HasDiastolic() && b.Diastolic >= b.Systolic {
		return NewValidationError("vitals.blood_pressure", "diastolic pressure must be below systolic pressure", *b)
	}
	return nil
}

// VitalSigns carries optional physiological measurements. A nil field means
// the value was not measured; it is never read as normal or abnormal.
type VitalSigns struct {
	TemperatureC        *float64       `json:"temperature_c,omitempty" yaml:"temperature_c,omitempty"`
	BloodPressure       *BloodPressure `json:"blood_pressure,omitempty" yaml:"blood_pressure,omitempty"`
	HeartRateBpm        *int           `json:"heart_rate_bpm,omitempty" yaml:"heart_rate_bpm,omitempty"`
	RespiratoryRate     *int           `json:"respiratory_rate,omitempty" yaml:"respiratory_rate,omitempty"`
	OxygenSaturationPct *float64       `json:"oxygen_saturation_pct,omitempty" yaml:"oxygen_saturation_pct,omitempty"`
}

// Provided reports whether at least one vital sign was measured.
func (v *VitalSigns) Provided() bool {
	if v == nil {
		return false
	}
	return v.TemperatureC != nil ||
		v.BloodPressure.Measured() ||
		v.HeartRateBpm != nil ||
		v.RespiratoryRate != nil ||
		v.OxygenSaturationPct != nil
}

// Gender is the optional self-reported gender used by demographic adjustment.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
)

// ParseGender maps free-form input onto a known Gender; anything
// unrecognized becomes GenderUnknown and disables gender adjustments.
func ParseGender(raw string) Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "f", "female", "woman":
		return GenderFemale
	case "m", "male", "man":
		return GenderMale
	default:
		return GenderUnknown
	}
}

// PatientContext is the demographic and physiological context the
// adjustment pipeline reads. Age is nil when not supplied.
type PatientContext struct {
	Age    *int
	Gender Gender
	Vitals *VitalSigns
}

// ConditionCandidate is one ranked hypothesis about the patient's condition.
type ConditionCandidate struct {
	ConditionID string   `json:"condition_id"`
	Condition   string   `json:"condition"`
	Confidence  float64  `json:"confidence"`
	ICDCode     string   `json:"icd_code,omitempty"`
	Description string   `json:"description"`
	Categories  []string `json:"categories,omitempty"`
}

// HasCategory reports whether the candidate belongs to the given condition class.
func (c ConditionCandidate) HasCategory(category string) bool {
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// AnalysisResult is the complete output of one triage analysis. It is built
// fresh for every call and never mutated by the engine afterwards.
type AnalysisResult struct {
	UrgencyLevel       UrgencyLevel         `json:"urgency_level"`
	UrgencyScore       float64              `json:"urgency_score"`
	Candidates         []ConditionCandidate `json:"candidates"`
	RecommendedActions []string             `json:"recommended_actions"`
	RequiresClinician  bool                 `json:"requires_clinician"`
	EmergencyActions   []string             `json:"emergency_actions,omitempty"`
	HomeCareAdvice     []string             `json:"home_care_advice"`
	FollowUpAdvice     []string             `json:"follow_up_advice"`
	ConfidenceOverall  float64              `json:"confidence_overall"`
}

// IsEmergency reports whether the result carries the EMERGENCY tier.
func (r *AnalysisResult) IsEmergency() bool {
	return r.UrgencyLevel == EMERGENCY
}

// DrugInteractionFinding is one fired drug-interaction rule.
type DrugInteractionFinding struct {
	Drugs       []string            `json:"drugs"`
	Severity    InteractionSeverity `json:"severity"`
	Description string              `json:"description"`
	Mechanism   string              `json:"mechanism"`
	Management  string              `json:"management"`
}

// EngineStatus is the health-check view of the engine.
type EngineStatus struct {
	Initialized         bool   `json:"initialized"`
	KnowledgeBaseSize   int    `json:"knowledge_base_size"`
	KnowledgeBaseSource string `json:"knowledge_base_source,omitempty"`
	HasMLModel          bool   `json:"has_ml_model"`
	Backend             string `json:"backend"`
}

// ClampUnit clamps a confidence value into [0, 1].
func ClampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampUrgencyScore clamps a score into [MinUrgencyScore, MaxUrgencyScore].
func ClampUrgencyScore(v float64) float64 {
	if math.IsNaN(v) || v < MinUrgencyScore {
		return MinUrgencyScore
	}
	if v > MaxUrgencyScore {
		return MaxUrgencyScore
	}
	return v
}
