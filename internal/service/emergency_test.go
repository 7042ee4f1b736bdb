package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offline-triage-engine/internal/domain"
)

func TestEmergencyDetector_Detect(t *testing.T) {
	logger, _ := newNullLogger()
	d := NewEmergencyDetector(logger)

	tests := []struct {
		name     string
		symptoms []domain.SymptomObservation
		vitals   *domain.VitalSigns
		kind     string
		code     string
	}{
		{"red flag at low severity", []domain.SymptomObservation{obs("cough", 2), obs("chest_pain", 1)}, nil, TriggerRedFlag, "chest_pain"},
		{"severity at threshold", []domain.SymptomObservation{obs("headache", 8)}, nil, TriggerSeverity, "headache"},
		{"severity below threshold", []domain.SymptomObservation{obs("headache", 7)}, nil, "", ""},
		{"red flag outranks severity", []domain.SymptomObservation{obs("headache", 9), obs("seizure", 3)}, nil, TriggerRedFlag, "seizure"},
		{"severity outranks vitals", []domain.SymptomObservation{obs("headache", 9)}, &domain.VitalSigns{OxygenSaturationPct: floatPtr(80)}, TriggerSeverity, "headache"},
		{"vitals only", nil, &domain.VitalSigns{OxygenSaturationPct: floatPtr(85)}, TriggerVitals, ""},
		{"nothing", []domain.SymptomObservation{obs("cough", 3)}, &domain.VitalSigns{TemperatureC: floatPtr(37.5)}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := d.Detect(tt.symptoms, tt.vitals)
			assert.Equal(t, tt.kind != "", trigger.Triggered)
			assert.Equal(t, tt.kind, trigger.Kind)
			assert.Equal(t, tt.code, trigger.SymptomCode)
		})
	}
}

func TestEmergencyDetector_BuildResult(t *testing.T) {
	logger, hook := newNullLogger()
	d := NewEmergencyDetector(logger)

	t.Run("mapped red flag", func(t *testing.T) {
		result := d.BuildResult(EmergencyTrigger{Triggered: true, Kind: TriggerRedFlag, SymptomCode: "stroke_symptoms"})
		assert.Equal(t, domain.EMERGENCY, result.UrgencyLevel)
		assert.Equal(t, 10.0, result.UrgencyScore)
		assert.True(t, result.RequiresClinician)
		assert.Equal(t, SymptomTriggerConfidence, result.ConfidenceOverall)
		require.Len(t, result.Candidates, 1)
		assert.Equal(t, "Possible Stroke", result.Candidates[0].Condition)
		assert.Equal(t, "I63.9", result.Candidates[0].ICDCode)
		assert.Contains(t, result.EmergencyActions, "Note the time symptoms started")
		assert.NotNil(t, result.HomeCareAdvice)
		assert.Empty(t, result.HomeCareAdvice)
	})

	t.Run("unmapped severity trigger", func(t *testing.T) {
		result := d.BuildResult(EmergencyTrigger{Triggered: true, Kind: TriggerSeverity, SymptomCode: "headache", Reason: "severe headache"})
		assert.Equal(t, "Medical Emergency", result.Candidates[0].Condition)
		assert.Equal(t, SymptomTriggerConfidence, result.ConfidenceOverall)
		assert.Equal(t, GenericEmergencyActions(), result.EmergencyActions)
	})

	t.Run("vital trigger", func(t *testing.T) {
		result := d.BuildResult(EmergencyTrigger{Triggered: true, Kind: TriggerVitals, Reason: "oxygen saturation 85% below 90%"})
		assert.Equal(t, VitalTriggerConfidence, result.ConfidenceOverall)
		assert.Equal(t, VitalTriggerConfidence, result.Candidates[0].Confidence)
		assert.Contains(t, result.Candidates[0].Description, "oxygen saturation")
		assert.NotEmpty(t, result.EmergencyActions)
	})

	t.Run("actions are copies", func(t *testing.T) {
		result := d.BuildResult(EmergencyTrigger{Triggered: true, Kind: TriggerRedFlag, SymptomCode: "seizure"})
		result.EmergencyActions[0] = "changed"
		again := d.BuildResult(EmergencyTrigger{Triggered: true, Kind: TriggerRedFlag, SymptomCode: "seizure"})
		assert.NotEqual(t, "changed", again.EmergencyActions[0])
	})

	assert.True(t, hasEntry(hook, logrus.WarnLevel, "Emergency detected"))
}

func TestEveryRedFlagHasActions(t *testing.T) {
	for code, profile := range emergencySymptoms {
		assert.NotEmpty(t, profile.actions, code)
		assert.NotEmpty(t, profile.condition, code)
		assert.True(t, IsEmergencySymptom(code))
	}
	assert.False(t, IsEmergencySymptom("cough"))
}
