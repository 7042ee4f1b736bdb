package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/offline-triage-engine/internal/domain"
)

func TestScoreUrgency(t *testing.T) {
	tests := []struct {
		name     string
		symptoms []domain.SymptomObservation
		vitals   *domain.VitalSigns
		want     float64
	}{
		{"empty clamps to minimum", nil, nil, 1},
		{"below minimum", []domain.SymptomObservation{obs("a", 4), obs("b", 3), obs("c", 2)}, nil, 1},
		{"sum of weights", []domain.SymptomObservation{obs("a", 7), obs("b", 6)}, nil, 1.3},
		{"unreported severity", []domain.SymptomObservation{obs("a", 0), obs("b", 0), obs("c", 0)}, nil, 1.5},
		{"fever", []domain.SymptomObservation{obs("a", 5)}, &domain.VitalSigns{TemperatureC: floatPtr(39.5)}, 1.5},
		{"fever at limit", []domain.SymptomObservation{obs("a", 5)}, &domain.VitalSigns{TemperatureC: floatPtr(39)}, 1},
		{"all vital contributions", []domain.SymptomObservation{obs("a", 5)}, &domain.VitalSigns{
			TemperatureC:  floatPtr(39.5),
			BloodPressure: &domain.BloodPressure{Systolic: 165, Diastolic: 95},
			HeartRateBpm:  intPtr(110),
		}, 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreUrgency(tt.symptoms, tt.vitals), 1e-9)
		})
	}
}

func TestScoreUrgency_ClampsToMaximum(t *testing.T) {
	symptoms := make([]domain.SymptomObservation, 0, 20)
	for i := 0; i < 20; i++ {
		symptoms = append(symptoms, obs("s", 7))
	}
	assert.Equal(t, 10.0, ScoreUrgency(symptoms, nil))
}

func TestMapUrgencyLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.UrgencyLevel
	}{
		{1, domain.LOW},
		{3.99, domain.LOW},
		{4, domain.MEDIUM},
		{6.99, domain.MEDIUM},
		{7, domain.HIGH},
		{8.99, domain.HIGH},
		{9, domain.EMERGENCY},
		{10, domain.EMERGENCY},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapUrgencyLevel(tt.score), "score %v", tt.score)
	}
}

func TestEstimateConfidence(t *testing.T) {
	assert.InDelta(t, 0.5, EstimateConfidence(0, nil), 1e-9)
	assert.InDelta(t, 0.6, EstimateConfidence(1, nil), 1e-9)
	assert.InDelta(t, 0.8, EstimateConfidence(3, nil), 1e-9)
	assert.InDelta(t, 0.8, EstimateConfidence(12, nil), 1e-9)
	assert.InDelta(t, 0.7, EstimateConfidence(0, &domain.VitalSigns{HeartRateBpm: intPtr(70)}), 1e-9)
	assert.InDelta(t, 0.5, EstimateConfidence(0, &domain.VitalSigns{}), 1e-9)
	assert.InDelta(t, 1.0, EstimateConfidence(5, &domain.VitalSigns{HeartRateBpm: intPtr(70)}), 1e-9)
}
