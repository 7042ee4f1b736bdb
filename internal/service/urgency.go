package service

import (
	"github.com/offline-triage-engine/internal/domain"
)

// Urgency level cutoffs on the 1-10 score.
const (
	EmergencyScoreCutoff = 9.0
	HighScoreCutoff      = 7.0
	MediumScoreCutoff    = 4.0
)

// Vital sign contributions to the urgency score. They are additive.
const (
	FeverScoreThresholdC      = 39.0
	FeverScoreContribution    = 1.0
	SystolicScoreThreshold    = 160
	SystolicScoreContribution = 1.5
	TachycardiaScoreThreshold = 100
	TachycardiaContribution   = 0.5
)

// ScoreUrgency sums symptom severity weights and vital contributions and
// clamps the result into [1, 10].
func ScoreUrgency(symptoms []domain.SymptomObservation, vitals *domain.VitalSigns) float64 {
	var score float64
	for _, s := range symptoms {
		score += s.Weight()
	}
	score += vitalContribution(vitals)
	return domain.ClampUrgencyScore(score)
}

func vitalContribution(v *domain.VitalSigns) float64 {
	if v == nil {
		return 0
	}
	var c float64
	if v.TemperatureC != nil && *v.TemperatureC > FeverScoreThresholdC {
		c += FeverScoreContribution
	}
	if v.BloodPressure.HasSystolic() && v.BloodPressure.Systolic > SystolicScoreThreshold {
		c += SystolicScoreContribution
	}
	if v.HeartRateBpm != nil && *v.HeartRateBpm > TachycardiaScoreThreshold {
		c += TachycardiaContribution
	}
	return c
}

// MapUrgencyLevel converts a score into its urgency tier. A score at or
// above EmergencyScoreCutoff is EMERGENCY even without a red-flag symptom.
func MapUrgencyLevel(score float64) domain.UrgencyLevel {
	switch {
	case score >= EmergencyScoreCutoff:
		return domain.EMERGENCY
	case score >= HighScoreCutoff:
		return domain.HIGH
	case score >= MediumScoreCutoff:
		return domain.MEDIUM
	default:
		return domain.LOW
	}
}
