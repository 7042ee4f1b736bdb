package service

import (
	"math"

	"github.com/offline-triage-engine/internal/domain"
)

// EstimateConfidence measures input completeness, not match quality:
// a 0.5 base, 0.1 per symptom up to 0.3, and 0.2 when any vital is present.
func EstimateConfidence(symptomCount int, vitals *domain.VitalSigns) float64 {
	c := 0.5 + math.Min(float64(symptomCount)*0.1, 0.3)
	if vitals.Provided() {
		c += 0.2
	}
	return domain.ClampUnit(c)
}
