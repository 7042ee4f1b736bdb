package service

import (
	"fmt"

	"github.com/offline-triage-engine/internal/domain"
)

// Critical vital sign limits.
const (
	CriticalTempHighC     = 40.0
	CriticalTempLowC      = 35.0
	CriticalSystolicHigh  = 180
	CriticalDiastolicHigh = 120
	CriticalSystolicLow   = 90
	CriticalHeartRateHigh = 120
	CriticalHeartRateLow  = 50
	CriticalSpO2Low       = 90.0
)

// VitalsAssessment is the outcome of the critical-vitals check.
type VitalsAssessment struct {
	IsCritical bool   `json:"is_critical"`
	Reason     string `json:"reason,omitempty"`
}

// AssessVitals classifies vitals as clinically critical. Checks run in a
// fixed order and the first match wins. Unmeasured values are skipped, and
// no vitals at all is never critical.
func AssessVitals(v *domain.VitalSigns) VitalsAssessment {
	if v == nil {
		return VitalsAssessment{}
	}

	if t := v.TemperatureC; t != nil {
		if *t > CriticalTempHighC {
			return critical(fmt.Sprintf("temperature %.1f°C above %.0f°C", *t, CriticalTempHighC))
		}
		if *t < CriticalTempLowC {
			return critical(fmt.Sprintf("temperature %.1f°C below %.0f°C", *t, CriticalTempLowC))
		}
	}

	if bp := v.BloodPressure; bp != nil {
		switch {
		case bp.HasSystolic() && bp.Systolic > CriticalSystolicHigh:
			return critical(fmt.Sprintf("systolic pressure %d above %d mmHg", bp.Systolic, CriticalSystolicHigh))
		case bp.HasDiastolic() && bp.Diastolic > CriticalDiastolicHigh:
			return critical(fmt.Sprintf("diastolic pressure %d above %d mmHg", bp.Diastolic, CriticalDiastolicHigh))
		case bp.HasSystolic() && bp.Systolic < CriticalSystolicLow:
			return critical(fmt.Sprintf("systolic pressure %d below %d mmHg", bp.Systolic, CriticalSystolicLow))
		}
	}

	if hr := v.HeartRateBpm; hr != nil {
		if *hr > CriticalHeartRateHigh {
			return critical(fmt.Sprintf("heart rate %d above %d bpm", *hr, CriticalHeartRateHigh))
		}
		if *hr < CriticalHeartRateLow {
			return critical(fmt.Sprintf("heart rate %d below %d bpm", *hr, CriticalHeartRateLow))
		}
	}

	if spo2 := v.OxygenSaturationPct; spo2 != nil && *spo2 < CriticalSpO2Low {
		return critical(fmt.Sprintf("oxygen saturation %.0f%% below %.0f%%", *spo2, CriticalSpO2Low))
	}

	return VitalsAssessment{}
}

func critical(reason string) VitalsAssessment {
	return VitalsAssessment{IsCritical: true, Reason: reason}
}
