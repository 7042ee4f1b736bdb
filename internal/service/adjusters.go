package service

import (
	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/knowledge"
)

// Adjuster is one stage of the confidence-adjustment pipeline. It returns
// a new slice and never modifies its input.
type Adjuster func(candidates []domain.ConditionCandidate, pctx domain.PatientContext) []domain.ConditionCandidate

// AdjustmentRule multiplies the confidence of every candidate selected by
// Targets when When holds for the patient context.
type AdjustmentRule struct {
	Name    string
	When    func(pctx domain.PatientContext) bool
	Targets func(c domain.ConditionCandidate) bool
	Factor  float64
}

// NewAdjuster builds a stage from rules applied in order. Confidence is
// clamped after every single multiplication.
func NewAdjuster(rules ...AdjustmentRule) Adjuster {
	return func(candidates []domain.ConditionCandidate, pctx domain.PatientContext) []domain.ConditionCandidate {
		out := make([]domain.ConditionCandidate, len(candidates))
		copy(out, candidates)
		for _, rule := range rules {
			if !rule.When(pctx) {
				continue
			}
			for i := range out {
				if rule.Targets(out[i]) {
					out[i].Confidence = domain.ClampUnit(out[i].Confidence * rule.Factor)
				}
			}
		}
		return out
	}
}

// RunAdjusters applies the stages in order and re-sorts the result.
func RunAdjusters(candidates []domain.ConditionCandidate, pctx domain.PatientContext, stages ...Adjuster) []domain.ConditionCandidate {
	out := append(make([]domain.ConditionCandidate, 0, len(candidates)), candidates...)
	for _, stage := range stages {
		out = stage(out, pctx)
	}
	SortCandidates(out)
	return out
}

// DefaultAdjusters is the fixed age, gender, vitals pipeline.
func DefaultAdjusters() []Adjuster {
	return []Adjuster{AgeAdjuster(), GenderAdjuster(), VitalAdjuster()}
}

// ElderlyAge is the age above which age-related adjustments apply.
const ElderlyAge = 65

// AgeAdjuster boosts conditions that are more likely in the elderly or in children.
func AgeAdjuster() Adjuster {
	return NewAdjuster(
		AdjustmentRule{
			Name:    "elderly_cardiovascular",
			When:    ageAbove(ElderlyAge),
			Targets: inCategory(knowledge.CategoryCardiovascular),
			Factor:  1.2,
		},
		AdjustmentRule{
			Name:    "elderly_influenza",
			When:    ageAbove(ElderlyAge),
			Targets: isCondition("influenza"),
			Factor:  1.1,
		},
		AdjustmentRule{
			Name:    "child_gastroenteritis",
			When:    ageBelow(5),
			Targets: isCondition("gastroenteritis"),
			Factor:  1.1,
		},
	)
}

// GenderAdjuster boosts conditions that are more common in one gender.
func GenderAdjuster() Adjuster {
	return NewAdjuster(
		AdjustmentRule{
			Name:    "female_uti",
			When:    genderIs(domain.GenderFemale),
			Targets: isCondition("urinary_tract_infection"),
			Factor:  1.3,
		},
		AdjustmentRule{
			Name:    "female_anemia",
			When:    genderIs(domain.GenderFemale),
			Targets: isCondition("iron_deficiency_anemia"),
			Factor:  1.2,
		},
		AdjustmentRule{
			Name:    "male_coronary",
			When:    genderIs(domain.GenderMale),
			Targets: isCondition("coronary_artery_disease"),
			Factor:  1.1,
		},
	)
}

// VitalAdjuster boosts conditions consistent with the measured vital signs.
func VitalAdjuster() Adjuster {
	return NewAdjuster(
		AdjustmentRule{
			Name: "fever_infection",
			When: func(pctx domain.PatientContext) bool {
				return pctx.Vitals != nil && pctx.Vitals.TemperatureC != nil && *pctx.Vitals.TemperatureC > 38
			},
			Targets: inCategory(knowledge.CategoryInfection),
			Factor:  1.3,
		},
		AdjustmentRule{
			Name: "raised_systolic_hypertension",
			When: func(pctx domain.PatientContext) bool {
				return pctx.Vitals != nil && pctx.Vitals.BloodPressure.HasSystolic() && pctx.Vitals.BloodPressure.Systolic > 140
			},
			Targets: isCondition("hypertension"),
			Factor:  1.4,
		},
		AdjustmentRule{
			Name: "low_saturation_respiratory",
			When: func(pctx domain.PatientContext) bool {
				return pctx.Vitals != nil && pctx.Vitals.OxygenSaturationPct != nil && *pctx.Vitals.OxygenSaturationPct < 95
			},
			Targets: inCategory(knowledge.CategoryRespiratory),
			Factor:  1.2,
		},
		AdjustmentRule{
			Name: "tachypnea_respiratory",
			When: func(pctx domain.PatientContext) bool {
				return pctx.Vitals != nil && pctx.Vitals.RespiratoryRate != nil && *pctx.Vitals.RespiratoryRate > 24
			},
			Targets: inCategory(knowledge.CategoryRespiratory),
			Factor:  1.1,
		},
	)
}

func ageAbove(years int) func(domain.PatientContext) bool {
	return func(pctx domain.PatientContext) bool {
		return pctx.Age != nil && *pctx.Age > years
	}
}

func ageBelow(years int) func(domain.PatientContext) bool {
	return func(pctx domain.PatientContext) bool {
		return pctx.Age != nil && *pctx.Age < years
	}
}

func genderIs(g domain.Gender) func(domain.PatientContext) bool {
	return func(pctx domain.PatientContext) bool {
		return pctx.Gender == g
	}
}

func inCategory(category string) func(domain.ConditionCandidate) bool {
	return func(c domain.ConditionCandidate) bool {
		return c.HasCategory(category)
	}
}

func isCondition(id string) func(domain.ConditionCandidate) bool {
	return func(c domain.ConditionCandidate) bool {
		return c.ConditionID == id
	}
}
