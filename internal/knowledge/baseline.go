// Package knowledge loads the symptom, condition and protocol catalogs the
// triage engine matches against, and embeds the baseline dataset used when
// no external source is available.
package knowledge

import (
	"context"

	"github.com/offline-triage-engine/internal/domain"
)

// BaselineSource labels a knowledge base built entirely from the embedded dataset.
const BaselineSource = "baseline"

// Per-condition inclusion thresholds. Each is tuned on its own; there is no
// formula relating them.
const (
	ThresholdCommonCold       = 0.3
	ThresholdInfluenza        = 0.4
	ThresholdMigraine         = 0.4
	ThresholdGastroenteritis  = 0.4
	ThresholdHypertension     = 0.3
	ThresholdUTI              = 0.4
	ThresholdCoronaryDisease  = 0.3
	ThresholdAllergicRhinitis = 0.3
	ThresholdAnemia           = 0.3
	ThresholdBronchitis       = 0.35
)

// Condition classes read by the adjustment pipeline.
const (
	CategoryCardiovascular = "cardiovascular"
	CategoryInfection      = "infection"
	CategoryRespiratory    = "respiratory"
)

// Baseline returns a fresh copy of the embedded knowledge base. Callers may
// keep the value; nothing else holds a reference to it.
func Baseline() *domain.KnowledgeBase {
	return &domain.KnowledgeBase{
		Version:           "baseline-1",
		Source:            BaselineSource,
		SymptomsCatalog:   baselineSymptoms(),
		ConditionPatterns: baselinePatterns(),
		Protocols:         baselineProtocols(),
	}
}

// BaselineProvider serves the embedded dataset. It never fails.
type BaselineProvider struct{}

// NewBaselineProvider creates a provider over the embedded dataset.
func NewBaselineProvider() *BaselineProvider {
	return &BaselineProvider{}
}

// Name implements domain.KnowledgeBaseProvider.
func (p *BaselineProvider) Name() string { return BaselineSource }

// Load implements domain.KnowledgeBaseProvider.
func (p *BaselineProvider) Load(ctx context.Context) (*domain.KnowledgeBase, error) {
	return Baseline(), nil
}

func baselineSymptoms() []domain.SymptomDefinition {
	return []domain.SymptomDefinition{
		// Red-flag symptoms
		{Code: "chest_pain", Name: "Chest pain", Aliases: []string{"chest ache", "pain in chest"}, BodySystem: "cardiovascular"},
		{Code: "difficulty_breathing", Name: "Difficulty breathing", Aliases: []string{"cannot breathe", "trouble breathing", "gasping"}, BodySystem: "respiratory"},
		{Code: "severe_bleeding", Name: "Severe bleeding", Aliases: []string{"heavy bleeding", "hemorrhage"}, BodySystem: "circulatory"},
		{Code: "loss_of_consciousness", Name: "Loss of consciousness", Aliases: []string{"fainted", "passed out", "unconscious"}, BodySystem: "neurological"},
		{Code: "stroke_symptoms", Name: "Stroke symptoms", Aliases: []string{"face drooping", "slurred speech", "one sided weakness"}, BodySystem: "neurological"},
		{Code: "seizure", Name: "Seizure", Aliases: []string{"convulsions"}, BodySystem: "neurological"},
		{Code: "severe_allergic_reaction", Name: "Severe allergic reaction", Aliases: []string{"anaphylaxis", "throat swelling"}, BodySystem: "immune"},
		{Code: "suicidal_thoughts", Name: "Suicidal thoughts", Aliases: []string{"thoughts of self harm"}, BodySystem: "mental_health"},

		// General symptoms
		{Code: "fever", Name: "Fever", Aliases: []string{"high temperature", "pyrexia"}, BodySystem: "general"},
		{Code: "fatigue", Name: "Fatigue", Aliases: []string{"tiredness", "exhaustion", "weakness"}, BodySystem: "general"},
		{Code: "body_aches", Name: "Body aches", Aliases: []string{"muscle aches", "myalgia"}, BodySystem: "musculoskeletal"},
		{Code: "dizziness", Name: "Dizziness", Aliases: []string{"lightheaded", "vertigo"}, BodySystem: "neurological"},
		{Code: "pale_skin", Name: "Pale skin", Aliases: []string{"pallor"}, BodySystem: "skin"},
		{Code: "headache", Name: "Headache", Aliases: []string{"head pain"}, BodySystem: "neurological"},
		{Code: "light_sensitivity", Name: "Light sensitivity", Aliases: []string{"photophobia"}, BodySystem: "neurological"},
		{Code: "blurred_vision", Name: "Blurred vision", Aliases: []string{"blurry vision"}, BodySystem: "eyes"},

		// Respiratory
		{Code: "cough", Name: "Cough", Aliases: []string{"coughing"}, BodySystem: "respiratory"},
		{Code: "sore_throat", Name: "Sore throat", Aliases: []string{"throat pain", "pharyngitis"}, BodySystem: "respiratory"},
		{Code: "runny_nose", Name: "Runny nose", Aliases: []string{"rhinorrhea"}, BodySystem: "respiratory"},
		{Code: "nasal_congestion", Name: "Nasal congestion", Aliases: []string{"stuffy nose", "blocked nose"}, BodySystem: "respiratory"},
		{Code: "sneezing", Name: "Sneezing", BodySystem: "respiratory"},
		{Code: "shortness_of_breath", Name: "Shortness of breath", Aliases: []string{"breathless", "dyspnea"}, BodySystem: "respiratory"},
		{Code: "chest_tightness", Name: "Chest tightness", Aliases: []string{"tight chest"}, BodySystem: "cardiovascular"},
		{Code: "wheezing", Name: "Wheezing", BodySystem: "respiratory"},
		{Code: "itchy_eyes", Name: "Itchy eyes", Aliases: []string{"watery eyes"}, BodySystem: "eyes"},

		// Gastrointestinal
		{Code: "nausea", Name: "Nausea", Aliases: []string{"queasy", "feeling sick"}, BodySystem: "gastrointestinal"},
		{Code: "vomiting", Name: "Vomiting", Aliases: []string{"throwing up"}, BodySystem: "gastrointestinal"},
		{Code: "diarrhea", Name: "Diarrhea", Aliases: []string{"diarrhoea", "loose stools"}, BodySystem: "gastrointestinal"},
		{Code: "abdominal_pain", Name: "Abdominal pain", Aliases: []string{"stomach ache", "stomach pain", "belly pain"}, BodySystem: "gastrointestinal"},

		// Urinary
		{Code: "painful_urination", Name: "Painful urination", Aliases: []string{"burning urination", "dysuria"}, BodySystem: "urinary"},
		{Code: "frequent_urination", Name: "Frequent urination", Aliases: []string{"urinating often"}, BodySystem: "urinary"},
		{Code: "lower_abdominal_pain", Name: "Lower abdominal pain", Aliases: []string{"pelvic pain"}, BodySystem: "urinary"},
	}
}

func baselinePatterns() []domain.ConditionPattern {
	return []domain.ConditionPattern{
		{
			ID:          "common_cold",
			Name:        "Common Cold",
			ICDCode:     "J00",
			Description: "Viral infection of the upper respiratory tract, usually self-limiting.",
			Symptoms:    []string{"cough", "sore_throat"},
			Threshold:   ThresholdCommonCold,
			Categories:  []string{CategoryInfection, CategoryRespiratory},
		},
		{
			ID:          "influenza",
			Name:        "Influenza",
			ICDCode:     "J11.1",
			Description: "Viral respiratory infection with fever, aches and fatigue.",
			Symptoms:    []string{"fever", "body_aches", "fatigue", "cough"},
			Threshold:   ThresholdInfluenza,
			Categories:  []string{CategoryInfection, CategoryRespiratory},
		},
		{
			ID:          "acute_bronchitis",
			Name:        "Acute Bronchitis",
			ICDCode:     "J20.9",
			Description: "Inflammation of the bronchial tubes, often following a cold.",
			Symptoms:    []string{"cough", "chest_tightness", "wheezing", "fatigue"},
			Threshold:   ThresholdBronchitis,
			Categories:  []string{CategoryInfection, CategoryRespiratory},
		},
		{
			ID:          "migraine",
			Name:        "Migraine",
			ICDCode:     "G43.909",
			Description: "Recurrent headache often with nausea and sensitivity to light.",
			Symptoms:    []string{"headache", "nausea", "light_sensitivity"},
			Threshold:   ThresholdMigraine,
		},
		{
			ID:          "gastroenteritis",
			Name:        "Gastroenteritis",
			ICDCode:     "A09",
			Description: "Inflammation of the stomach and intestines, commonly infectious.",
			Symptoms:    []string{"nausea", "vomiting", "diarrhea", "abdominal_pain"},
			Threshold:   ThresholdGastroenteritis,
			Categories:  []string{CategoryInfection},
		},
		{
			ID:          "hypertension",
			Name:        "Hypertension",
			ICDCode:     "I10",
			Description: "Elevated blood pressure; symptoms are often absent or nonspecific.",
			Symptoms:    []string{"headache", "dizziness", "blurred_vision"},
			Threshold:   ThresholdHypertension,
			Categories:  []string{CategoryCardiovascular},
		},
		{
			ID:          "urinary_tract_infection",
			Name:        "Urinary Tract Infection",
			ICDCode:     "N39.0",
			Description: "Bacterial infection of the urinary tract.",
			Symptoms:    []string{"painful_urination", "frequent_urination", "lower_abdominal_pain"},
			Threshold:   ThresholdUTI,
			Categories:  []string{CategoryInfection},
		},
		{
			ID:          "coronary_artery_disease",
			Name:        "Coronary Artery Disease",
			ICDCode:     "I25.10",
			Description: "Narrowing of the coronary arteries reducing blood flow to the heart.",
			Symptoms:    []string{"chest_tightness", "shortness_of_breath", "fatigue"},
			Threshold:   ThresholdCoronaryDisease,
			Categories:  []string{CategoryCardiovascular},
		},
		{
			ID:          "allergic_rhinitis",
			Name:        "Allergic Rhinitis",
			ICDCode:     "J30.9",
			Description: "Allergic inflammation of the nasal passages.",
			Symptoms:    []string{"sneezing", "runny_nose", "itchy_eyes", "nasal_congestion"},
			Threshold:   ThresholdAllergicRhinitis,
			Categories:  []string{CategoryRespiratory},
		},
		{
			ID:          "iron_deficiency_anemia",
			Name:        "Iron Deficiency Anemia",
			ICDCode:     "D50.9",
			Description: "Low red blood cell count caused by insufficient iron.",
			Symptoms:    []string{"fatigue", "dizziness", "pale_skin"},
			Threshold:   ThresholdAnemia,
		},
	}
}

func baselineProtocols() []domain.Protocol {
	return []domain.Protocol{
		{
			ConditionID: "common_cold",
			HomeCare:    []string{"Use saline nasal spray or steam inhalation", "Soothe sore throat with warm fluids or lozenges"},
			FollowUp:    []string{"See a doctor if symptoms last longer than 10 days"},
			SeekCareIf:  []string{"Fever above 39°C", "Difficulty breathing"},
		},
		{
			ConditionID: "influenza",
			HomeCare:    []string{"Use fever reducers as directed on the label", "Stay home to avoid spreading infection"},
			FollowUp:    []string{"Contact a doctor within 48 hours if in a high-risk group"},
			SeekCareIf:  []string{"Shortness of breath", "Symptoms improve then return worse"},
		},
		{
			ConditionID: "acute_bronchitis",
			HomeCare:    []string{"Use a humidifier", "Avoid smoke and other irritants"},
			FollowUp:    []string{"See a doctor if cough lasts more than 3 weeks"},
			SeekCareIf:  []string{"Coughing up blood", "Wheezing that worsens"},
		},
		{
			ConditionID: "migraine",
			HomeCare:    []string{"Rest in a dark, quiet room", "Apply a cold compress to the forehead"},
			FollowUp:    []string{"Keep a headache diary and review it with a doctor"},
			SeekCareIf:  []string{"Sudden severe headache", "Headache with confusion or weakness"},
		},
		{
			ConditionID: "gastroenteritis",
			HomeCare:    []string{"Take oral rehydration solution in small frequent sips", "Eat bland foods as tolerated"},
			FollowUp:    []string{"See a doctor if diarrhea lasts more than 3 days"},
			SeekCareIf:  []string{"Signs of dehydration", "Blood in stool or vomit"},
		},
		{
			ConditionID: "hypertension",
			HomeCare:    []string{"Reduce salt intake", "Check blood pressure at the same time each day"},
			FollowUp:    []string{"Book a blood pressure review with a doctor"},
			SeekCareIf:  []string{"Blood pressure above 180/120", "Chest pain or vision loss"},
		},
		{
			ConditionID: "urinary_tract_infection",
			HomeCare:    []string{"Drink plenty of water", "Avoid caffeine and alcohol"},
			FollowUp:    []string{"See a doctor for a urine test and possible antibiotics"},
			SeekCareIf:  []string{"Fever or back pain", "Blood in urine"},
		},
		{
			ConditionID: "coronary_artery_disease",
			FollowUp:    []string{"Arrange a cardiac assessment with a doctor"},
			SeekCareIf:  []string{"Chest pain at rest", "Pain spreading to arm, jaw or back"},
		},
		{
			ConditionID: "allergic_rhinitis",
			HomeCare:    []string{"Avoid known allergens", "Rinse nasal passages with saline"},
			FollowUp:    []string{"Discuss antihistamine options with a pharmacist"},
		},
		{
			ConditionID: "iron_deficiency_anemia",
			HomeCare:    []string{"Eat iron-rich foods such as leafy greens and legumes"},
			FollowUp:    []string{"See a doctor for a blood count test"},
			SeekCareIf:  []string{"Fainting", "Rapid heartbeat at rest"},
		},
	}
}
