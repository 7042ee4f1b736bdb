package service

import (
	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
)

// EmergencySeverityThreshold is the reported severity at or above which any
// symptom is treated as an emergency on its own.
const EmergencySeverityThreshold = 8

// Confidence reported by the emergency path.
const (
	SymptomTriggerConfidence = 0.95
	VitalTriggerConfidence   = 0.90
)

// Trigger kinds, in the order they are checked.
const (
	TriggerRedFlag  = "red_flag_symptom"
	TriggerSeverity = "severity"
	TriggerVitals   = "critical_vitals"
)

type emergencyProfile struct {
	condition   string
	icdCode     string
	description string
	actions     []string
}

// emergencySymptoms is the fixed red-flag set. Presence of any of these
// codes is an emergency regardless of reported severity.
var emergencySymptoms = map[string]emergencyProfile{
	"chest_pain": {
		condition:   "Possible Cardiac Event",
		icdCode:     "I24.9",
		description: "Chest pain may indicate a heart attack or other acute cardiac problem.",
		actions: []string{
			"Call emergency services immediately",
			"Chew one adult aspirin if not allergic and no bleeding risk",
			"Sit down and stay as calm and still as possible",
			"Loosen tight clothing",
		},
	},
	"difficulty_breathing": {
		condition:   "Acute Respiratory Distress",
		icdCode:     "R06.0",
		description: "Severe difficulty breathing needs urgent assessment.",
		actions: []string{
			"Call emergency services immediately",
			"Sit upright and try to breathe slowly",
			"Use a prescribed rescue inhaler if available",
		},
	},
	"severe_bleeding": {
		condition:   "Hemorrhage",
		icdCode:     "R58",
		description: "Heavy bleeding can quickly become life-threatening.",
		actions: []string{
			"Call emergency services immediately",
			"Apply firm, direct pressure to the wound with a clean cloth",
			"Keep the injured area raised if possible",
		},
	},
	"loss_of_consciousness": {
		condition:   "Syncope",
		icdCode:     "R55",
		description: "Loss of consciousness requires emergency evaluation.",
		actions: []string{
			"Call emergency services immediately",
			"Lay the person on their side in the recovery position",
			"Check breathing and start CPR if they are not breathing",
		},
	},
	"stroke_symptoms": {
		condition:   "Possible Stroke",
		icdCode:     "I63.9",
		description: "Facial drooping, arm weakness or speech difficulty may indicate a stroke.",
		actions: []string{
			"Call emergency services immediately",
			"Note the time symptoms started",
			"Do not give food, drink or medication",
		},
	},
	"seizure": {
		condition:   "Seizure",
		icdCode:     "R56.9",
		description: "A seizure needs emergency care, especially if it is the first or lasts over five minutes.",
		actions: []string{
			"Call emergency services immediately",
			"Move nearby objects away and cushion the head",
			"Do not put anything in the mouth",
			"Turn the person on their side once the seizure stops",
		},
	},
	"severe_allergic_reaction": {
		condition:   "Anaphylaxis",
		icdCode:     "T78.2",
		description: "A severe allergic reaction can close the airway within minutes.",
		actions: []string{
			"Use an epinephrine auto-injector if available",
			"Call emergency services immediately",
			"Lie flat with legs raised unless breathing is difficult",
		},
	},
	"suicidal_thoughts": {
		condition:   "Mental Health Crisis",
		icdCode:     "R45.851",
		description: "Thoughts of suicide or self-harm need immediate support.",
		actions: []string{
			"Contact emergency services or a crisis line now",
			"Stay with someone you trust",
			"Remove access to means of self-harm",
		},
	},
}

var genericEmergencyActions = []string{
	"Call emergency services immediately",
	"Do not drive yourself to hospital",
	"Stay with someone until help arrives",
	"Keep a list of current medications ready for responders",
}

// IsEmergencySymptom reports whether code is in the red-flag set.
func IsEmergencySymptom(code string) bool {
	_, ok := emergencySymptoms[code]
	return ok
}

// GenericEmergencyActions returns a copy of the fallback safety actions.
func GenericEmergencyActions() []string {
	return append([]string(nil), genericEmergencyActions...)
}

// EmergencyTrigger describes why the emergency gate fired.
type EmergencyTrigger struct {
	Triggered   bool
	Kind        string
	SymptomCode string
	Reason      string
}

// EmergencyDetector is the priority gate that runs before any weighted
// analysis. When it fires, its result is final.
type EmergencyDetector struct {
	logger *logrus.Logger
}

// NewEmergencyDetector creates an emergency detector
func NewEmergencyDetector(logger *logrus.Logger) *EmergencyDetector {
	return &EmergencyDetector{logger: logger}
}

// Detect checks red-flag codes first, then any severity at or above the
// threshold, then critical vitals. Within each check the first symptom in
// input order wins.
func (d *EmergencyDetector) Detect(symptoms []domain.SymptomObservation, vitals *domain.VitalSigns) EmergencyTrigger {
	for _, s := range symptoms {
		if IsEmergencySymptom(s.Code) {
			return EmergencyTrigger{Triggered: true, Kind: TriggerRedFlag, SymptomCode: s.Code, Reason: "red-flag symptom " + s.Code}
		}
	}

	for _, s := range symptoms {
		if s.EffectiveSeverity() >= EmergencySeverityThreshold {
			return EmergencyTrigger{Triggered: true, Kind: TriggerSeverity, SymptomCode: s.Code, Reason: "severe " + s.Code}
		}
	}

	if assessment := AssessVitals(vitals); assessment.IsCritical {
		return EmergencyTrigger{Triggered: true, Kind: TriggerVitals, Reason: assessment.Reason}
	}

	return EmergencyTrigger{}
}

// BuildResult creates the terminal EMERGENCY result for a fired trigger.
func (d *EmergencyDetector) BuildResult(trigger EmergencyTrigger) *domain.AnalysisResult {
	confidence := SymptomTriggerConfidence
	if trigger.Kind == TriggerVitals {
		confidence = VitalTriggerConfidence
	}

	candidate := domain.ConditionCandidate{
		ConditionID: "medical_emergency",
		Condition:   "Medical Emergency",
		Confidence:  confidence,
		Description: "Emergency signs detected: " + trigger.Reason + ".",
	}
	actions := GenericEmergencyActions()

	if profile, ok := emergencySymptoms[trigger.SymptomCode]; ok {
		candidate.ConditionID = trigger.SymptomCode
		candidate.Condition = profile.condition
		candidate.ICDCode = profile.icdCode
		candidate.Description = profile.description
		actions = append([]string(nil), profile.actions...)
	}

	if d.logger != nil {
		d.logger.WithFields(logrus.Fields{
			"trigger":      trigger.Kind,
			"symptom_code": trigger.SymptomCode,
			"reason":       trigger.Reason,
		}).Warn("Emergency detected")
	}

	return &domain.AnalysisResult{
		UrgencyLevel:       domain.EMERGENCY,
		UrgencyScore:       domain.MaxUrgencyScore,
		Candidates:         []domain.ConditionCandidate{candidate},
		RecommendedActions: append([]string(nil), actions...),
		RequiresClinician:  true,
		EmergencyActions:   actions,
		HomeCareAdvice:     []string{},
		FollowUpAdvice:     []string{"Follow up with your doctor after emergency care"},
		ConfidenceOverall:  confidence,
	}
}
