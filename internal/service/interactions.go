package service

import (
	"fmt"
	"strings"

	"github.com/offline-triage-engine/internal/domain"
)

// InteractionRule fires when every drug in Drugs matches some medicine in
// the input list.
type InteractionRule struct {
	Drugs       []string                   `json:"drugs" yaml:"drugs"`
	Severity    domain.InteractionSeverity `json:"severity" yaml:"severity"`
	Description string                     `json:"description" yaml:"description"`
	Mechanism   string                     `json:"mechanism" yaml:"mechanism"`
	Management  string                     `json:"management" yaml:"management"`
}

// DefaultInteractionRules returns the built-in interaction table.
func DefaultInteractionRules() []InteractionRule {
	return []InteractionRule{
		{
			Drugs:       []string{"warfarin", "aspirin"},
			Severity:    domain.MAJOR,
			Description: "Combined anticoagulant and antiplatelet effect greatly increases bleeding risk.",
			Mechanism:   "Aspirin inhibits platelet aggregation and can irritate the gastric mucosa while warfarin blocks clotting factor synthesis.",
			Management:  "Avoid the combination unless prescribed together; monitor INR and watch for bleeding.",
		},
		{
			Drugs:       []string{"warfarin", "ibuprofen"},
			Severity:    domain.MAJOR,
			Description: "NSAIDs raise the risk of serious gastrointestinal bleeding with warfarin.",
			Mechanism:   "Ibuprofen impairs platelet function and damages the gastric lining.",
			Management:  "Prefer paracetamol for pain relief; consult a prescriber before use.",
		},
		{
			Drugs:       []string{"simvastatin", "clarithromycin"},
			Severity:    domain.MAJOR,
			Description: "Greatly increased simvastatin levels with risk of muscle breakdown.",
			Mechanism:   "Clarithromycin strongly inhibits CYP3A4, the main route of simvastatin metabolism.",
			Management:  "Pause simvastatin during the antibiotic course or choose another antibiotic.",
		},
		{
			Drugs:       []string{"sildenafil", "nitroglycerin"},
			Severity:    domain.MAJOR,
			Description: "Risk of a sudden, severe drop in blood pressure.",
			Mechanism:   "Both drugs increase nitric oxide signalling and cause vasodilation.",
			Management:  "Do not combine; nitrates must not be taken within 24 hours of sildenafil.",
		},
		{
			Drugs:       []string{"lisinopril", "spironolactone"},
			Severity:    domain.MODERATE,
			Description: "Increased risk of high blood potassium.",
			Mechanism:   "ACE inhibition and aldosterone antagonism both reduce potassium excretion.",
			Management:  "Monitor potassium and kidney function regularly.",
		},
		{
			Drugs:       []string{"clopidogrel", "omeprazole"},
			Severity:    domain.MODERATE,
			Description: "Reduced antiplatelet effect of clopidogrel.",
			Mechanism:   "Omeprazole inhibits CYP2C19, which activates clopidogrel.",
			Management:  "Consider pantoprazole instead of omeprazole.",
		},
		{
			Drugs:       []string{"ciprofloxacin", "calcium carbonate"},
			Severity:    domain.MODERATE,
			Description: "Reduced absorption of ciprofloxacin.",
			Mechanism:   "Calcium binds ciprofloxacin in the gut and forms insoluble complexes.",
			Management:  "Take ciprofloxacin 2 hours before or 6 hours after calcium products.",
		},
		{
			Drugs:       []string{"amlodipine", "simvastatin"},
			Severity:    domain.MINOR,
			Description: "Modestly increased simvastatin exposure.",
			Mechanism:   "Amlodipine weakly inhibits CYP3A4.",
			Management:  "Limit simvastatin to 20 mg daily when taken with amlodipine.",
		},
	}
}

// DrugInteractionChecker looks medicines up in a fixed rule table. It has
// no mutable state and is safe for concurrent use.
type DrugInteractionChecker struct {
	rules []InteractionRule
}

// NewDrugInteractionChecker validates and normalizes rules. An empty rule
// list uses DefaultInteractionRules.
func NewDrugInteractionChecker(rules []InteractionRule) (*DrugInteractionChecker, error) {
	if len(rules) == 0 {
		rules = DefaultInteractionRules()
	}

	normalized := make([]InteractionRule, 0, len(rules))
	for i, r := range rules {
		if len(r.Drugs) < 2 {
			return nil, fmt.Errorf("interaction rule %d: at least two drugs are required", i)
		}
		if !r.Severity.IsValid() {
			return nil, fmt.Errorf("interaction rule %d: %w: %q", i, domain.ErrInvalidSeverity, r.Severity)
		}
		drugs := make([]string, 0, len(r.Drugs))
		for _, d := range r.Drugs {
			d = strings.ToLower(strings.TrimSpace(d))
			if d == "" {
				return nil, fmt.Errorf("interaction rule %d: empty drug name", i)
			}
			drugs = append(drugs, d)
		}
		r.Drugs = drugs
		normalized = append(normalized, r)
	}
	return &DrugInteractionChecker{rules: normalized}, nil
}

// NewDefaultDrugInteractionChecker creates a checker over the built-in table.
func NewDefaultDrugInteractionChecker() *DrugInteractionChecker {
	checker, err := NewDrugInteractionChecker(nil)
	if err != nil {
		panic(err)
	}
	return checker
}

// RuleCount returns the number of interaction rules.
func (c *DrugInteractionChecker) RuleCount() int {
	return len(c.rules)
}

// Check returns every rule whose drugs all appear, as case-insensitive
// substrings, in some entry of medicines. Findings follow rule order and
// the list is empty, never nil, when nothing fires.
func (c *DrugInteractionChecker) Check(medicines []string) []domain.DrugInteractionFinding {
	lowered := make([]string, 0, len(medicines))
	for _, m := range medicines {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}

	findings := make([]domain.DrugInteractionFinding, 0)
	for _, rule := range c.rules {
		if !allPresent(rule.Drugs, lowered) {
			continue
		}
		findings = append(findings, domain.DrugInteractionFinding{
			Drugs:       append([]string(nil), rule.Drugs...),
			Severity:    rule.Severity,
			Description: rule.Description,
			Mechanism:   rule.Mechanism,
			Management:  rule.Management,
		})
	}
	return findings
}

func allPresent(drugs, medicines []string) bool {
	for _, drug := range drugs {
		found := false
		for _, m := range medicines {
			if strings.Contains(m, drug) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
