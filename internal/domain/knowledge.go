package domain

import (
	"errors"
	"fmt"
)

// SymptomDefinition is one entry in the symptom catalog. Aliases are
// alternative names that normalize onto Code.
type SymptomDefinition struct {
	Code       string   `json:"code" yaml:"code"`
	Name       string   `json:"name" yaml:"name"`
	Aliases    []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	BodySystem string   `json:"body_system,omitempty" yaml:"body_system,omitempty"`
}

// ConditionPattern maps a named condition onto the symptom codes that
// characterize it. Threshold is the per-condition inclusion cutoff for the
// pattern match score and is tuned independently per condition.
type ConditionPattern struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	ICDCode     string   `json:"icd_code,omitempty" yaml:"icd_code,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Symptoms    []string `json:"symptoms" yaml:"symptoms"`
	Threshold   float64  `json:"threshold" yaml:"threshold"`
	Categories  []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Validate checks that a pattern can be scored.
func (p *ConditionPattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("condition pattern validation: %w", errors.New("id is required"))
	}
	if p.Name == "" {
		return fmt.Errorf("condition pattern %s: %w", p.ID, errors.New("name is required"))
	}
	if len(p.Symptoms) == 0 {
		return fmt.Errorf("condition pattern %s: %w", p.ID, errors.New("at least one symptom is required"))
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("condition pattern %s: threshold %.2f outside [0,1]", p.ID, p.Threshold)
	}
	return nil
}

// Protocol is condition-specific care guidance attached to a pattern ID.
type Protocol struct {
	ConditionID string   `json:"condition_id" yaml:"condition_id"`
	HomeCare    []string `json:"home_care,omitempty" yaml:"home_care,omitempty"`
	FollowUp    []string `json:"follow_up,omitempty" yaml:"follow_up,omitempty"`
	SeekCareIf  []string `json:"seek_care_if,omitempty" yaml:"seek_care_if,omitempty"`
}

// KnowledgeBase is the in-memory catalog used for matching. It is built
// once by a loader and treated as read-only for the rest of the process;
// replacing it means building a new value, never editing this one.
type KnowledgeBase struct {
	Version           string              `json:"version,omitempty" yaml:"version,omitempty"`
	Source            string              `json:"-" yaml:"-"`
	SymptomsCatalog   []SymptomDefinition `json:"symptoms" yaml:"symptoms"`
	ConditionPatterns []ConditionPattern  `json:"condition_patterns" yaml:"condition_patterns"`
	Protocols         []Protocol          `json:"protocols" yaml:"protocols"`
}

// Size is the total number of catalog entries across all sections.
func (kb *KnowledgeBase) Size() int {
	if kb == nil {
		return 0
	}
	return len(kb.SymptomsCatalog) + len(kb.ConditionPatterns) + len(kb.Protocols)
}

// IsEmpty reports whether the knowledge base has nothing to match against.
func (kb *KnowledgeBase) IsEmpty() bool {
	return kb == nil || len(kb.ConditionPatterns) == 0
}

// Validate checks every condition pattern. A knowledge base with no
// patterns fails with ErrEmptyKnowledgeBase.
func (kb *KnowledgeBase) Validate() error {
	if kb.IsEmpty() {
		return ErrEmptyKnowledgeBase
	}
	seen := make(map[string]bool, len(kb.ConditionPatterns))
	for i := range kb.ConditionPatterns {
		p := &kb.ConditionPatterns[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate condition pattern id %s", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// ProtocolFor returns the protocol for a condition ID, or nil.
func (kb *KnowledgeBase) ProtocolFor(conditionID string) *Protocol {
	if kb == nil {
		return nil
	}
	for i := range kb.Protocols {
		if kb.Protocols[i].ConditionID == conditionID {
			return &kb.Protocols[i]
		}
	}
	return nil
}
