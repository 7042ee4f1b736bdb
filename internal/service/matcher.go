package service

import (
	"sort"

	"github.com/offline-triage-engine/internal/domain"
)

// ConditionPatternMatcher scores symptom sets against condition patterns.
type ConditionPatternMatcher struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	pattern  domain.ConditionPattern
	required []string
}

// NewConditionPatternMatcher compiles the patterns once. Duplicate codes in
// a pattern's symptom list count once.
func NewConditionPatternMatcher(patterns []domain.ConditionPattern) *ConditionPatternMatcher {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		seen := make(map[string]bool, len(p.Symptoms))
		required := make([]string, 0, len(p.Symptoms))
		for _, code := range p.Symptoms {
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			required = append(required, code)
		}
		if len(required) == 0 {
			continue
		}
		compiled = append(compiled, compiledPattern{pattern: p, required: required})
	}
	return &ConditionPatternMatcher{patterns: compiled}
}

// Score returns the match score of symptoms against one pattern: the sum of
// matched severity weights divided by the full required-set size, so that
// partial matches are penalized.
func Score(pattern domain.ConditionPattern, symptoms []domain.SymptomObservation) float64 {
	m := NewConditionPatternMatcher([]domain.ConditionPattern{pattern})
	if len(m.patterns) == 0 {
		return 0
	}
	return m.score(0, weightsByCode(symptoms))
}

// Match returns a candidate for every pattern whose score exceeds its own
// threshold, sorted by descending confidence. Ties keep pattern order.
func (m *ConditionPatternMatcher) Match(symptoms []domain.SymptomObservation) []domain.ConditionCandidate {
	weights := weightsByCode(symptoms)
	candidates := make([]domain.ConditionCandidate, 0)

	for i := range m.patterns {
		p := &m.patterns[i].pattern
		score := m.score(i, weights)
		if score <= p.Threshold {
			continue
		}
		candidates = append(candidates, domain.ConditionCandidate{
			ConditionID: p.ID,
			Condition:   p.Name,
			Confidence:  domain.ClampUnit(score),
			ICDCode:     p.ICDCode,
			Description: p.Description,
			Categories:  append([]string(nil), p.Categories...),
		})
	}

	SortCandidates(candidates)
	return candidates
}

func (m *ConditionPatternMatcher) score(i int, weights map[string]float64) float64 {
	cp := m.patterns[i]
	var sum float64
	for _, code := range cp.required {
		sum += weights[code]
	}
	return sum / float64(len(cp.required))
}

// weightsByCode maps each code to its highest severity weight.
func weightsByCode(symptoms []domain.SymptomObservation) map[string]float64 {
	weights := make(map[string]float64, len(symptoms))
	for _, s := range symptoms {
		if w := s.Weight(); w > weights[s.Code] {
			weights[s.Code] = w
		}
	}
	return weights
}

// SortCandidates orders candidates by descending confidence, keeping the
// existing order for equal confidence.
func SortCandidates(candidates []domain.ConditionCandidate) {
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Confidence > candidates[b].Confidence
	})
}

// TopCandidates returns at most n candidates as a new slice.
func TopCandidates(candidates []domain.ConditionCandidate, n int) []domain.ConditionCandidate {
	if len(candidates) < n {
		n = len(candidates)
	}
	return append(make([]domain.ConditionCandidate, 0, n), candidates[:n]...)
}
