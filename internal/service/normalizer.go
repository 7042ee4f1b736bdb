package service

import (
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
)

// DefaultNormalizerCacheSize bounds the fuzzy-resolution cache.
const DefaultNormalizerCacheSize = 512

// SymptomNormalizer maps free-form symptom input onto catalog codes.
type SymptomNormalizer struct {
	logger  *logrus.Logger
	codes   map[string]string // canonical code -> display name
	aliases map[string]string // canonical name or alias -> code
	phrases []phrase
	cache   *lru.Cache
}

// phrase is a catalog name or alias split into tokens for containment
// matching.
type phrase struct {
	tokens []string
	code   string
	order  int
}

// NewSymptomNormalizer indexes catalog. cacheSize must be positive.
func NewSymptomNormalizer(catalog []domain.SymptomDefinition, cacheSize int, logger *logrus.Logger) (*SymptomNormalizer, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer cache: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}

	n := &SymptomNormalizer{
		logger:  logger,
		codes:   make(map[string]string, len(catalog)),
		aliases: make(map[string]string),
		cache:   cache,
	}

	for i, def := range catalog {
		code := CanonicalCode(def.Code)
		if code == "" {
			continue
		}
		if _, dup := n.codes[code]; dup {
			continue
		}
		n.codes[code] = def.Name
		for _, text := range append([]string{def.Name}, def.Aliases...) {
			key := CanonicalCode(text)
			if key == "" {
				continue
			}
			if _, taken := n.aliases[key]; !taken {
				n.aliases[key] = code
			}
			n.phrases = append(n.phrases, phrase{tokens: strings.Split(key, "_"), code: code, order: i})
		}
		n.phrases = append(n.phrases, phrase{tokens: strings.Split(code, "_"), code: code, order: i})
	}

	// Longest phrase wins; ties go to catalog order.
	sort.SliceStable(n.phrases, func(a, b int) bool {
		pa, pb := n.phrases[a], n.phrases[b]
		if len(pa.tokens) != len(pb.tokens) {
			return len(pa.tokens) > len(pb.tokens)
		}
		return pa.order < pb.order
	})

	return n, nil
}

// CanonicalCode lower-cases raw, trims it and joins words with underscores.
func CanonicalCode(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(raw)), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t' || r == ',' || r == '.' || r == '/'
	})
	return strings.Join(fields, "_")
}

// Resolve maps text onto a catalog code by exact code, then name or alias,
// then phrase containment ("severe chest pain" resolves to chest_pain).
func (n *SymptomNormalizer) Resolve(text string) (string, bool) {
	key := CanonicalCode(text)
	if key == "" {
		return "", false
	}
	if _, ok := n.codes[key]; ok {
		return key, true
	}
	if code, ok := n.aliases[key]; ok {
		return code, true
	}

	if v, ok := n.cache.Get(key); ok {
		code := v.(string)
		return code, code != ""
	}

	code := n.containment(strings.Split(key, "_"))
	n.cache.Add(key, code)
	return code, code != ""
}

func (n *SymptomNormalizer) containment(tokens []string) string {
	for _, p := range n.phrases {
		if containsRun(tokens, p.tokens) {
			return p.code
		}
	}
	return ""
}

// containsRun reports whether needle occurs as a contiguous run in haystack.
func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Normalize returns a new list with canonical codes, effective severities
// and duplicates collapsed to the highest severity at the position of the
// first occurrence. Red-flag codes are kept as given. Symptoms that do not
// resolve keep their canonical code.
func (n *SymptomNormalizer) Normalize(symptoms []domain.SymptomObservation) []domain.SymptomObservation {
	out := make([]domain.SymptomObservation, 0, len(symptoms))
	index := make(map[string]int, len(symptoms))

	for i, s := range symptoms {
		code, ok := redFlagCode(s)
		if !ok {
			code, ok = n.Resolve(s.Code)
		}
		if !ok {
			code, ok = n.Resolve(s.Name)
		}
		if !ok {
			code = CanonicalCode(s.Code)
			if code == "" {
				code = CanonicalCode(s.Name)
			}
		}
		if code == "" {
			n.logger.WithField("index", i).Warn("Dropping symptom with no code or name")
			continue
		}

		s.Code = code
		s.Severity = s.EffectiveSeverity()
		if s.Name == "" {
			s.Name = n.codes[code]
		}

		if j, dup := index[code]; dup {
			if s.Severity > out[j].Severity {
				out[j].Severity = s.Severity
			}
			continue
		}
		index[code] = len(out)
		out = append(out, s)
	}

	return out
}

// redFlagCode returns the canonical code of s when it names a red flag.
// Red flags bypass catalog resolution so an external catalog cannot alias
// them onto a milder code.
func redFlagCode(s domain.SymptomObservation) (string, bool) {
	raw := s.Code
	if strings.TrimSpace(raw) == "" {
		raw = s.Name
	}
	code := CanonicalCode(raw)
	return code, IsEmergencySymptom(code)
}

// CacheLen is the number of cached fuzzy resolutions.
func (n *SymptomNormalizer) CacheLen() int {
	return n.cache.Len()
}
