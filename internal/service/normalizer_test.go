package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/knowledge"
)

func newBaselineNormalizer(t *testing.T) (*SymptomNormalizer, *logrus.Logger) {
	t.Helper()
	logger, _ := newNullLogger()
	n, err := NewSymptomNormalizer(knowledge.Baseline().SymptomsCatalog, 16, logger)
	require.NoError(t, err)
	return n, logger
}

func TestCanonicalCode(t *testing.T) {
	assert.Equal(t, "chest_pain", CanonicalCode("  Chest Pain "))
	assert.Equal(t, "sore_throat", CanonicalCode("sore-throat"))
	assert.Equal(t, "a_b_c", CanonicalCode("a, b/c."))
	assert.Equal(t, "", CanonicalCode("   "))
}

func TestSymptomNormalizer_Resolve(t *testing.T) {
	n, _ := newBaselineNormalizer(t)

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"cough", "cough", true},
		{"Chest Pain", "chest_pain", true},
		{"stomach ache", "abdominal_pain", true},
		{"passed out", "loss_of_consciousness", true},
		{"severe chest pain", "chest_pain", true},
		{"sharp lower abdominal pain", "lower_abdominal_pain", true},
		{"rash", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		code, ok := n.Resolve(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, code, tt.in)
	}
}

func TestSymptomNormalizer_CachesFuzzyResolutionsOnly(t *testing.T) {
	n, _ := newBaselineNormalizer(t)

	n.Resolve("cough")
	n.Resolve("pyrexia")
	assert.Equal(t, 0, n.CacheLen())

	n.Resolve("severe chest pain")
	n.Resolve("severe chest pain")
	n.Resolve("rash")
	assert.Equal(t, 2, n.CacheLen())

	code, ok := n.Resolve("rash")
	assert.False(t, ok)
	assert.Empty(t, code)
}

func TestSymptomNormalizer_Normalize(t *testing.T) {
	logger, hook := newNullLogger()
	n, err := NewSymptomNormalizer(knowledge.Baseline().SymptomsCatalog, 16, logger)
	require.NoError(t, err)

	in := []domain.SymptomObservation{
		{Code: "Cough", Severity: 3},
		{Name: "Stomach ache"},
		{Code: "", Name: ""},
		{Code: "coughing", Severity: 6},
		{Code: "Skin Rash", Severity: 15},
		{Code: "fever", Severity: -2},
	}
	out := n.Normalize(in)

	require.Len(t, out, 4)
	assert.Equal(t, "cough", out[0].Code)
	assert.Equal(t, 6, out[0].Severity)
	assert.Equal(t, "Cough", out[0].Name)

	assert.Equal(t, "abdominal_pain", out[1].Code)
	assert.Equal(t, domain.DefaultSeverity, out[1].Severity)

	assert.Equal(t, "skin_rash", out[2].Code)
	assert.Equal(t, domain.MaxSeverity, out[2].Severity)

	assert.Equal(t, "fever", out[3].Code)
	assert.Equal(t, domain.MinSeverity, out[3].Severity)

	assert.Equal(t, "Cough", in[0].Code, "input must not be modified")
	assert.True(t, hasEntry(hook, logrus.WarnLevel, "Dropping symptom with no code or name"))
}

func TestSymptomNormalizer_KeepsRedFlagCodes(t *testing.T) {
	logger, _ := newNullLogger()
	catalog := []domain.SymptomDefinition{
		{Code: "bleeding", Name: "Bleeding"},
		{Code: "breathlessness", Name: "Breathlessness", Aliases: []string{"difficulty breathing"}},
	}
	n, err := NewSymptomNormalizer(catalog, 16, logger)
	require.NoError(t, err)

	out := n.Normalize([]domain.SymptomObservation{
		{Code: "Severe Bleeding", Severity: 3},
		{Code: "difficulty_breathing", Severity: 3},
		{Name: "Chest pain"},
		{Code: "minor bleeding", Severity: 2},
	})

	require.Len(t, out, 4)
	assert.Equal(t, "severe_bleeding", out[0].Code)
	assert.Equal(t, "difficulty_breathing", out[1].Code)
	assert.Equal(t, "chest_pain", out[2].Code)
	assert.Equal(t, "bleeding", out[3].Code)
}

func TestNewSymptomNormalizer_InvalidCacheSize(t *testing.T) {
	_, err := NewSymptomNormalizer(nil, 0, nil)
	assert.Error(t, err)
}
