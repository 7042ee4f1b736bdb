package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/knowledge"
)

func coldRequest() AnalysisRequest {
	return AnalysisRequest{Symptoms: []domain.SymptomObservation{
		obs("cough", 4), obs("sore_throat", 3), obs("headache", 2),
	}}
}

func assertWellFormed(t *testing.T, r *domain.AnalysisResult) {
	t.Helper()
	require.NotNil(t, r)
	assert.True(t, r.UrgencyLevel.IsValid())
	assert.GreaterOrEqual(t, r.UrgencyScore, domain.MinUrgencyScore)
	assert.LessOrEqual(t, r.UrgencyScore, domain.MaxUrgencyScore)
	assert.GreaterOrEqual(t, r.ConfidenceOverall, 0.0)
	assert.LessOrEqual(t, r.ConfidenceOverall, 1.0)
	assert.NotNil(t, r.Candidates)
	assert.LessOrEqual(t, len(r.Candidates), MaxCandidates)
	for i, c := range r.Candidates {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, r.Candidates[i-1].Confidence, c.Confidence)
		}
	}
	assert.NotNil(t, r.RecommendedActions)
	assert.NotNil(t, r.HomeCareAdvice)
	assert.NotNil(t, r.FollowUpAdvice)
	if r.IsEmergency() {
		assert.True(t, r.RequiresClinician)
		assert.NotEmpty(t, r.EmergencyActions)
	}
}

func TestEngine_CommonCold(t *testing.T) {
	engine, _ := newTestEngine(t)

	r := engine.Analyze(context.Background(), coldRequest())
	assertWellFormed(t, r)

	assert.Equal(t, domain.LOW, r.UrgencyLevel)
	assert.Equal(t, 1.0, r.UrgencyScore)
	assert.False(t, r.RequiresClinician)
	assert.Empty(t, r.EmergencyActions)
	require.Len(t, r.Candidates, 1)
	assert.Equal(t, "Common Cold", r.Candidates[0].Condition)
	assert.InDelta(t, 0.35, r.Candidates[0].Confidence, 1e-9)
	assert.InDelta(t, 0.8, r.ConfidenceOverall, 1e-9)
	assert.Contains(t, r.HomeCareAdvice, "Get plenty of rest")
}

func TestEngine_RedFlagSymptoms(t *testing.T) {
	engine, _ := newTestEngine(t)

	for code := range emergencySymptoms {
		t.Run(code, func(t *testing.T) {
			r := engine.Analyze(context.Background(), AnalysisRequest{
				Symptoms: []domain.SymptomObservation{obs("cough", 2), obs(code, 1)},
			})
			assertWellFormed(t, r)
			assert.Equal(t, domain.EMERGENCY, r.UrgencyLevel)
			assert.True(t, r.RequiresClinician)
			assert.NotEmpty(t, r.EmergencyActions)
			assert.Equal(t, SymptomTriggerConfidence, r.ConfidenceOverall)
		})
	}
}

func TestEngine_RedFlagByFreeText(t *testing.T) {
	engine, _ := newTestEngine(t)
	r := engine.Analyze(context.Background(), AnalysisRequest{
		Symptoms: []domain.SymptomObservation{{Name: "Severe chest pain radiating to arm", Severity: 3}},
	})
	assert.Equal(t, domain.EMERGENCY, r.UrgencyLevel)
	assert.Equal(t, "Possible Cardiac Event", r.Candidates[0].Condition)
}

func TestEngine_SeverityGateBoundary(t *testing.T) {
	engine, _ := newTestEngine(t)

	r := engine.Analyze(context.Background(), AnalysisRequest{Symptoms: []domain.SymptomObservation{obs("headache", 8)}})
	assert.Equal(t, domain.EMERGENCY, r.UrgencyLevel)
	assert.Equal(t, 10.0, r.UrgencyScore)
	assert.NotEmpty(t, r.EmergencyActions)

	r = engine.Analyze(context.Background(), AnalysisRequest{Symptoms: []domain.SymptomObservation{obs("headache", 7)}})
	assert.NotEqual(t, domain.EMERGENCY, r.UrgencyLevel)
	assert.Empty(t, r.EmergencyActions)
}

func TestEngine_ScoreDrivenEmergency(t *testing.T) {
	engine, _ := newTestEngine(t)

	moderate := func(n int) AnalysisRequest {
		req := AnalysisRequest{}
		for i := 0; i < n; i++ {
			req.Symptoms = append(req.Symptoms, obs(fmt.Sprintf("s%02d", i), 5))
		}
		return req
	}

	r := engine.Analyze(context.Background(), moderate(18))
	assertWellFormed(t, r)
	assert.Equal(t, 9.0, r.UrgencyScore)
	assert.Equal(t, domain.EMERGENCY, r.UrgencyLevel)
	assert.True(t, r.RequiresClinician)
	assert.Equal(t, GenericEmergencyActions(), r.EmergencyActions)

	r = engine.Analyze(context.Background(), moderate(17))
	assert.Equal(t, 8.5, r.UrgencyScore)
	assert.Equal(t, domain.HIGH, r.UrgencyLevel)
	assert.True(t, r.RequiresClinician)
	assert.Empty(t, r.EmergencyActions)
}

func TestEngine_CriticalVitalsWithoutSymptoms(t *testing.T) {
	engine, _ := newTestEngine(t)

	r := engine.Analyze(context.Background(), AnalysisRequest{
		Vitals: &domain.VitalSigns{OxygenSaturationPct: floatPtr(85)},
	})
	assertWellFormed(t, r)
	assert.Equal(t, domain.EMERGENCY, r.UrgencyLevel)
	assert.Equal(t, VitalTriggerConfidence, r.ConfidenceOverall)
	assert.Contains(t, r.Candidates[0].Description, "oxygen saturation")
}

func TestEngine_CriticalVitalsWithMildSymptoms(t *testing.T) {
	engine, _ := newTestEngine(t)
	r := engine.Analyze(context.Background(), AnalysisRequest{
		Symptoms: []domain.SymptomObservation{obs("cough", 3)},
		Vitals:   &domain.VitalSigns{TemperatureC: floatPtr(40.5)},
	})
	assert.Equal(t, domain.EMERGENCY, r.UrgencyLevel)
	assert.Equal(t, VitalTriggerConfidence, r.ConfidenceOverall)
}

func TestEngine_DiastolicOnlyReadingIsNotAnEmergency(t *testing.T) {
	engine, _ := newTestEngine(t)
	r := engine.Analyze(context.Background(), AnalysisRequest{
		Symptoms: []domain.SymptomObservation{obs("cough", 2)},
		Vitals:   &domain.VitalSigns{BloodPressure: &domain.BloodPressure{Diastolic: 80}},
	})
	assertWellFormed(t, r)
	assert.Equal(t, domain.LOW, r.UrgencyLevel)
	assert.Empty(t, r.EmergencyActions)
}

func TestEngine_NoSymptoms(t *testing.T) {
	engine, _ := newTestEngine(t)

	r := engine.Analyze(context.Background(), AnalysisRequest{})
	assertWellFormed(t, r)
	assert.Equal(t, domain.LOW, r.UrgencyLevel)
	assert.Empty(t, r.Candidates)
	assert.InDelta(t, 0.5, r.ConfidenceOverall, 1e-9)

	r = engine.Analyze(context.Background(), AnalysisRequest{
		Symptoms: []domain.SymptomObservation{{}},
		Vitals:   &domain.VitalSigns{HeartRateBpm: intPtr(110)},
	})
	assertWellFormed(t, r)
	assert.Equal(t, domain.LOW, r.UrgencyLevel)
	assert.InDelta(t, 0.7, r.ConfidenceOverall, 1e-9)
}

func TestEngine_DemographicAndVitalAdjustments(t *testing.T) {
	engine, _ := newTestEngine(t)
	req := AnalysisRequest{
		Symptoms: []domain.SymptomObservation{
			obs("painful_urination", 6), obs("frequent_urination", 6), obs("lower_abdominal_pain", 6),
		},
		Gender: "female",
	}

	r := engine.Analyze(context.Background(), req)
	require.NotEmpty(t, r.Candidates)
	assert.Equal(t, "urinary_tract_infection", r.Candidates[0].ConditionID)
	assert.InDelta(t, 0.78, r.Candidates[0].Confidence, 1e-9)

	req.Vitals = &domain.VitalSigns{TemperatureC: floatPtr(38.5)}
	r = engine.Analyze(context.Background(), req)
	assert.Equal(t, 1.0, r.Candidates[0].Confidence)
	assertWellFormed(t, r)
}

func TestEngine_IgnoresOutOfRangeAge(t *testing.T) {
	engine, hook := newTestEngine(t)
	req := coldRequest()
	req.Age = intPtr(200)

	r := engine.Analyze(context.Background(), req)
	assert.Equal(t, domain.LOW, r.UrgencyLevel)
	assert.True(t, hasEntry(hook, logrus.WarnLevel, "Ignoring out-of-range age"))
}

func TestEngine_RepeatedCallsAreIdentical(t *testing.T) {
	engine, _ := newTestEngine(t)
	req := AnalysisRequest{
		Symptoms: []domain.SymptomObservation{obs("fever", 6), obs("body_aches", 5), obs("fatigue", 6), obs("cough", 4)},
		Age:      intPtr(70),
		Gender:   "male",
		Vitals:   &domain.VitalSigns{TemperatureC: floatPtr(38.6), HeartRateBpm: intPtr(104)},
	}

	first, err := json.Marshal(engine.Analyze(context.Background(), req))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(engine.Analyze(context.Background(), req))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestEngine_ConcurrentUse(t *testing.T) {
	engine, _ := newTestEngine(t, WithLazyLoad(true))
	want, err := json.Marshal(freshAnalyze(t, coldRequest()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, _ := json.Marshal(engine.Analyze(context.Background(), coldRequest()))
			if string(got) != string(want) {
				errs <- string(got)
			}
		}()
		go func() {
			defer wg.Done()
			if len(engine.CheckDrugInteractions([]string{"warfarin", "aspirin"})) != 1 {
				errs <- "interaction mismatch"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("unexpected concurrent result: %s", e)
	}
}

// freshAnalyze runs a request against a new engine.
func freshAnalyze(t *testing.T, req AnalysisRequest) *domain.AnalysisResult {
	t.Helper()
	engine, _ := newTestEngine(t)
	return engine.Analyze(context.Background(), req)
}

func TestEngine_KnowledgeBaseFailureFallsBackToBaseline(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Load", mock.Anything).Return(nil, errors.New("disk unreadable"))

	engine, _ := newTestEngine(t, WithProvider(provider))
	r := engine.Analyze(context.Background(), coldRequest())
	assertWellFormed(t, r)
	assert.Equal(t, "common_cold", r.Candidates[0].ConditionID)

	status := engine.Status()
	assert.True(t, status.Initialized)
	assert.Equal(t, knowledge.BaselineSource, status.KnowledgeBaseSource)
	assert.Equal(t, knowledge.Baseline().Size(), status.KnowledgeBaseSize)
}

func TestEngine_KnowledgeBaseTimeoutFallsBackToBaseline(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Load", mock.Anything).
		Run(func(mock.Arguments) { time.Sleep(200 * time.Millisecond) }).
		Return(knowledge.Baseline(), nil)

	engine, _ := newTestEngine(t, WithProvider(provider), WithLoadTimeout(20*time.Millisecond))
	r := engine.Analyze(context.Background(), coldRequest())
	assert.Equal(t, domain.LOW, r.UrgencyLevel)
	assert.Equal(t, knowledge.BaselineSource, engine.Status().KnowledgeBaseSource)
}

func TestEngine_UsesProviderKnowledge(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Load", mock.Anything).Return(&domain.KnowledgeBase{
		Version:         "derm-1",
		SymptomsCatalog: []domain.SymptomDefinition{{Code: "rash", Name: "Rash"}, {Code: "itching", Name: "Itching"}},
		ConditionPatterns: []domain.ConditionPattern{
			{ID: "dermatitis", Name: "Contact Dermatitis", Symptoms: []string{"rash", "itching"}, Threshold: 0.3},
		},
		Protocols: []domain.Protocol{{ConditionID: "dermatitis", HomeCare: []string{"Avoid the irritant"}}},
	}, nil).Once()

	engine, _ := newTestEngine(t, WithProvider(provider))
	r := engine.Analyze(context.Background(), AnalysisRequest{
		Symptoms: []domain.SymptomObservation{obs("rash", 6), obs("itching", 6)},
	})
	require.Len(t, r.Candidates, 1)
	assert.Equal(t, "Contact Dermatitis", r.Candidates[0].Condition)
	assert.Contains(t, r.HomeCareAdvice, "Avoid the irritant")
	assert.Contains(t, engine.Status().KnowledgeBaseSource, "mock")
	provider.AssertExpectations(t)
}

func TestEngine_RedFlagsSurviveExternalCatalog(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Load", mock.Anything).Return(&domain.KnowledgeBase{
		SymptomsCatalog: []domain.SymptomDefinition{
			{Code: "bleeding", Name: "Bleeding"},
			{Code: "breathlessness", Name: "Breathlessness", Aliases: []string{"difficulty breathing"}},
		},
		ConditionPatterns: []domain.ConditionPattern{
			{ID: "wound", Name: "Minor Wound", Symptoms: []string{"bleeding"}, Threshold: 0.3},
			{ID: "asthma", Name: "Asthma", Symptoms: []string{"breathlessness"}, Threshold: 0.3},
		},
	}, nil).Once()

	engine, _ := newTestEngine(t, WithProvider(provider))
	for _, code := range []string{"severe_bleeding", "difficulty_breathing"} {
		t.Run(code, func(t *testing.T) {
			r := engine.Analyze(context.Background(), AnalysisRequest{
				Symptoms: []domain.SymptomObservation{obs(code, 3)},
			})
			assert.Equal(t, domain.EMERGENCY, r.UrgencyLevel)
			assert.NotEmpty(t, r.EmergencyActions)
		})
	}
	provider.AssertExpectations(t)
}

func TestEngine_LazyLoad(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Load", mock.Anything).Return(knowledge.Baseline(), nil).Once()

	engine, _ := newTestEngine(t, WithProvider(provider), WithLazyLoad(true))
	assert.False(t, engine.Status().Initialized)
	provider.AssertNotCalled(t, "Load", mock.Anything)

	engine.Analyze(context.Background(), coldRequest())
	engine.Analyze(context.Background(), coldRequest())
	assert.True(t, engine.Status().Initialized)
	provider.AssertNumberOfCalls(t, "Load", 1)
}

func TestEngine_Reload(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Load", mock.Anything).Return(nil, errors.New("offline")).Once()
	provider.On("Load", mock.Anything).Return(&domain.KnowledgeBase{
		ConditionPatterns: []domain.ConditionPattern{
			{ID: "dermatitis", Name: "Contact Dermatitis", Symptoms: []string{"rash"}, Threshold: 0.3},
		},
	}, nil).Once()

	engine, _ := newTestEngine(t, WithProvider(provider))
	assert.Equal(t, knowledge.BaselineSource, engine.Status().KnowledgeBaseSource)

	status := engine.Reload(context.Background())
	assert.Contains(t, status.KnowledgeBaseSource, "mock")

	r := engine.Analyze(context.Background(), AnalysisRequest{Symptoms: []domain.SymptomObservation{obs("rash", 5)}})
	require.Len(t, r.Candidates, 1)
	assert.Equal(t, "dermatitis", r.Candidates[0].ConditionID)
}

func TestEngine_PanicReturnsFallback(t *testing.T) {
	broken := func([]domain.ConditionCandidate, domain.PatientContext) []domain.ConditionCandidate {
		panic("adjuster exploded")
	}
	engine, hook := newTestEngine(t, WithAdjusters(broken))

	r := engine.Analyze(context.Background(), coldRequest())
	assertWellFormed(t, r)
	assert.Equal(t, FallbackResult(), r)
	assert.True(t, hasEntry(hook, logrus.ErrorLevel, "Triage analysis failed, returning safe fallback"))

	// Emergencies short-circuit before the adjusters run.
	r = engine.Analyze(context.Background(), AnalysisRequest{Symptoms: []domain.SymptomObservation{obs("seizure", 5)}})
	assert.Equal(t, domain.EMERGENCY, r.UrgencyLevel)
}

func TestEngine_ModelPredictionsMerge(t *testing.T) {
	backend := NewWebBackend(func(context.Context, []domain.SymptomObservation) ([]domain.ConditionCandidate, error) {
		return []domain.ConditionCandidate{
			{ConditionID: "influenza", Condition: "Influenza", Confidence: 0.9},
			{ConditionID: "sinusitis", Condition: "Sinusitis", Confidence: 0.6},
			{ConditionID: "pneumonia", Condition: "Pneumonia", Confidence: 0.2},
		}, nil
	})
	engine, _ := newTestEngine(t, WithBackend(backend))

	r := engine.Analyze(context.Background(), coldRequest())
	assertWellFormed(t, r)
	require.Len(t, r.Candidates, 3)
	assert.Equal(t, "influenza", r.Candidates[0].ConditionID)
	assert.Equal(t, "sinusitis", r.Candidates[1].ConditionID)
	assert.Equal(t, "common_cold", r.Candidates[2].ConditionID)

	status := engine.Status()
	assert.True(t, status.HasMLModel)
	assert.Equal(t, "web", status.Backend)
}

func TestEngine_ModelFailureIsNotFatal(t *testing.T) {
	backend := NewWebBackend(func(context.Context, []domain.SymptomObservation) ([]domain.ConditionCandidate, error) {
		return nil, errors.New("runtime gone")
	})
	engine, hook := newTestEngine(t, WithBackend(backend))

	r := engine.Analyze(context.Background(), coldRequest())
	require.Len(t, r.Candidates, 1)
	assert.Equal(t, "common_cold", r.Candidates[0].ConditionID)
	assert.True(t, hasEntry(hook, logrus.WarnLevel, "Model prediction failed, continuing rule-based"))
}

func TestEngine_StatusWithoutModel(t *testing.T) {
	engine, _ := newTestEngine(t)
	status := engine.Status()
	assert.True(t, status.Initialized)
	assert.False(t, status.HasMLModel)
	assert.Equal(t, "rule_only", status.Backend)
	assert.Greater(t, status.KnowledgeBaseSize, 0)
}

func TestNewEngine_RejectsBadCacheSize(t *testing.T) {
	_, err := NewEngine(context.Background(), WithNormalizerCacheSize(0))
	assert.Error(t, err)
}
