// Package service implements the offline triage pipeline: symptom
// normalization, the emergency gate, condition pattern matching,
// confidence adjustment, urgency scoring and recommendations, plus the
// independent drug-interaction checker.
package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/knowledge"
)

// MaxCandidates is the number of candidates returned per analysis.
const MaxCandidates = 3

// FallbackConfidence is reported when an analysis had to be abandoned.
const FallbackConfidence = 0.3

// AnalysisRequest is the input to Analyze.
type AnalysisRequest struct {
	Symptoms []domain.SymptomObservation `json:"symptoms"`
	Age      *int                        `json:"age,omitempty"`
	Gender   string                      `json:"gender,omitempty"`
	Vitals   *domain.VitalSigns          `json:"vitals,omitempty"`
}

// Engine composes the triage pipeline behind a single entry point. It is
// safe for concurrent use: the knowledge base and everything derived from
// it are immutable once built, and every call keeps its state local.
type Engine struct {
	logger       *logrus.Logger
	loader       *knowledge.Loader
	provider     domain.KnowledgeBaseProvider
	loadTimeout  time.Duration
	lazy         bool
	cacheSize    int
	backend      domain.InferenceBackend
	detector     *EmergencyDetector
	adjusters    []Adjuster
	interactions *DrugInteractionChecker

	snapshot atomic.Pointer[snapshot]
}

// snapshot bundles a knowledge base with the indexes built from it.
type snapshot struct {
	kb         *domain.KnowledgeBase
	matcher    *ConditionPatternMatcher
	normalizer *SymptomNormalizer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithProvider sets the knowledge base source. The default is the embedded baseline.
func WithProvider(provider domain.KnowledgeBaseProvider) Option {
	return func(e *Engine) { e.provider = provider }
}

// WithLoadTimeout bounds the knowledge base load.
func WithLoadTimeout(d time.Duration) Option {
	return func(e *Engine) { e.loadTimeout = d }
}

// WithLazyLoad defers the knowledge base load to the first Analyze call.
func WithLazyLoad(lazy bool) Option {
	return func(e *Engine) { e.lazy = lazy }
}

// WithBackend sets the inference backend, selected once by the caller.
func WithBackend(backend domain.InferenceBackend) Option {
	return func(e *Engine) { e.backend = backend }
}

// WithNormalizerCacheSize sets the size of the symptom resolution cache.
func WithNormalizerCacheSize(size int) Option {
	return func(e *Engine) { e.cacheSize = size }
}

// WithAdjusters replaces the default age, gender, vitals pipeline.
func WithAdjusters(adjusters ...Adjuster) Option {
	return func(e *Engine) { e.adjusters = adjusters }
}

// WithInteractionChecker replaces the built-in drug interaction table.
func WithInteractionChecker(checker *DrugInteractionChecker) Option {
	return func(e *Engine) { e.interactions = checker }
}

// NewEngine builds an engine. Unless lazy loading is requested the
// knowledge base is loaded before NewEngine returns; a failed load is not
// an error because the baseline dataset takes its place.
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		cacheSize: DefaultNormalizerCacheSize,
		adjusters: DefaultAdjusters(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logrus.New()
	}
	if e.cacheSize <= 0 {
		return nil, fmt.Errorf("normalizer cache size must be positive, got %d", e.cacheSize)
	}
	if e.backend == nil {
		e.backend = RuleOnlyBackend{}
	}
	if e.interactions == nil {
		e.interactions = NewDefaultDrugInteractionChecker()
	}
	e.detector = NewEmergencyDetector(e.logger)
	e.loader = knowledge.NewLoader(e.provider, e.loadTimeout, e.logger)

	if !e.lazy {
		if _, err := e.ensureSnapshot(ctx); err != nil {
			return nil, err
		}
	}

	e.logger.WithFields(logrus.Fields{
		"backend":      e.backend.Kind(),
		"model_ready":  e.backend.Available(),
		"lazy_load":    e.lazy,
		"kb_ready":     e.loader.Ready(),
		"interactions": e.interactions.RuleCount(),
	}).Info("Triage engine initialized")

	return e, nil
}

// ensureSnapshot returns indexes for the current knowledge base, building
// them when the loader has produced a new one.
func (e *Engine) ensureSnapshot(ctx context.Context) (*snapshot, error) {
	kb, err := e.loader.Ensure(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Knowledge base not ready, analysing with baseline dataset")
	}

	if snap := e.snapshot.Load(); snap != nil && snap.kb == kb {
		return snap, nil
	}

	normalizer, nerr := NewSymptomNormalizer(kb.SymptomsCatalog, e.cacheSize, e.logger)
	if nerr != nil {
		return nil, nerr
	}
	snap := &snapshot{
		kb:         kb,
		matcher:    NewConditionPatternMatcher(kb.ConditionPatterns),
		normalizer: normalizer,
	}
	// Only cache indexes for the loader's own knowledge base, not for a
	// baseline handed to a caller whose wait was cut short.
	if err == nil {
		e.snapshot.Store(snap)
	}
	return snap, nil
}

// Analyze triages one presentation. It always returns a result: any
// internal failure yields FallbackResult instead.
func (e *Engine) Analyze(ctx context.Context, req AnalysisRequest) (result *domain.AnalysisResult) {
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := domain.NewTriageError(domain.ErrCodeInternalComputation, "analysis aborted", fmt.Sprint(r))
			e.logger.WithFields(logrus.Fields{
				"error_code": err.Code,
				"panic":      err.Details,
			}).Error("Triage analysis failed, returning safe fallback")
			result = FallbackResult()
		}
	}()

	// Step 1: Ensure the knowledge base is ready
	snap, err := e.ensureSnapshot(ctx)
	if err != nil {
		e.logger.WithError(err).WithField("error_code", domain.ErrCodeInternalComputation).Error("Failed to prepare knowledge base indexes")
		return FallbackResult()
	}

	// Step 2: Normalize input
	symptoms := snap.normalizer.Normalize(req.Symptoms)
	pctx := e.patientContext(req)

	// Step 3: Emergency gate; terminal when triggered
	if trigger := e.detector.Detect(symptoms, pctx.Vitals); trigger.Triggered {
		return e.detector.BuildResult(trigger)
	}

	// Step 4: Nothing to analyse
	if len(symptoms) == 0 {
		e.logger.WithField("error_code", domain.ErrCodeInputValidation).Info("No symptoms reported, returning advisory result")
		return AdvisoryResult(pctx.Vitals)
	}

	// Step 5: Pattern matching
	candidates := snap.matcher.Match(symptoms)

	// Step 6: Optional model predictions
	candidates = e.mergeModel(ctx, symptoms, candidates)

	// Step 7: Adjustments in fixed order
	candidates = RunAdjusters(candidates, pctx, e.adjusters...)

	// Step 8: Keep the strongest candidates
	candidates = TopCandidates(candidates, MaxCandidates)

	// Step 9: Urgency
	score := ScoreUrgency(symptoms, pctx.Vitals)
	level := MapUrgencyLevel(score)

	// Step 10: Recommendations
	var protocol *domain.Protocol
	if len(candidates) > 0 {
		protocol = snap.kb.ProtocolFor(candidates[0].ConditionID)
	}
	recs := GenerateRecommendations(score, protocol)

	// Step 11: Overall confidence
	confidence := EstimateConfidence(len(symptoms), pctx.Vitals)

	result = &domain.AnalysisResult{
		UrgencyLevel:       level,
		UrgencyScore:       score,
		Candidates:         candidates,
		RecommendedActions: recs.Actions,
		RequiresClinician:  level.Rank() >= domain.HIGH.Rank(),
		HomeCareAdvice:     recs.HomeCare,
		FollowUpAdvice:     recs.FollowUp,
		ConfidenceOverall:  confidence,
	}
	if level == domain.EMERGENCY {
		result.EmergencyActions = GenericEmergencyActions()
	}

	e.logger.WithFields(logrus.Fields{
		"urgency_level":   level,
		"urgency_score":   score,
		"candidates":      len(candidates),
		"symptom_count":   len(symptoms),
		"processing_time": time.Since(startTime).String(),
	}).Info("Triage analysis completed")

	return result
}

func (e *Engine) patientContext(req AnalysisRequest) domain.PatientContext {
	pctx := domain.PatientContext{
		Gender: domain.ParseGender(req.Gender),
		Vitals: req.Vitals,
	}
	if req.Age != nil {
		if *req.Age < 0 || *req.Age > 150 {
			e.logger.WithFields(logrus.Fields{
				"error_code": domain.ErrCodeInputValidation,
				"age":        *req.Age,
			}).Warn("Ignoring out-of-range age")
		} else {
			age := *req.Age
			pctx.Age = &age
		}
	}
	return pctx
}

func (e *Engine) mergeModel(ctx context.Context, symptoms []domain.SymptomObservation, candidates []domain.ConditionCandidate) []domain.ConditionCandidate {
	if !e.backend.Available() {
		return candidates
	}
	predictions, err := e.backend.Predict(ctx, symptoms)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"error_code": domain.ErrCodeModelUnavailable,
			"backend":    e.backend.Kind(),
		}).Warn("Model prediction failed, continuing rule-based")
		return candidates
	}
	return MergePredictions(candidates, predictions)
}

// CheckDrugInteractions is independent of triage and may run concurrently
// with Analyze.
func (e *Engine) CheckDrugInteractions(medicines []string) []domain.DrugInteractionFinding {
	return e.interactions.Check(medicines)
}

// Status reports readiness for health checks.
func (e *Engine) Status() domain.EngineStatus {
	return domain.EngineStatus{
		Initialized:         e.loader.Ready(),
		KnowledgeBaseSize:   e.loader.Size(),
		KnowledgeBaseSource: e.loader.Source(),
		HasMLModel:          e.backend.Available(),
		Backend:             string(e.backend.Kind()),
	}
}

// Reload re-reads the knowledge base from the provider and replaces it.
func (e *Engine) Reload(ctx context.Context) domain.EngineStatus {
	e.loader.Reload(ctx)
	if _, err := e.ensureSnapshot(ctx); err != nil {
		e.logger.WithError(err).Error("Failed to rebuild indexes after reload")
	}
	return e.Status()
}

// FallbackResult is the safe result returned when analysis fails.
func FallbackResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		UrgencyLevel: domain.MEDIUM,
		UrgencyScore: 5,
		Candidates:   []domain.ConditionCandidate{},
		RecommendedActions: []string{
			"We could not complete an automated assessment",
			"Contact a healthcare provider to discuss your symptoms",
			"Call emergency services if you feel seriously unwell",
		},
		RequiresClinician: true,
		HomeCareAdvice:    append([]string(nil), baseHomeCare...),
		FollowUpAdvice:    []string{"Arrange a consultation with a doctor as soon as possible"},
		ConfidenceOverall: FallbackConfidence,
	}
}

// AdvisoryResult is returned when no usable symptoms were reported and no
// emergency sign is present.
func AdvisoryResult(vitals *domain.VitalSigns) *domain.AnalysisResult {
	score := ScoreUrgency(nil, vitals)
	level := MapUrgencyLevel(score)
	return &domain.AnalysisResult{
		UrgencyLevel: level,
		UrgencyScore: score,
		Candidates:   []domain.ConditionCandidate{},
		RecommendedActions: []string{
			"Describe your symptoms to get a more specific assessment",
			"Watch for any new or worsening symptoms",
		},
		RequiresClinician: level.Rank() >= domain.HIGH.Rank(),
		HomeCareAdvice:    append([]string(nil), baseHomeCare...),
		FollowUpAdvice:    []string{"Consult a healthcare provider if you begin to feel unwell"},
		ConfidenceOverall: EstimateConfidence(0, vitals),
	}
}
