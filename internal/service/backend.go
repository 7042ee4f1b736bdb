package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/offline-triage-engine/internal/domain"
)

// ModelOnlyThreshold is the confidence a model prediction needs to be
// added as a candidate the rule matcher did not produce.
const ModelOnlyThreshold = 0.5

// RuleOnlyBackend is the absent model. It is never available.
type RuleOnlyBackend struct{}

// Kind returns BackendRuleOnly.
func (RuleOnlyBackend) Kind() domain.BackendKind { return domain.BackendRuleOnly }

// Available always reports false.
func (RuleOnlyBackend) Available() bool { return false }

// Predict always fails with ErrModelUnavailable.
func (RuleOnlyBackend) Predict(ctx context.Context, symptoms []domain.SymptomObservation) ([]domain.ConditionCandidate, error) {
	return nil, domain.ErrModelUnavailable
}

// NativeModel is a local logistic model: for each condition,
// p = sigmoid(bias + sum(weight[code] * severity/10)).
type NativeModel struct {
	Version    string            `json:"version"`
	Conditions []NativeCondition `json:"conditions"`
}

// NativeCondition is one output of the native model.
type NativeCondition struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	ICDCode     string             `json:"icd_code,omitempty"`
	Description string             `json:"description,omitempty"`
	Categories  []string           `json:"categories,omitempty"`
	Bias        float64            `json:"bias"`
	Weights     map[string]float64 `json:"weights"`
}

// LoadNativeModel reads a JSON model file.
func LoadNativeModel(path string) (*NativeModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	model := &NativeModel{}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if len(model.Conditions) == 0 {
		return nil, fmt.Errorf("model %s has no conditions", path)
	}
	for i, c := range model.Conditions {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("model %s: condition %d needs an id and name", path, i)
		}
	}
	return model, nil
}

// NativeBackend runs a NativeModel in-process.
type NativeBackend struct {
	model *NativeModel
}

// NewNativeBackend creates a backend over model.
func NewNativeBackend(model *NativeModel) *NativeBackend {
	return &NativeBackend{model: model}
}

// Kind returns BackendNative.
func (b *NativeBackend) Kind() domain.BackendKind { return domain.BackendNative }

// Available reports whether a model is loaded.
func (b *NativeBackend) Available() bool {
	return b.model != nil && len(b.model.Conditions) > 0
}

// Predict scores every model condition.
func (b *NativeBackend) Predict(ctx context.Context, symptoms []domain.SymptomObservation) ([]domain.ConditionCandidate, error) {
	if !b.Available() {
		return nil, domain.ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.ConditionCandidate, 0, len(b.model.Conditions))
	for _, c := range b.model.Conditions {
		z := c.Bias
		for _, s := range symptoms {
			z += c.Weights[s.Code] * s.Weight()
		}
		out = append(out, domain.ConditionCandidate{
			ConditionID: c.ID,
			Condition:   c.Name,
			Confidence:  domain.ClampUnit(1 / (1 + math.Exp(-z))),
			ICDCode:     c.ICDCode,
			Description: c.Description,
			Categories:  append([]string(nil), c.Categories...),
		})
	}
	SortCandidates(out)
	return out, nil
}

// Predictor is supplied by an embedding runtime that hosts a model the
// engine cannot load itself.
type Predictor func(ctx context.Context, symptoms []domain.SymptomObservation) ([]domain.ConditionCandidate, error)

// WebBackend delegates to an injected Predictor.
type WebBackend struct {
	predict Predictor
}

// NewWebBackend creates a backend over predict.
func NewWebBackend(predict Predictor) *WebBackend {
	return &WebBackend{predict: predict}
}

// Kind returns BackendWeb.
func (b *WebBackend) Kind() domain.BackendKind { return domain.BackendWeb }

// Available reports whether a Predictor was injected.
func (b *WebBackend) Available() bool { return b.predict != nil }

// Predict forwards to the injected Predictor.
func (b *WebBackend) Predict(ctx context.Context, symptoms []domain.SymptomObservation) ([]domain.ConditionCandidate, error) {
	if b.predict == nil {
		return nil, domain.ErrModelUnavailable
	}
	return b.predict(ctx, symptoms)
}

// BackendOptions configures SelectBackend.
type BackendOptions struct {
	// Kind is "auto", "native", "web" or "rule_only".
	Kind      string
	ModelPath string
	Predictor Predictor
	Logger    *logrus.Logger
}

// SelectBackend picks the inference backend once. A requested backend that
// cannot be built degrades to RuleOnlyBackend with a warning; "auto"
// prefers native, then web.
func SelectBackend(opts BackendOptions) domain.InferenceBackend {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	native := func() domain.InferenceBackend {
		if opts.ModelPath == "" {
			return nil
		}
		model, err := LoadNativeModel(opts.ModelPath)
		if err != nil {
			logger.WithError(err).WithField("error_code", domain.ErrCodeModelUnavailable).Warn("Native model unavailable")
			return nil
		}
		return NewNativeBackend(model)
	}
	web := func() domain.InferenceBackend {
		if opts.Predictor == nil {
			return nil
		}
		return NewWebBackend(opts.Predictor)
	}

	var selected domain.InferenceBackend
	switch opts.Kind {
	case string(domain.BackendNative):
		selected = native()
	case string(domain.BackendWeb):
		selected = web()
	case string(domain.BackendRuleOnly):
		return RuleOnlyBackend{}
	default:
		if selected = native(); selected == nil {
			selected = web()
		}
	}

	if selected == nil {
		if opts.Kind != "" && opts.Kind != "auto" {
			logger.WithField("backend", opts.Kind).Warn("Requested inference backend unavailable, using rule-based mode")
		}
		return RuleOnlyBackend{}
	}
	logger.WithField("backend", selected.Kind()).Info("Inference backend selected")
	return selected
}

// BreakerSettings configures GuardedBackend.
type BreakerSettings struct {
	MaxFailures uint32
	Timeout     time.Duration
}

// GuardedBackend wraps a backend in a circuit breaker so a failing model
// is skipped for Timeout after MaxFailures consecutive errors.
type GuardedBackend struct {
	inner   domain.InferenceBackend
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedBackend wraps inner.
func NewGuardedBackend(inner domain.InferenceBackend, settings BreakerSettings, logger *logrus.Logger) *GuardedBackend {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 3
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        "inference-" + string(inner.Kind()),
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &GuardedBackend{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// Kind is the kind of the wrapped backend.
func (g *GuardedBackend) Kind() domain.BackendKind { return g.inner.Kind() }

// Available is false while the breaker is open.
func (g *GuardedBackend) Available() bool {
	return g.inner.Available() && g.breaker.State() != gobreaker.StateOpen
}

// State exposes the breaker state for status reporting.
func (g *GuardedBackend) State() gobreaker.State {
	return g.breaker.State()
}

// Predict runs the wrapped backend through the breaker.
func (g *GuardedBackend) Predict(ctx context.Context, symptoms []domain.SymptomObservation) ([]domain.ConditionCandidate, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Predict(ctx, symptoms)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		}
		return nil, err
	}
	candidates, _ := result.([]domain.ConditionCandidate)
	return candidates, nil
}

// MergePredictions folds model output into rule candidates. A condition
// both produced keeps the higher confidence; a model-only condition is
// added when it reaches ModelOnlyThreshold. Inputs are not modified.
func MergePredictions(rule, model []domain.ConditionCandidate) []domain.ConditionCandidate {
	out := append(make([]domain.ConditionCandidate, 0, len(rule)+len(model)), rule...)
	index := make(map[string]int, len(out))
	for i, c := range out {
		index[c.ConditionID] = i
	}

	for _, m := range model {
		if m.ConditionID == "" || m.Condition == "" || math.IsNaN(m.Confidence) {
			continue
		}
		m.Confidence = domain.ClampUnit(m.Confidence)
		if i, ok := index[m.ConditionID]; ok {
			if m.Confidence > out[i].Confidence {
				out[i].Confidence = m.Confidence
			}
			continue
		}
		if m.Confidence >= ModelOnlyThreshold {
			index[m.ConditionID] = len(out)
			out = append(out, m)
		}
	}

	SortCandidates(out)
	return out
}
