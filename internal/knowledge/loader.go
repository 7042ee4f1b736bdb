package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/offline-triage-engine/internal/domain"
)

// DefaultLoadTimeout bounds a provider load before the loader falls back to
// the baseline dataset.
const DefaultLoadTimeout = 5 * time.Second

const loadKey = "knowledge_base"

// Loader owns the process knowledge base. The first Ensure call loads it;
// concurrent callers share that in-flight load. Once set, the knowledge
// base is only ever replaced as a whole by Reload.
type Loader struct {
	provider domain.KnowledgeBaseProvider
	timeout  time.Duration
	logger   *logrus.Logger

	group   singleflight.Group
	current atomic.Pointer[domain.KnowledgeBase]
	mu      sync.Mutex
	lastErr error
}

// NewLoader creates a loader over provider. A nil provider means the
// embedded baseline only; a non-positive timeout uses DefaultLoadTimeout.
func NewLoader(provider domain.KnowledgeBaseProvider, timeout time.Duration, logger *logrus.Logger) *Loader {
	if provider == nil {
		provider = NewBaselineProvider()
	}
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Ensure returns the loaded knowledge base, loading it on first use. It
// never returns nil: provider failures and timeouts yield the baseline.
// The returned error is non-nil only when the waiting caller's own ctx ends
// before the shared load completes; the load itself keeps going.
func (l *Loader) Ensure(ctx context.Context) (*domain.KnowledgeBase, error) {
	if kb := l.current.Load(); kb != nil {
		return kb, nil
	}

	ch := l.group.DoChan(loadKey, func() (interface{}, error) {
		if kb := l.current.Load(); kb != nil {
			return kb, nil
		}
		kb := l.load(context.WithoutCancel(ctx))
		l.current.Store(kb)
		return kb, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*domain.KnowledgeBase), nil
	case <-ctx.Done():
		return Baseline(), fmt.Errorf("waiting for knowledge base: %w", ctx.Err())
	}
}

// Reload builds a new knowledge base from the provider and swaps it in
// atomically. Readers holding the previous value keep using it unchanged.
func (l *Loader) Reload(ctx context.Context) *domain.KnowledgeBase {
	v, _, _ := l.group.Do(loadKey+":reload", func() (interface{}, error) {
		kb := l.load(context.WithoutCancel(ctx))
		l.current.Store(kb)
		return kb, nil
	})
	return v.(*domain.KnowledgeBase)
}

// Ready reports whether a knowledge base has been loaded.
func (l *Loader) Ready() bool {
	return l.current.Load() != nil
}

// Size is the catalog size of the loaded knowledge base, zero before load.
func (l *Loader) Size() int {
	return l.current.Load().Size()
}

// Source labels where the loaded knowledge base came from.
func (l *Loader) Source() string {
	if kb := l.current.Load(); kb != nil {
		return kb.Source
	}
	return ""
}

// LastError returns the most recent provider failure, if any. It is
// informational; a failed load still produced a usable knowledge base.
func (l *Loader) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Loader) setLastError(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}

type loadResult struct {
	kb  *domain.KnowledgeBase
	err error
}

// load runs one provider load under the timeout and always returns a
// usable knowledge base.
func (l *Loader) load(parent context.Context) *domain.KnowledgeBase {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, l.timeout)
	defer cancel()

	// The provider runs on its own goroutine so one that ignores ctx still
	// cannot block past the timeout.
	done := make(chan loadResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- loadResult{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		kb, err := l.provider.Load(ctx)
		done <- loadResult{kb: kb, err: err}
	}()

	var res loadResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = loadResult{err: ctx.Err()}
	}

	fields := logrus.Fields{
		"provider": l.provider.Name(),
		"duration": time.Since(start).String(),
	}

	if res.err == nil && res.kb == nil {
		res.err = ErrNilKnowledgeBase
	}
	if res.err != nil {
		err := domain.WrapTriageError(domain.ErrCodeKnowledgeBaseLoad, "knowledge base load failed", res.err)
		l.setLastError(err)
		if errors.Is(res.err, context.DeadlineExceeded) {
			fields["timeout"] = l.timeout.String()
		}
		l.logger.WithFields(fields).WithError(res.err).Warn("Knowledge base load failed, using baseline dataset")
		return Baseline()
	}

	kb := Merge(res.kb, l.provider.Name())
	l.setLastError(nil)
	fields["source"] = kb.Source
	fields["size"] = kb.Size()
	l.logger.WithFields(fields).Info("Knowledge base loaded")
	return kb
}

// ErrNilKnowledgeBase is reported when a provider returns neither data nor an error.
var ErrNilKnowledgeBase = errors.New("provider returned no knowledge base")

// Merge fills the sections a provider left empty from the baseline and
// labels the result with the provider's Source, or providerName if unset.
// An external pattern set that fails validation is replaced as a whole;
// the other sections are kept. The input is not modified.
func Merge(external *domain.KnowledgeBase, providerName string) *domain.KnowledgeBase {
	base := Baseline()
	if external == nil {
		return base
	}

	merged := &domain.KnowledgeBase{
		Version:           external.Version,
		SymptomsCatalog:   append([]domain.SymptomDefinition(nil), external.SymptomsCatalog...),
		ConditionPatterns: append([]domain.ConditionPattern(nil), external.ConditionPatterns...),
		Protocols:         append([]domain.Protocol(nil), external.Protocols...),
	}

	name := providerName
	if external.Source != "" {
		name = external.Source
	}

	substituted := false
	if len(merged.SymptomsCatalog) == 0 {
		merged.SymptomsCatalog = base.SymptomsCatalog
		substituted = true
	}
	if merged.Validate() != nil {
		merged.ConditionPatterns = base.ConditionPatterns
		substituted = true
	}
	if len(merged.Protocols) == 0 {
		merged.Protocols = base.Protocols
		substituted = true
	}

	switch {
	case name == BaselineSource:
		merged.Source = BaselineSource
	case substituted:
		merged.Source = name + "+" + BaselineSource
	default:
		merged.Source = name
	}
	if merged.Version == "" {
		merged.Version = base.Version
	}
	return merged
}
