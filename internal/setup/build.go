// Package setup wires the runtime components of the triage engine from
// configuration and installs the tool server into desktop MCP clients.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/knowledge"
	"github.com/offline-triage-engine/internal/records"
	"github.com/offline-triage-engine/internal/service"
)

// Components are the long-lived objects a command needs.
type Components struct {
	Engine   *service.Engine
	Backend  domain.InferenceBackend
	Provider domain.KnowledgeBaseProvider
	// Records is nil when record keeping is disabled.
	Records domain.HealthRecordStore

	closers []io.Closer
}

// Close releases databases and clients opened by Build.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	predictor       service.Predictor
	skipRecords     bool
	extraEngineOpts []service.Option
}

// WithPredictor supplies the callback used by the web inference backend.
func WithPredictor(p service.Predictor) BuildOption {
	return func(o *buildOptions) { o.predictor = p }
}

// WithoutRecords skips opening the record store even when enabled.
func WithoutRecords() BuildOption {
	return func(o *buildOptions) { o.skipRecords = true }
}

// WithEngineOptions appends engine options after the configured ones.
func WithEngineOptions(opts ...service.Option) BuildOption {
	return func(o *buildOptions) { o.extraEngineOpts = append(o.extraEngineOpts, opts...) }
}

// Build constructs the engine and its collaborators from cfg. On error
// everything opened so far is closed.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, opts ...BuildOption) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Components{}

	provider, closers, err := NewProvider(cfg.KnowledgeBase, logger)
	if err != nil {
		return nil, err
	}
	c.Provider = provider
	c.closers = append(c.closers, closers...)

	c.Backend = NewBackend(cfg.Inference, o.predictor, logger)

	engineOpts := []service.Option{
		service.WithLogger(logger),
		service.WithProvider(provider),
		service.WithLoadTimeout(cfg.KnowledgeBase.LoadTimeout),
		service.WithLazyLoad(cfg.KnowledgeBase.Lazy),
		service.WithNormalizerCacheSize(cfg.Cache.NormalizerSize),
		service.WithBackend(c.Backend),
	}
	engineOpts = append(engineOpts, o.extraEngineOpts...)

	engine, err := service.NewEngine(ctx, engineOpts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	c.Engine = engine

	if cfg.Records.Enabled && !o.skipRecords {
		store, err := records.NewSQLiteStore(cfg.Records.DBPath)
		if err != nil {
			c.Close()
			return nil, domain.WrapTriageError(domain.ErrCodeStorage, "failed to open health record store", err)
		}
		c.Records = store
		c.closers = append(c.closers, store)
		logger.WithField("path", cfg.Records.DBPath).Info("Health record store opened")
	}

	return c, nil
}

// NewProvider returns the knowledge base provider for cfg.Source. A file
// path configured next to a database or redis source becomes a second
// provider in a chain. A database or redis source that cannot be opened
// is not an error: the engine runs on the file or the baseline dataset.
func NewProvider(cfg domain.KnowledgeBaseConfig, logger *logrus.Logger) (domain.KnowledgeBaseProvider, []io.Closer, error) {
	var (
		primary domain.KnowledgeBaseProvider
		closers []io.Closer
	)

	switch cfg.Source {
	case "", domain.SourceBaseline:
		return knowledge.NewBaselineProvider(), nil, nil
	case domain.SourceFile:
		if cfg.FilePath == "" {
			return nil, nil, errors.New("knowledge base file path is required")
		}
		return knowledge.NewFileProvider(cfg.FilePath), nil, nil
	case domain.SourceSQLite:
		p, err := knowledge.NewSQLiteProvider(cfg.SQLitePath)
		if err != nil {
			return fallbackProvider(cfg, logger, err, logrus.Fields{"path": cfg.SQLitePath}), nil, nil
		}
		primary = p
		closers = append(closers, p)
	case domain.SourceRedis:
		p, err := knowledge.NewRedisProviderFromURL(cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			return fallbackProvider(cfg, logger, err, logrus.Fields{"key": cfg.RedisKey}), nil, nil
		}
		primary = p
		closers = append(closers, p)
	case domain.SourcePostgres:
		p, err := knowledge.NewPostgresProvider(cfg.PostgresDSN)
		if err != nil {
			return fallbackProvider(cfg, logger, err, nil), nil, nil
		}
		primary = p
		closers = append(closers, p)
	default:
		return nil, nil, fmt.Errorf("invalid knowledge base source: %s", cfg.Source)
	}

	if cfg.FilePath != "" {
		return knowledge.NewChainProvider(logger, primary, knowledge.NewFileProvider(cfg.FilePath)), closers, nil
	}
	return primary, closers, nil
}

// fallbackProvider logs why the configured source is unusable and returns
// the file provider when one is configured, otherwise the baseline.
func fallbackProvider(cfg domain.KnowledgeBaseConfig, logger *logrus.Logger, err error, fields logrus.Fields) domain.KnowledgeBaseProvider {
	logger.WithError(err).WithFields(fields).WithFields(logrus.Fields{
		"source":     cfg.Source,
		"error_code": domain.ErrCodeKnowledgeBaseLoad,
	}).Warn("Knowledge base database unavailable")
	if cfg.FilePath == "" {
		return knowledge.NewBaselineProvider()
	}
	return knowledge.NewFileProvider(cfg.FilePath)
}

// NewBackend selects the inference backend and puts a circuit breaker in
// front of anything other than rule-only mode.
func NewBackend(cfg domain.InferenceConfig, predictor service.Predictor, logger *logrus.Logger) domain.InferenceBackend {
	backend := service.SelectBackend(service.BackendOptions{
		Kind:      cfg.Backend,
		ModelPath: cfg.ModelPath,
		Predictor: predictor,
		Logger:    logger,
	})
	if backend.Kind() == domain.BackendRuleOnly {
		return backend
	}
	return service.NewGuardedBackend(backend, service.BreakerSettings{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
	}, logger)
}
