package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
)

// ChainProvider tries providers in order and returns the first success.
type ChainProvider struct {
	providers []domain.KnowledgeBaseProvider
	logger    *logrus.Logger
}

// NewChainProvider creates a provider that falls through the given list.
func NewChainProvider(logger *logrus.Logger, providers ...domain.KnowledgeBaseProvider) *ChainProvider {
	return &ChainProvider{providers: providers, logger: logger}
}

// Name implements domain.KnowledgeBaseProvider.
func (c *ChainProvider) Name() string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Load implements domain.KnowledgeBaseProvider. The returned knowledge
// base carries the name of the provider that served it in Source.
func (c *ChainProvider) Load(ctx context.Context) (*domain.KnowledgeBase, error) {
	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		kb, err := p.Load(ctx)
		if err == nil && kb != nil {
			kb.Source = p.Name()
			return kb, nil
		}
		if err == nil {
			err = ErrNilKnowledgeBase
		}
		if c.logger != nil {
			c.logger.WithField("provider", p.Name()).WithError(err).Debug("Knowledge base provider failed, trying next")
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		return nil, errors.New("no knowledge base providers configured")
	}
	return nil, errors.Join(errs...)
}
