package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/offline-triage-engine/internal/domain"
)

// ErrSnapshotMissing is returned when the configured key holds no snapshot.
var ErrSnapshotMissing = errors.New("knowledge base snapshot not found")

// RedisClient is the subset of the redis client the provider uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisProvider reads a JSON knowledge base snapshot stored under one key.
// It lets several offline nodes on a local network share a curated
// catalog; when redis is unreachable the loader falls back as usual.
type RedisProvider struct {
	client RedisClient
	key    string
	closer func() error
}

// NewRedisProvider creates a provider over an existing client.
func NewRedisProvider(client RedisClient, key string) *RedisProvider {
	return &RedisProvider{client: client, key: key}
}

// NewRedisProviderFromURL parses url and creates a client for it. No
// connection is made until Load.
func NewRedisProviderFromURL(url, key string) (*RedisProvider, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.MaxRetries = 1
	client := redis.NewClient(opts)
	return &RedisProvider{client: client, key: key, closer: client.Close}, nil
}

// Name implements domain.KnowledgeBaseProvider.
func (p *RedisProvider) Name() string { return "redis:" + p.key }

// Load implements domain.KnowledgeBaseProvider.
func (p *RedisProvider) Load(ctx context.Context) (*domain.KnowledgeBase, error) {
	val, err := p.client.Get(ctx, p.key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, p.key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base snapshot: %w", err)
	}

	kb := &domain.KnowledgeBase{}
	if err := json.Unmarshal(val, kb); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge base snapshot: %w", err)
	}
	return kb, nil
}

// Publish stores kb as the snapshot under the provider's key.
func (p *RedisProvider) Publish(ctx context.Context, kb *domain.KnowledgeBase) error {
	if err := kb.Validate(); err != nil {
		return fmt.Errorf("refusing to publish invalid knowledge base: %w", err)
	}
	data, err := json.Marshal(kb)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge base: %w", err)
	}
	return p.client.Set(ctx, p.key, data, 0).Err()
}

// Close releases the client if this provider created it.
func (p *RedisProvider) Close() error {
	if p.closer != nil {
		return p.closer()
	}
	return nil
}
