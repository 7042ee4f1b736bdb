package domain

import (
	"context"
)

// KnowledgeBaseProvider supplies the catalogs the engine matches against.
// Implementations may return partial data; the loader fills missing
// sections from the embedded baseline.
type KnowledgeBaseProvider interface {
	Load(ctx context.Context) (*KnowledgeBase, error)
	Name() string
}

// BackendKind identifies the inference backend variant.
type BackendKind string

const (
	BackendNative   BackendKind = "native"
	BackendWeb      BackendKind = "web"
	BackendRuleOnly BackendKind = "rule_only"
)

// InferenceBackend is an optional model that scores conditions from the
// normalized symptom list. A backend that is not Available is never called.
type InferenceBackend interface {
	Kind() BackendKind
	Available() bool
	Predict(ctx context.Context, symptoms []SymptomObservation) ([]ConditionCandidate, error)
}

// HealthRecordStore persists analysis results on behalf of a downstream
// collaborator. The engine itself never writes records.
type HealthRecordStore interface {
	Save(ctx context.Context, record *HealthRecord) error
	Get(ctx context.Context, id string) (*HealthRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]*HealthRecord, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetKnowledgeBaseConfig() *KnowledgeBaseConfig
	GetInferenceConfig() *InferenceConfig
	Validate() error
}
