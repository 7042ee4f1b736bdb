package domain

import (
	"time"
)

// HealthRecord is a persisted copy of an AnalysisResult, written by the API
// layer when record keeping is enabled.
type HealthRecord struct {
	ID           string          `json:"id"`
	RequestID    string          `json:"request_id,omitempty"`
	PatientRef   string          `json:"patient_ref,omitempty"`
	UrgencyLevel UrgencyLevel    `json:"urgency_level"`
	UrgencyScore float64         `json:"urgency_score"`
	SymptomCodes []string        `json:"symptom_codes"`
	Result       *AnalysisResult `json:"result"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RecordFilter narrows a record listing. Zero values mean no constraint.
type RecordFilter struct {
	PatientRef   string
	UrgencyLevel UrgencyLevel
	Since        time.Time
	Limit        int
	Offset       int
}

// Config represents the main application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
	Inference     InferenceConfig     `mapstructure:"inference"`
	Records       RecordsConfig       `mapstructure:"records"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	MCP           MCPConfig           `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// Knowledge base sources
const (
	SourceBaseline = "baseline"
	SourceFile     = "file"
	SourceSQLite   = "sqlite"
	SourceRedis    = "redis"
	SourcePostgres = "postgres"
)

// KnowledgeBaseConfig selects and tunes the knowledge-base provider
type KnowledgeBaseConfig struct {
	Source      string        `mapstructure:"source"`
	FilePath    string        `mapstructure:"file_path"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	RedisURL    string        `mapstructure:"redis_url"`
	RedisKey    string        `mapstructure:"redis_key"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	Lazy        bool          `mapstructure:"lazy"`
}

// InferenceConfig selects the optional inference backend
type InferenceConfig struct {
	Backend            string        `mapstructure:"backend"` // "auto", "native", "web", "rule_only"
	ModelPath          string        `mapstructure:"model_path"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
}

// RecordsConfig controls downstream health-record persistence
type RecordsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	NormalizerSize int `mapstructure:"normalizer_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
