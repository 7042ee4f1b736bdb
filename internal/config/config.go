// Package config loads engine configuration from a YAML file, TRIAGE_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. TRIAGE_SERVER_PORT.
const EnvPrefix = "TRIAGE"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a configuration manager backed by a private viper
// instance. configFile may be empty to search the default locations.
func NewManager(configFile string) (*Manager, error) {
	return NewManagerWithViper(viper.New(), configFile)
}

// NewManagerWithViper creates a manager over an existing viper instance,
// typically one that already has command-line flags bound to it.
func NewManagerWithViper(v *viper.Viper, configFile string) (*Manager, error) {
	m := &Manager{v: v, configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v
	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("triage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/offline-triage/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// The config file is optional; defaults and env vars cover every key.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)

	// Knowledge base defaults
	v.SetDefault("knowledge_base.source", domain.SourceBaseline)
	v.SetDefault("knowledge_base.file_path", "")
	v.SetDefault("knowledge_base.sqlite_path", DataPath("knowledge.db"))
	v.SetDefault("knowledge_base.redis_url", "redis://localhost:6379/0")
	v.SetDefault("knowledge_base.redis_key", "triage:knowledge_base")
	v.SetDefault("knowledge_base.postgres_dsn", "")
	v.SetDefault("knowledge_base.load_timeout", "5s")
	v.SetDefault("knowledge_base.lazy", false)

	// Inference defaults
	v.SetDefault("inference.backend", "auto")
	v.SetDefault("inference.model_path", "")
	v.SetDefault("inference.breaker_max_failures", 3)
	v.SetDefault("inference.breaker_timeout", "30s")

	// Records defaults
	v.SetDefault("records.enabled", false)
	v.SetDefault("records.db_path", DataPath("records.db"))

	// Cache defaults
	v.SetDefault("cache.normalizer_size", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// MCP defaults
	v.SetDefault("mcp.server_name", "offline-triage-engine")
	v.SetDefault("mcp.server_version", "v0.1.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetKnowledgeBaseConfig returns knowledge base configuration
func (m *Manager) GetKnowledgeBaseConfig() *domain.KnowledgeBaseConfig {
	return &m.config.KnowledgeBase
}

// GetInferenceConfig returns inference backend configuration
func (m *Manager) GetInferenceConfig() *domain.InferenceConfig {
	return &m.config.Inference
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration value independently of how it was loaded.
func Validate(config *domain.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must not be negative: %v", config.Server.RateLimitRPS)
	}
	if config.Server.RateLimitRPS > 0 && config.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive when rate limiting is enabled")
	}

	kb := config.KnowledgeBase
	switch kb.Source {
	case domain.SourceBaseline:
	case domain.SourceFile:
		if kb.FilePath == "" {
			return fmt.Errorf("knowledge_base.file_path is required for source %q", kb.Source)
		}
	case domain.SourceSQLite:
		if kb.SQLitePath == "" {
			return fmt.Errorf("knowledge_base.sqlite_path is required for source %q", kb.Source)
		}
	case domain.SourceRedis:
		if kb.RedisURL == "" || kb.RedisKey == "" {
			return fmt.Errorf("knowledge_base.redis_url and redis_key are required for source %q", kb.Source)
		}
	case domain.SourcePostgres:
		if kb.PostgresDSN == "" {
			return fmt.Errorf("knowledge_base.postgres_dsn is required for source %q", kb.Source)
		}
	default:
		return fmt.Errorf("invalid knowledge base source: %s", kb.Source)
	}
	if kb.LoadTimeout <= 0 {
		return fmt.Errorf("knowledge_base.load_timeout must be positive")
	}

	switch config.Inference.Backend {
	case "auto", string(domain.BackendNative), string(domain.BackendWeb), string(domain.BackendRuleOnly):
	default:
		return fmt.Errorf("invalid inference backend: %s", config.Inference.Backend)
	}
	if config.Inference.Backend == string(domain.BackendNative) && config.Inference.ModelPath == "" {
		return fmt.Errorf("inference.model_path is required for the native backend")
	}

	if config.Records.Enabled && config.Records.DBPath == "" {
		return fmt.Errorf("records.db_path is required when records are enabled")
	}

	if config.Cache.NormalizerSize <= 0 {
		return fmt.Errorf("cache.normalizer_size must be positive")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}
