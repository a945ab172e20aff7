package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	AssetInv  AssetInvConfig  `yaml:"assetinv" mapstructure:"assetinv"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Synthesis SynthesisConfig `yaml:"synthesis" mapstructure:"synthesis"`
	Job       JobConfig       `yaml:"job" mapstructure:"job"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// QueueConfig configures the in-process delivery queue and worker pool.
type QueueConfig struct {
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size"`
	Workers    int `yaml:"workers" mapstructure:"workers"`
}

// ServerConfig configures the intake HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AssetInvConfig holds the asset inventory service settings. Unlike the
// ticketing and doc-search endpoints, asset inventory is a platform-level
// service shared across tenants.
type AssetInvConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// SourcesConfig tunes the context-gathering adapters. ConfigPath optionally
// points at a YAML source-policy file that overrides the inline values.
type SourcesConfig struct {
	ConfigPath          string        `yaml:"config_path" mapstructure:"config_path"`
	HistoryDeadline     time.Duration `yaml:"history_deadline" mapstructure:"history_deadline"`
	HistoryMaxItems     int           `yaml:"history_max_items" mapstructure:"history_max_items"`
	HistoryMinRelevance float64       `yaml:"history_min_relevance" mapstructure:"history_min_relevance"`
	DocsDeadline        time.Duration `yaml:"docs_deadline" mapstructure:"docs_deadline"`
	DocsMaxItems        int           `yaml:"docs_max_items" mapstructure:"docs_max_items"`
	AssetsDeadline      time.Duration `yaml:"assets_deadline" mapstructure:"assets_deadline"`
	DocsCacheSize       int           `yaml:"docs_cache_size" mapstructure:"docs_cache_size"`
	DocsCacheTTLMinutes int           `yaml:"docs_cache_ttl_minutes" mapstructure:"docs_cache_ttl_minutes"`
}

// SynthesisConfig tunes the backend call.
type SynthesisConfig struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// JobConfig tunes the orchestrator.
type JobConfig struct {
	Deadline time.Duration `yaml:"deadline" mapstructure:"deadline"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and ENRICH_* env
// vars, with sensible defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "enrich.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("queue.buffer_size", 256)
	v.SetDefault("queue.workers", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("store.database_url", "")
	v.SetDefault("sources.config_path", "")
	v.SetDefault("assetinv.base_url", "")
	v.SetDefault("assetinv.key", "")
	v.SetDefault("sources.history_deadline", "2s")
	v.SetDefault("sources.history_max_items", 5)
	v.SetDefault("sources.history_min_relevance", 0.2)
	v.SetDefault("sources.docs_deadline", "10s")
	v.SetDefault("sources.docs_max_items", 3)
	v.SetDefault("sources.assets_deadline", "2s")
	v.SetDefault("sources.docs_cache_size", 4096)
	v.SetDefault("sources.docs_cache_ttl_minutes", 60)
	v.SetDefault("synthesis.timeout", "30s")
	v.SetDefault("synthesis.max_tokens", 1024)
	v.SetDefault("job.deadline", "120s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger builds the global zap logger from LogConfig.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
