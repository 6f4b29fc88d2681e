package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Raster   RasterConfig   `yaml:"raster"`
	History  HistoryConfig  `yaml:"history"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	LogLevel string         `yaml:"log_level"`
}

// ProviderConfig selects and credentials one vision backend.
type ProviderConfig struct {
	Kind string `yaml:"kind"` // ollama | volcengine | openrouter

	OllamaHost  string `yaml:"ollama_host"`
	OllamaPort  int    `yaml:"ollama_port"`
	OllamaModel string `yaml:"ollama_model"`

	VolcengineAPIKey string `yaml:"volcengine_api_key"`
	VolcengineModel  string `yaml:"volcengine_model"` // inference endpoint ID, e.g. ep-xxx

	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
	OpenRouterModel  string `yaml:"openrouter_model"`

	Timeout time.Duration `yaml:"timeout"`
}

// PipelineConfig controls per-document processing behavior.
type PipelineConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`   // after an empty-amount response
	NetworkDelay time.Duration `yaml:"network_delay"` // after a transport failure
	Concurrency  int           `yaml:"concurrency"`
	RatePerSec   float64       `yaml:"rate_per_sec"` // provider call rate limit, 0 = unlimited

	Validate bool `yaml:"validate"` // gate non-invoice files before extraction
	Verify   bool `yaml:"verify"`   // authenticity assessment pass
	Classify bool `yaml:"classify"` // type/category classification pass
}

// RasterConfig controls PDF first-page rasterization.
type RasterConfig struct {
	Pdftoppm string `yaml:"pdftoppm"` // binary name or absolute path; if empty -> probe
}

// HistoryConfig controls the run-history store.
type HistoryConfig struct {
	DBPath string `yaml:"db_path"` // sqlite file; ":memory:" for ephemeral runs
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9090"; empty disables the listener
}

// LoadConfig loads configuration from an optional YAML file, then applies
// environment variable overrides on top.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ConfigurationError(fmt.Sprintf("read config file %q", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, ConfigurationError(fmt.Sprintf("parse config file %q", path), err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind:            "ollama",
			OllamaHost:      "192.168.110.219",
			OllamaPort:      11434,
			OllamaModel:     "qwen3-vl:8b",
			OpenRouterModel: "google/gemini-2.0-flash-exp:free",
			Timeout:         300 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxRetries:   3,
			RetryDelay:   2 * time.Second,
			NetworkDelay: 3 * time.Second,
			Concurrency:  1,
		},
		History: HistoryConfig{
			DBPath: "invoice_history.db",
		},
		LogLevel: "info",
	}
}

func applyEnv(cfg *Config) {
	cfg.Provider.Kind = getEnv("OCR_PROVIDER", cfg.Provider.Kind)
	cfg.Provider.OllamaHost = getEnv("OLLAMA_HOST", cfg.Provider.OllamaHost)
	cfg.Provider.OllamaPort = getEnvAsInt("OLLAMA_PORT", cfg.Provider.OllamaPort)
	cfg.Provider.OllamaModel = getEnv("OLLAMA_MODEL", cfg.Provider.OllamaModel)
	cfg.Provider.VolcengineAPIKey = getEnv("VOLCENGINE_API_KEY", cfg.Provider.VolcengineAPIKey)
	cfg.Provider.VolcengineModel = getEnv("VOLCENGINE_MODEL", cfg.Provider.VolcengineModel)
	cfg.Provider.OpenRouterAPIKey = getEnv("OPENROUTER_API_KEY", cfg.Provider.OpenRouterAPIKey)
	cfg.Provider.OpenRouterModel = getEnv("OPENROUTER_MODEL", cfg.Provider.OpenRouterModel)
	cfg.Provider.Timeout = getEnvAsDuration("OCR_TIMEOUT", cfg.Provider.Timeout)

	cfg.Pipeline.MaxRetries = getEnvAsInt("OCR_MAX_RETRIES", cfg.Pipeline.MaxRetries)
	cfg.Pipeline.RetryDelay = getEnvAsDuration("OCR_RETRY_DELAY", cfg.Pipeline.RetryDelay)
	cfg.Pipeline.NetworkDelay = getEnvAsDuration("OCR_NETWORK_DELAY", cfg.Pipeline.NetworkDelay)
	cfg.Pipeline.Concurrency = getEnvAsInt("OCR_CONCURRENCY", cfg.Pipeline.Concurrency)

	cfg.Raster.Pdftoppm = getEnv("PDFTOPPM_PATH", cfg.Raster.Pdftoppm)
	cfg.History.DBPath = getEnv("HISTORY_DB_PATH", cfg.History.DBPath)
	cfg.Metrics.Addr = getEnv("METRICS_ADDR", cfg.Metrics.Addr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case "ollama":
		if c.Provider.OllamaHost == "" {
			return ConfigurationError("OLLAMA_HOST is required", ErrInvalidInput)
		}
	case "volcengine":
		if c.Provider.VolcengineAPIKey == "" {
			return ConfigurationError("VOLCENGINE_API_KEY is required", ErrInvalidInput)
		}
		if c.Provider.VolcengineModel == "" {
			return ConfigurationError("VOLCENGINE_MODEL (endpoint ID) is required", ErrInvalidInput)
		}
	case "openrouter":
		if c.Provider.OpenRouterAPIKey == "" {
			return ConfigurationError("OPENROUTER_API_KEY is required", ErrInvalidInput)
		}
	default:
		return ConfigurationError(fmt.Sprintf("unsupported provider kind: %q", c.Provider.Kind), ErrInvalidInput)
	}
	if c.Pipeline.MaxRetries < 0 {
		return ConfigurationError("max retries must be >= 0", ErrInvalidInput)
	}
	if c.Pipeline.Concurrency < 1 {
		return ConfigurationError("concurrency must be >= 1", ErrInvalidInput)
	}
	return nil
}

// ParseLogLevel maps a config string onto a slog level, defaulting to
// info for anything unrecognized.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
