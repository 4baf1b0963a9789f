// Package config provides configuration structures and loading logic for the
// gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Security  SecurityConfig  `yaml:"security"`
	Providers ProvidersConfig `yaml:"providers"`
	Limits    Limits          `yaml:"limits"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// SecurityConfig locates per-sender secrets and instruction files.
type SecurityConfig struct {
	SendersDir string `yaml:"senders_dir"`
}

// ProvidersConfig holds provider credentials and endpoints.
type ProvidersConfig struct {
	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiBaseURL string `yaml:"gemini_base_url"`
	OllamaBaseURL string `yaml:"ollama_base_url"`
	DefaultModel  string `yaml:"default_model"`
}

// Limits are the runtime caps consulted on every request. They are the only
// part of the configuration that can be hot-reloaded.
type Limits struct {
	MaxInputChars     int   `yaml:"max_input_chars"`
	ProviderTimeoutMS int64 `yaml:"provider_timeout_ms"`
	MaxBodyBytes      int64 `yaml:"max_body_bytes"`
}

// Default values applied before file and environment overrides.
const (
	DefaultListenAddr        = ":8080"
	DefaultMaxInputChars     = 4000
	DefaultProviderTimeoutMS = 20000
	DefaultMaxBodyBytes      = 8 * 1024
)

func defaults() *Config {
	return &Config{
		Server:  ServerConfig{ListenAddr: DefaultListenAddr},
		Logging: LoggingConfig{Level: "info"},
		Limits: Limits{
			MaxInputChars:     DefaultMaxInputChars,
			ProviderTimeoutMS: DefaultProviderTimeoutMS,
			MaxBodyBytes:      DefaultMaxBodyBytes,
		},
	}
}

// Load reads configuration from an optional file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- config file path is controlled by the operator
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYNAPSYS_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("SYNAPSYS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SYNAPSYS_SENDERS_DIR"); v != "" {
		cfg.Security.SendersDir = v
	}
	if v := os.Getenv("SYNAPSYS_GEMINI_API_KEY"); v != "" {
		cfg.Providers.GeminiAPIKey = v
	}
	if v := os.Getenv("SYNAPSYS_GEMINI_BASE_URL"); v != "" {
		cfg.Providers.GeminiBaseURL = v
	}
	if v := os.Getenv("SYNAPSYS_OLLAMA_BASE_URL"); v != "" {
		cfg.Providers.OllamaBaseURL = v
	}
	if v := os.Getenv("SYNAPSYS_DEFAULT_MODEL"); v != "" {
		cfg.Providers.DefaultModel = v
	}
	if v := os.Getenv("SYNAPSYS_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("SYNAPSYS_MAX_INPUT_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxInputChars = n
		}
	}
	if v := os.Getenv("SYNAPSYS_PROVIDER_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.ProviderTimeoutMS = n
		}
	}
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	if c.Limits.MaxInputChars <= 0 {
		return fmt.Errorf("limits.max_input_chars must be positive")
	}
	if c.Limits.ProviderTimeoutMS <= 0 {
		return fmt.Errorf("limits.provider_timeout_ms must be positive")
	}
	if c.Limits.MaxBodyBytes <= 0 {
		return fmt.Errorf("limits.max_body_bytes must be positive")
	}
	return nil
}
