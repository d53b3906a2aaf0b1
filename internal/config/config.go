// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Workspace settings.
	WorkspaceDir string // Root directory holding per-case directories.

	// Model backend settings.
	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
	// MaxUploadBytes bounds multipart attachment uploads separately from
	// JSON bodies.
	MaxUploadBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("CASETRACE_PORT", 8080),
		ReadTimeout:         envDuration("CASETRACE_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("CASETRACE_WRITE_TIMEOUT", 30*time.Second),
		WorkspaceDir:        envStr("CASETRACE_WORKSPACE", "./cases"),
		OllamaURL:           envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:         envStr("OLLAMA_MODEL", "llama3.1"),
		OllamaTimeout:       envDuration("CASETRACE_OLLAMA_TIMEOUT", 120*time.Second),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "casetrace"),
		LogLevel:            envStr("CASETRACE_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("CASETRACE_MAX_REQUEST_BODY_BYTES", 1*1024*1024)),
		MaxUploadBytes:      int64(envInt("CASETRACE_MAX_UPLOAD_BYTES", 52*1024*1024)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.WorkspaceDir == "" {
		return fmt.Errorf("config: CASETRACE_WORKSPACE is required")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: CASETRACE_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: CASETRACE_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
