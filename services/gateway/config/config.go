// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads gateway configuration. Environment variables
// carry deployment settings (ports, keys, providers); an optional YAML
// file carries detection tunables (thresholds, weights).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aegislabs/aegisproxy/services/gateway/filters/injection"
)

// DefaultConfigFile is the tunables overlay looked up when no explicit
// path is given.
const DefaultConfigFile = "aegis.config.yaml"

// Config holds all gateway configuration.
//
// Thread Safety: Config is a value type. Safe to copy and share after
// loading.
type Config struct {
	// Host is the listen address.
	// Env: AEGIS_HOST (default: "0.0.0.0")
	Host string

	// Port is the HTTP listen port.
	// Env: AEGIS_PORT (default: 8080)
	Port int

	// DefaultProvider routes requests that do not name a provider.
	// Env: AEGIS_DEFAULT_PROVIDER (default: "openai")
	DefaultProvider string

	// OpenAIAPIKey authenticates upstream OpenAI calls.
	// Env: AEGIS_OPENAI_API_KEY (default: "")
	OpenAIAPIKey string

	// OpenAIBaseURL overrides the upstream endpoint, e.g. for an
	// OpenAI-compatible local server.
	// Env: AEGIS_OPENAI_BASE_URL (default: "")
	OpenAIBaseURL string

	// GeminiAPIKey authenticates upstream Gemini calls.
	// Env: AEGIS_GEMINI_API_KEY (default: "")
	GeminiAPIKey string

	// GeminiBaseURL overrides the Gemini OpenAI-compatible endpoint.
	// Env: AEGIS_GEMINI_BASE_URL (default: "")
	GeminiBaseURL string

	// LogLevel is one of debug, info, warn, error.
	// Env: AEGIS_LOG_LEVEL (default: "info")
	LogLevel string

	// LogFormat is "json" or "text".
	// Env: AEGIS_LOG_FORMAT (default: "json")
	LogFormat string

	// MetricsEnabled toggles the standalone Prometheus endpoint.
	// Env: AEGIS_METRICS_ENABLED (default: true)
	MetricsEnabled bool

	// MetricsPort is the standalone metrics listen port.
	// Env: AEGIS_METRICS_PORT (default: 9090)
	MetricsPort int

	// CORSAllowOrigins is the set of allowed dashboard origins. Empty
	// means allow all.
	// Env: AEGIS_CORS_ALLOW_ORIGINS (comma-separated, default: "")
	CORSAllowOrigins map[string]bool

	// Filters carries the detection tunables, overridable by YAML.
	Filters FilterTunables
}

// FilterTunables are the detection settings an operator iterates on.
// Each has an environment default; the YAML overlay wins when present.
type FilterTunables struct {
	// PIIEnabled toggles the PII detection stage.
	// Env: AEGIS_PII_ENABLED (default: true)
	PIIEnabled bool `yaml:"pii_enabled"`

	// PIIThreshold is the minimum confidence for a PII span to count.
	// Env: AEGIS_PII_THRESHOLD (default: 0.7)
	PIIThreshold float64 `yaml:"pii_threshold"`

	// InjectionEnabled toggles the injection detection stage.
	// Env: AEGIS_INJECTION_ENABLED (default: true)
	InjectionEnabled bool `yaml:"injection_enabled"`

	// InjectionThreshold is the combined score at which the injection
	// policy fires.
	// Env: AEGIS_INJECTION_THRESHOLD (default: 0.7)
	InjectionThreshold float64 `yaml:"injection_threshold"`

	// InjectionAction is "block" or "warn".
	// Env: AEGIS_INJECTION_ACTION (default: "block")
	InjectionAction string `yaml:"injection_action"`

	// RedactionEnabled toggles the redaction stage.
	// Env: AEGIS_REDACTION_ENABLED (default: true)
	RedactionEnabled bool `yaml:"redaction_enabled"`

	// RedactionMode is placeholder, type_only, mask, or hash.
	// Env: AEGIS_REDACTION_MODE (default: "placeholder")
	RedactionMode string `yaml:"redaction_mode"`

	// CombinedWeights splits the injection score between pattern and
	// heuristic analysis. YAML only.
	CombinedWeights injection.CombinedWeights `yaml:"combined_weights"`

	// HeuristicWeights splits the heuristic score across its four
	// signals. YAML only.
	HeuristicWeights injection.HeuristicWeights `yaml:"heuristic_weights"`
}

// Load reads configuration from the environment, then overlays the
// tunables YAML at path if the file exists. An empty path means
// DefaultConfigFile; a missing file at either is not an error.
//
// Outputs:
//   - Config: Fully populated configuration.
//   - error: Non-nil on unreadable YAML or invalid values.
func Load(path string) (Config, error) {
	cfg := Config{
		Host:             envStr("AEGIS_HOST", "0.0.0.0"),
		Port:             envInt("AEGIS_PORT", 8080),
		DefaultProvider:  envStr("AEGIS_DEFAULT_PROVIDER", "openai"),
		OpenAIAPIKey:     envStr("AEGIS_OPENAI_API_KEY", ""),
		OpenAIBaseURL:    envStr("AEGIS_OPENAI_BASE_URL", ""),
		GeminiAPIKey:     envStr("AEGIS_GEMINI_API_KEY", ""),
		GeminiBaseURL:    envStr("AEGIS_GEMINI_BASE_URL", ""),
		LogLevel:         envStr("AEGIS_LOG_LEVEL", "info"),
		LogFormat:        envStr("AEGIS_LOG_FORMAT", "json"),
		MetricsEnabled:   envBool("AEGIS_METRICS_ENABLED", true),
		MetricsPort:      envInt("AEGIS_METRICS_PORT", 9090),
		CORSAllowOrigins: envSet("AEGIS_CORS_ALLOW_ORIGINS"),
		Filters: FilterTunables{
			PIIEnabled:         envBool("AEGIS_PII_ENABLED", true),
			PIIThreshold:       envFloat("AEGIS_PII_THRESHOLD", 0.7),
			InjectionEnabled:   envBool("AEGIS_INJECTION_ENABLED", true),
			InjectionThreshold: envFloat("AEGIS_INJECTION_THRESHOLD", 0.7),
			InjectionAction:    envStr("AEGIS_INJECTION_ACTION", "block"),
			RedactionEnabled:   envBool("AEGIS_REDACTION_ENABLED", true),
			RedactionMode:      envStr("AEGIS_REDACTION_MODE", "placeholder"),
			CombinedWeights:    injection.DefaultCombinedWeights(),
			HeuristicWeights:   injection.DefaultHeuristicWeights(),
		},
	}

	if path == "" {
		path = DefaultConfigFile
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg.Filters); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects out-of-range values at startup rather than on the
// first request.
func (c Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MetricsEnabled && (c.MetricsPort < 1 || c.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port %d", c.MetricsPort)
	}
	switch c.Filters.InjectionAction {
	case "block", "warn":
	default:
		return fmt.Errorf("invalid injection action %q", c.Filters.InjectionAction)
	}
	switch c.Filters.RedactionMode {
	case "placeholder", "type_only", "mask", "hash":
	default:
		return fmt.Errorf("invalid redaction mode %q", c.Filters.RedactionMode)
	}
	if c.Filters.PIIThreshold < 0 || c.Filters.PIIThreshold > 1 {
		return fmt.Errorf("pii threshold %g out of range [0, 1]", c.Filters.PIIThreshold)
	}
	if c.Filters.InjectionThreshold < 0 || c.Filters.InjectionThreshold > 1 {
		return fmt.Errorf("injection threshold %g out of range [0, 1]", c.Filters.InjectionThreshold)
	}
	return nil
}

// Addr returns the host:port listen address for the API server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddr returns the host:port listen address for metrics.
func (c Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// envStr reads a string environment variable with a default value.
func envStr(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// envBool reads a boolean environment variable with a default value.
func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envFloat reads a float64 environment variable with a default value.
func envFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// envSet reads a comma-separated environment variable into a set.
// Returns an empty map (not nil) if the variable is unset.
func envSet(key string) map[string]bool {
	result := make(map[string]bool)
	val := os.Getenv(key)
	if val == "" {
		return result
	}
	for _, item := range strings.Split(val, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result[trimmed] = true
		}
	}
	return result
}
