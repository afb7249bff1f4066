// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 8080 {
		t.Errorf("bind = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("default_provider = %q", cfg.DefaultProvider)
	}
	if cfg.Filters.PIIThreshold != 0.7 || cfg.Filters.InjectionThreshold != 0.7 {
		t.Errorf("thresholds = %v / %v", cfg.Filters.PIIThreshold, cfg.Filters.InjectionThreshold)
	}
	if cfg.Filters.InjectionAction != "block" || cfg.Filters.RedactionMode != "placeholder" {
		t.Errorf("policies = %q / %q", cfg.Filters.InjectionAction, cfg.Filters.RedactionMode)
	}
	if !cfg.Filters.PIIEnabled || !cfg.Filters.InjectionEnabled || !cfg.Filters.RedactionEnabled {
		t.Error("filters not enabled by default")
	}
	if cfg.Filters.CombinedWeights.Pattern != 0.7 || cfg.Filters.CombinedWeights.Heuristic != 0.3 {
		t.Errorf("combined weights = %+v", cfg.Filters.CombinedWeights)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AEGIS_PORT", "9000")
	t.Setenv("AEGIS_INJECTION_ACTION", "warn")
	t.Setenv("AEGIS_REDACTION_MODE", "hash")
	t.Setenv("AEGIS_PII_THRESHOLD", "0.5")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.Filters.InjectionAction != "warn" || cfg.Filters.RedactionMode != "hash" {
		t.Errorf("policies = %q / %q", cfg.Filters.InjectionAction, cfg.Filters.RedactionMode)
	}
	if cfg.Filters.PIIThreshold != 0.5 {
		t.Errorf("pii threshold = %v", cfg.Filters.PIIThreshold)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aegis.config.yaml")
	yaml := `
injection_threshold: 0.8
redaction_mode: type_only
combined_weights:
  pattern: 0.6
  heuristic: 0.4
heuristic_weights:
  instruction_density: 0.4
  delimiter: 0.3
  urgency: 0.2
  context_switch: 0.1
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Filters.InjectionThreshold != 0.8 {
		t.Errorf("injection threshold = %v", cfg.Filters.InjectionThreshold)
	}
	if cfg.Filters.RedactionMode != "type_only" {
		t.Errorf("redaction mode = %q", cfg.Filters.RedactionMode)
	}
	if cfg.Filters.CombinedWeights.Pattern != 0.6 {
		t.Errorf("combined weights = %+v", cfg.Filters.CombinedWeights)
	}
	if cfg.Filters.HeuristicWeights.InstructionDensity != 0.4 {
		t.Errorf("heuristic weights = %+v", cfg.Filters.HeuristicWeights)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad redaction mode", "AEGIS_REDACTION_MODE", "rot13"},
		{"bad injection action", "AEGIS_INJECTION_ACTION", "panic"},
		{"threshold above one", "AEGIS_PII_THRESHOLD", "1.5"},
		{"port out of range", "AEGIS_PORT", "99999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
				t.Errorf("Load accepted %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 8080, MetricsPort: 9090}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.MetricsAddr() != "127.0.0.1:9090" {
		t.Errorf("MetricsAddr() = %q", cfg.MetricsAddr())
	}
}
