// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pii

import (
	"context"
	"fmt"

	"github.com/aegislabs/aegisproxy/services/gateway/filters"
	"github.com/aegislabs/aegisproxy/services/gateway/telemetry"
)

// FilterName is the pipeline identity of the PII detection stage.
const FilterName = "pii_detector"

// Config tunes the PII filter. Zero values fall back to defaults.
type Config struct {
	// Threshold is the minimum confidence for a span to be reported.
	Threshold float64 `yaml:"threshold"`

	// Enabled toggles the filter without removing it from the pipeline.
	Enabled bool `yaml:"enabled"`
}

// Filter detects PII spans and stages them for the redaction stage. It
// never blocks or rewrites content itself.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Filter struct {
	analyzer *Analyzer
	enabled  bool
}

// NewFilter builds the PII detection stage. A zero threshold falls back
// to 0.7.
func NewFilter(cfg Config) *Filter {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 0.7
	}
	return &Filter{
		analyzer: NewDefaultAnalyzer(threshold),
		enabled:  cfg.Enabled,
	}
}

// Name implements filters.Filter.
func (f *Filter) Name() string { return FilterName }

// Priority implements filters.Filter. PII detection runs first so its
// findings are staged before injection analysis and redaction.
func (f *Filter) Priority() int { return 10 }

// Enabled implements filters.Filter.
func (f *Filter) Enabled() bool { return f.enabled }

// Analyze implements filters.Filter.
//
// Description:
//
//	Runs the recognizer registry over content. Detected spans become
//	findings and are staged on the filter context for the redaction
//	stage to consume. The result action is Redact when anything was
//	found, Pass otherwise.
func (f *Filter) Analyze(_ context.Context, content string, fctx *filters.FilterContext) (*filters.FilterResult, error) {
	matches := f.analyzer.Analyze(content)
	if len(matches) == 0 {
		return &filters.FilterResult{Action: filters.ActionPass}, nil
	}

	findings := make([]filters.Finding, 0, len(matches))
	for _, m := range matches {
		findings = append(findings, filters.Finding{
			Kind:       filters.KindPII,
			EntityType: m.EntityType,
			Confidence: m.Score,
			Start:      m.Start,
			End:        m.End,
			FilterName: FilterName,
			Metadata:   m.Metadata,
		})
		telemetry.RecordPIIDetection(m.EntityType)
	}
	fctx.StagePIIFindings(findings)

	return &filters.FilterResult{
		Action:   filters.ActionRedact,
		Findings: findings,
		Reason:   fmt.Sprintf("Detected %d PII entities", len(findings)),
	}, nil
}
