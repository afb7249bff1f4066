// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package redaction

import (
	"context"
	"fmt"

	"github.com/aegislabs/aegisproxy/services/gateway/filters"
)

// FilterName is the pipeline identity of the redaction stage.
const FilterName = "redaction_filter"

// Config tunes the redaction filter.
type Config struct {
	// Mode selects the rewrite policy. Empty means placeholder.
	Mode string `yaml:"mode"`

	// Enabled toggles the filter without removing it from the pipeline.
	Enabled bool `yaml:"enabled"`
}

// Filter consumes the PII findings staged earlier in the pipeline and
// rewrites the flagged spans. It runs last so every detector has had
// its say before content changes.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Filter struct {
	engine  *Engine
	enabled bool
}

// NewFilter builds the redaction stage. An invalid mode is rejected
// here rather than discovered on the first request.
func NewFilter(cfg Config) (*Filter, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return &Filter{engine: NewEngine(mode), enabled: cfg.Enabled}, nil
}

// Name implements filters.Filter.
func (f *Filter) Name() string { return FilterName }

// Priority implements filters.Filter. Redaction must run after every
// detector.
func (f *Filter) Priority() int { return 100 }

// Enabled implements filters.Filter.
func (f *Filter) Enabled() bool { return f.enabled }

// Analyze implements filters.Filter.
//
// Description:
//
//	Takes the staged PII findings for the current message and rewrites
//	their spans according to the configured mode. With nothing staged
//	the content passes untouched. Redaction is fail-closed: a panic in
//	the engine converts to a block rather than letting unredacted
//	content through.
func (f *Filter) Analyze(_ context.Context, content string, fctx *filters.FilterContext) (result *filters.FilterResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = &filters.FilterResult{
				Action: filters.ActionBlock,
				Reason: "Redaction failed due to internal error",
			}
			err = fmt.Errorf("redaction engine panic: %v", r)
		}
	}()

	staged := fctx.StagedPIIFindings()
	if len(staged) == 0 {
		return &filters.FilterResult{Action: filters.ActionPass}, nil
	}

	res := f.engine.Redact(content, staged)
	// The findings themselves were already reported by the detector that
	// staged them; re-attaching here would double-count them.
	return &filters.FilterResult{
		Action:             filters.ActionRedact,
		ModifiedContent:    res.Text,
		HasModifiedContent: true,
		Reason:             fmt.Sprintf("Redacted %d spans", len(res.Items)),
	}, nil
}
