// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package injection

import (
	"context"
	"fmt"

	"github.com/aegislabs/aegisproxy/services/gateway/filters"
	"github.com/aegislabs/aegisproxy/services/gateway/telemetry"
)

// Action is what the filter does when the combined score crosses the
// configured threshold.
type Action string

const (
	// ActionBlock rejects the request.
	ActionBlock Action = "block"

	// ActionWarn passes the request but attaches the finding and logs it.
	ActionWarn Action = "warn"
)

// CombinedWeights balances pattern score against heuristic score. The
// 0.7/0.3 default is contractual: pattern matches outweigh stylistic hints.
type CombinedWeights struct {
	Pattern   float64 `yaml:"pattern"`
	Heuristic float64 `yaml:"heuristic"`
}

// DefaultCombinedWeights returns the standard 0.7/0.3 split.
func DefaultCombinedWeights() CombinedWeights {
	return CombinedWeights{Pattern: 0.7, Heuristic: 0.3}
}

// Analysis is the complete injection analysis for one piece of content.
type Analysis struct {
	// PatternScore is the maximum severity among matched rules.
	PatternScore float64

	// HeuristicScore is the combined heuristic sub-score.
	HeuristicScore float64

	// MatchedPatterns lists the names of every matched rule.
	MatchedPatterns []string

	// HighestSeverityPattern names the top matched rule ("" if none).
	HighestSeverityPattern string

	weights CombinedWeights
}

// CombinedScore is the weighted sum of pattern and heuristic scores.
func (a Analysis) CombinedScore() float64 {
	return a.PatternScore*a.weights.Pattern + a.HeuristicScore*a.weights.Heuristic
}

// Filter detects prompt injection attempts by combining the compiled rule
// catalogue with heuristic scoring.
//
// Thread Safety: Safe for concurrent use; all fields are read-only after
// construction.
type Filter struct {
	threshold        float64
	action           Action
	combinedWeights  CombinedWeights
	heuristicWeights HeuristicWeights
	enabled          bool
}

// Config tunes the injection filter.
type Config struct {
	// Threshold is the minimum combined score that triggers the action.
	Threshold float64

	// Action is what to do on trigger (block or warn).
	Action Action

	// CombinedWeights and HeuristicWeights override the default splits.
	// Zero values fall back to the defaults.
	CombinedWeights  CombinedWeights
	HeuristicWeights HeuristicWeights

	// Enabled toggles the filter without removing it from the pipeline.
	Enabled bool
}

// NewFilter creates an injection filter.
func NewFilter(cfg Config) *Filter {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 0.7
	}
	cw := cfg.CombinedWeights
	if cw.Pattern == 0 && cw.Heuristic == 0 {
		cw = DefaultCombinedWeights()
	}
	hw := cfg.HeuristicWeights
	if hw == (HeuristicWeights{}) {
		hw = DefaultHeuristicWeights()
	}
	action := cfg.Action
	if action == "" {
		action = ActionBlock
	}
	return &Filter{
		threshold:        threshold,
		action:           action,
		combinedWeights:  cw,
		heuristicWeights: hw,
		enabled:          cfg.Enabled,
	}
}

// Name implements filters.Filter.
func (f *Filter) Name() string { return "injection_detector" }

// Priority implements filters.Filter. Runs after PII detection.
func (f *Filter) Priority() int { return 20 }

// Enabled implements filters.Filter.
func (f *Filter) Enabled() bool { return f.enabled }

// Analyze scores content for prompt injection.
//
// Description:
//
//	Evaluates the full rule catalogue and the heuristic sub-scores, forms
//	the combined score, and compares it against the threshold. Above the
//	threshold a single finding spanning the whole content is produced and
//	per-pattern detection counters are incremented; the configured action
//	decides between block and warn.
//
// Outputs:
//   - *filters.FilterResult: Block or pass, with findings attached above
//     threshold. Never redacts.
//   - error: Always nil; scoring is pure computation.
func (f *Filter) Analyze(_ context.Context, content string, _ *filters.FilterContext) (*filters.FilterResult, error) {
	patternScore, matched, highest := AnalyzePatterns(content)
	heuristics := AnalyzeHeuristics(content)

	analysis := Analysis{
		PatternScore:           patternScore,
		HeuristicScore:         heuristics.Combined(f.heuristicWeights),
		MatchedPatterns:        matched,
		HighestSeverityPattern: highest,
		weights:                f.combinedWeights,
	}

	combined := analysis.CombinedScore()
	if combined < f.threshold {
		return &filters.FilterResult{Action: filters.ActionPass}, nil
	}

	entityType := highest
	if entityType == "" {
		// Only heuristics tripped.
		entityType = "unknown_injection"
	}

	finding := filters.Finding{
		Kind:       filters.KindInjection,
		EntityType: entityType,
		Confidence: combined,
		Start:      0,
		End:        len(content),
		FilterName: f.Name(),
		Metadata: map[string]any{
			"pattern_score":    analysis.PatternScore,
			"heuristic_score":  analysis.HeuristicScore,
			"matched_patterns": matched,
		},
	}

	for _, name := range matched {
		telemetry.RecordInjectionDetection(name, string(f.action))
	}

	if f.action == ActionBlock {
		return &filters.FilterResult{
			Action:   filters.ActionBlock,
			Findings: []filters.Finding{finding},
			Reason:   fmt.Sprintf("Prompt injection detected: %s (score: %.2f)", entityType, combined),
		}, nil
	}

	return &filters.FilterResult{
		Action:   filters.ActionPass,
		Findings: []filters.Finding{finding},
		Reason:   fmt.Sprintf("Injection warning: %s (score: %.2f)", entityType, combined),
	}, nil
}
