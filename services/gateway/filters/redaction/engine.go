// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package redaction rewrites text spans flagged as sensitive. The
// original span contents never appear in logs or results, only in the
// rewritten text where the chosen mode dictates.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/aegislabs/aegisproxy/services/gateway/filters"
)

// Mode selects the rewrite policy for redacted spans.
type Mode string

const (
	// ModePlaceholder rewrites spans to [TYPE_N] with a per-type counter.
	ModePlaceholder Mode = "placeholder"
	// ModeTypeOnly rewrites spans to [TYPE] without a counter.
	ModeTypeOnly Mode = "type_only"
	// ModeMask overwrites the first 8 characters of the span with '*'.
	ModeMask Mode = "mask"
	// ModeHash rewrites spans to the hex SHA-256 of their contents.
	ModeHash Mode = "hash"
)

// ParseMode validates a mode string, falling back to ModePlaceholder
// for empty input.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePlaceholder, ModeTypeOnly, ModeMask, ModeHash:
		return Mode(s), nil
	case "":
		return ModePlaceholder, nil
	}
	return "", fmt.Errorf("unknown redaction mode %q", s)
}

// Item describes one applied redaction. Start/End are offsets in the
// rewritten text, not the original.
type Item struct {
	EntityType  string
	Replacement string
	Start       int
	End         int
}

// Result is the outcome of redacting one text.
type Result struct {
	Text  string
	Items []Item
}

// Engine applies a redaction mode to flagged spans.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Engine struct {
	mode Mode
}

// NewEngine builds an Engine for the given mode.
func NewEngine(mode Mode) *Engine {
	return &Engine{mode: mode}
}

// Redact rewrites every finding's span in text.
//
// Description:
//
//	Overlapping spans are resolved first: the higher-confidence span
//	wins, ties go to the longer span, then the earlier one. Surviving
//	spans are rewritten left to right; placeholder counters run
//	per entity type in document order, starting at 1.
func (e *Engine) Redact(text string, findings []filters.Finding) Result {
	spans := resolveOverlaps(findings)
	if len(spans) == 0 {
		return Result{Text: text}
	}

	var b strings.Builder
	b.Grow(len(text))
	counters := make(map[string]int)
	items := make([]Item, 0, len(spans))
	cursor := 0

	for _, f := range spans {
		if f.Start < cursor || f.End > len(text) {
			continue
		}
		b.WriteString(text[cursor:f.Start])
		replacement := e.replacement(text[f.Start:f.End], f.EntityType, counters)
		start := b.Len()
		b.WriteString(replacement)
		items = append(items, Item{
			EntityType:  f.EntityType,
			Replacement: replacement,
			Start:       start,
			End:         b.Len(),
		})
		cursor = f.End
	}
	b.WriteString(text[cursor:])

	return Result{Text: b.String(), Items: items}
}

// replacement produces the rewritten form of one span.
func (e *Engine) replacement(span, entityType string, counters map[string]int) string {
	switch e.mode {
	case ModeTypeOnly:
		return "[" + shortType(entityType) + "]"
	case ModeMask:
		n := len(span)
		if n > 8 {
			n = 8
		}
		return strings.Repeat("*", n) + span[n:]
	case ModeHash:
		sum := sha256.Sum256([]byte(span))
		return hex.EncodeToString(sum[:])
	default:
		counters[entityType]++
		return fmt.Sprintf("[%s_%d]", shortType(entityType), counters[entityType])
	}
}

// shortType compacts an entity type for placeholder text: the _ADDRESS
// suffix and US_ prefix carry no information there.
func shortType(entityType string) string {
	s := strings.TrimSuffix(entityType, "_ADDRESS")
	s = strings.TrimPrefix(s, "US_")
	return s
}

// resolveOverlaps returns the findings to apply, sorted by start offset,
// with overlapping spans reduced to a single winner. Confidence decides,
// then span length, then the earlier start.
func resolveOverlaps(findings []filters.Finding) []filters.Finding {
	ranked := make([]filters.Finding, len(findings))
	copy(ranked, findings)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		li, lj := ranked[i].End-ranked[i].Start, ranked[j].End-ranked[j].Start
		if li != lj {
			return li > lj
		}
		return ranked[i].Start < ranked[j].Start
	})

	var kept []filters.Finding
	for _, f := range ranked {
		if f.Start < 0 || f.End <= f.Start {
			continue
		}
		overlapped := false
		for _, k := range kept {
			if f.Start < k.End && k.Start < f.End {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, f)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
