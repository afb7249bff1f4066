// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pii

import "sort"

// Analyzer runs a registry of recognizers over text and filters the
// results by a minimum-confidence threshold.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Analyzer struct {
	recognizers []Recognizer
	threshold   float64
}

// NewAnalyzer builds an Analyzer from the given recognizers. Spans
// scoring below threshold are discarded.
func NewAnalyzer(recognizers []Recognizer, threshold float64) *Analyzer {
	return &Analyzer{recognizers: recognizers, threshold: threshold}
}

// NewDefaultAnalyzer builds an Analyzer with the full built-in plus
// secret-material recognizer set.
func NewDefaultAnalyzer(threshold float64) *Analyzer {
	recs := BuiltinRecognizers()
	recs = append(recs, CustomRecognizers()...)
	return NewAnalyzer(recs, threshold)
}

// Analyze returns all above-threshold spans in text, sorted by start
// offset. When two spans of the same entity type overlap, only the
// higher-scoring one survives; cross-type overlaps are kept and left to
// the redaction layer to arbitrate.
func (a *Analyzer) Analyze(text string) []Match {
	var all []Match
	for _, r := range a.recognizers {
		for _, m := range r.Recognize(text) {
			if m.Score >= a.threshold {
				all = append(all, m)
			}
		}
	}
	all = dedupeSameEntity(all)
	sort.Slice(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End > all[j].End
	})
	return all
}

// dedupeSameEntity removes overlapping spans of the same entity type,
// keeping the highest-scoring (then longest) one.
func dedupeSameEntity(matches []Match) []Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return (matches[i].End - matches[i].Start) > (matches[j].End - matches[j].Start)
	})
	var kept []Match
	for _, m := range matches {
		overlapped := false
		for _, k := range kept {
			if k.EntityType == m.EntityType && m.Start < k.End && k.Start < m.End {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, m)
		}
	}
	return kept
}
