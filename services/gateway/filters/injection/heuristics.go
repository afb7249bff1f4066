// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package injection

import (
	"regexp"
	"strings"
)

// HeuristicWeights combines the four heuristic sub-scores. The defaults are
// not derived from a labeled corpus; they are tunable via configuration.
type HeuristicWeights struct {
	InstructionDensity float64 `yaml:"instruction_density"`
	Delimiter          float64 `yaml:"delimiter"`
	Urgency            float64 `yaml:"urgency"`
	ContextSwitch      float64 `yaml:"context_switch"`
}

// DefaultHeuristicWeights returns the standard 0.35/0.25/0.20/0.20 split.
func DefaultHeuristicWeights() HeuristicWeights {
	return HeuristicWeights{
		InstructionDensity: 0.35,
		Delimiter:          0.25,
		Urgency:            0.20,
		ContextSwitch:      0.20,
	}
}

// HeuristicScore holds the four sub-scores of the heuristic analysis,
// each in [0, 1].
type HeuristicScore struct {
	InstructionDensity float64
	DelimiterScore     float64
	UrgencyScore       float64
	ContextSwitchScore float64
}

// Combined returns the weighted combination of the sub-scores.
func (h HeuristicScore) Combined(w HeuristicWeights) float64 {
	return h.InstructionDensity*w.InstructionDensity +
		h.DelimiterScore*w.Delimiter +
		h.UrgencyScore*w.Urgency +
		h.ContextSwitchScore*w.ContextSwitch
}

// instructionKeywords are phrases that make text read like instructions to
// the model rather than a question for it.
var instructionKeywords = []string{
	"you must", "you should", "you will", "always", "never",
	"do not", "don't", "must not", "respond with", "reply with",
	"output", "generate", "create", "write", "say",
	"ignore", "forget", "disregard", "override", "bypass",
	"from now on", "going forward", "starting now",
}

// urgencyPhrases are urgency/manipulation markers.
var urgencyPhrases = []string{
	"important", "urgent", "critical", "immediately",
	"this is a test", "this is just", "trust me",
	"as an ai", "as a language model",
	"hypothetically", "in theory", "for research",
}

// delimiterPatterns are suspicious structural delimiters.
var delimiterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"""`),     // triple quotes
	regexp.MustCompile(`'''`),     // triple single quotes
	regexp.MustCompile("```"),     // code fences
	regexp.MustCompile(`###`),     // markdown headers
	regexp.MustCompile(`---`),     // horizontal rules
	regexp.MustCompile(`===`),     // emphasis separators
	regexp.MustCompile(`\[INST\]`), // instruction tags
	regexp.MustCompile(`\[/INST\]`),
	regexp.MustCompile(`<<SYS>>`), // system tags
	regexp.MustCompile(`<</SYS>>`),
}

// contextSwitchPatterns are phrases that try to reset or replace the
// conversation context.
var contextSwitchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`new\s+conversation`),
	regexp.MustCompile(`start\s+over`),
	regexp.MustCompile(`reset\s+context`),
	regexp.MustCompile(`previous\s+conversation`),
	regexp.MustCompile(`ignore\s+(?:the\s+)?above`),
	regexp.MustCompile(`actual\s+(?:prompt|instruction)`),
	regexp.MustCompile(`real\s+(?:task|request)`),
}

// InstructionDensity scores how instructional the text appears, rewarding
// concentration of instruction keywords rather than raw count.
//
// Empty and whitespace-only text score 0.
func InstructionDensity(text string) float64 {
	wordCount := len(strings.Fields(text))
	if wordCount == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range instructionKeywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}

	density := float64(matches) / (float64(wordCount) / 10)
	if density > 1 {
		density = 1
	}
	return density
}

// DelimiterScore scores the presence of suspicious delimiters; each
// distinct delimiter found adds 0.15, capped at 1.
func DelimiterScore(text string) float64 {
	score := 0.0
	for _, p := range delimiterPatterns {
		if p.MatchString(text) {
			score += 0.15
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// UrgencyScore scores urgency/manipulation language; each phrase found
// adds 0.15, capped at 1.
func UrgencyScore(text string) float64 {
	lower := strings.ToLower(text)
	matches := 0
	for _, phrase := range urgencyPhrases {
		if strings.Contains(lower, phrase) {
			matches++
		}
	}

	score := float64(matches) * 0.15
	if score > 1 {
		score = 1
	}
	return score
}

// ContextSwitchScore scores attempts to switch or reset context; each
// distinct reset phrase adds 0.25, capped at 1.
func ContextSwitchScore(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, p := range contextSwitchPatterns {
		if p.MatchString(lower) {
			score += 0.25
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// AnalyzeHeuristics performs the complete heuristic analysis on text.
func AnalyzeHeuristics(text string) HeuristicScore {
	return HeuristicScore{
		InstructionDensity: InstructionDensity(text),
		DelimiterScore:     DelimiterScore(text),
		UrgencyScore:       UrgencyScore(text),
		ContextSwitchScore: ContextSwitchScore(text),
	}
}
