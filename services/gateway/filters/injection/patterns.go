// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package injection detects prompt injection attempts with a curated rule
// set (OWASP LLM01:2025) combined with heuristic scoring.
package injection

import (
	"regexp"
	"strings"
)

// PatternCategory groups injection rules by attack family.
type PatternCategory string

const (
	CategoryJailbreak          PatternCategory = "jailbreak"
	CategoryRoleOverride       PatternCategory = "role_override"
	CategorySystemExtraction   PatternCategory = "system_extraction"
	CategoryDelimiterInjection PatternCategory = "delimiter_injection"
	CategoryEncodingEvasion    PatternCategory = "encoding_evasion"
)

// Pattern is one compiled injection detection rule.
//
// Severity is the designer's confidence that a single match alone implies
// intent, in [0, 1]. Rules are immutable after package initialization.
type Pattern struct {
	Name        string
	Regexp      *regexp.Regexp
	Category    PatternCategory
	Severity    float64
	Description string

	// excludeSuffix rejects a match when the text immediately following it
	// starts with one of these benign phrases. Go's RE2 has no negative
	// lookahead, so rules that need one carry the exclusion here.
	excludeSuffix []string
}

// Matches reports whether the rule fires on text, honoring suffix
// exclusions for rules that carry them.
func (p *Pattern) Matches(text string) bool {
	if len(p.excludeSuffix) == 0 {
		return p.Regexp.MatchString(text)
	}
	for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
		rest := strings.ToLower(strings.TrimLeft(text[loc[1]:], " \t"))
		excluded := false
		for _, suffix := range p.excludeSuffix {
			if strings.HasPrefix(rest, suffix) {
				excluded = true
				break
			}
		}
		if !excluded {
			return true
		}
	}
	return false
}

// Patterns is the fixed rule catalogue, compiled at startup and read-only
// afterwards. Concurrent readers need no locking.
var Patterns = []Pattern{
	// === Jailbreak ===
	{
		Name:        "ignore_instructions",
		Regexp:      regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?|guidelines?)`),
		Category:    CategoryJailbreak,
		Severity:    0.95,
		Description: "Attempts to override system instructions",
	},
	{
		Name:        "dan_mode",
		Regexp:      regexp.MustCompile(`(?i)\b(DAN|do\s+anything\s+now)\b`),
		Category:    CategoryJailbreak,
		Severity:    0.9,
		Description: "DAN (Do Anything Now) jailbreak attempt",
	},
	{
		Name:        "developer_mode",
		Regexp:      regexp.MustCompile(`(?i)(developer|dev|debug|maintenance)\s+mode\s*(enabled?|on|activated?)`),
		Category:    CategoryJailbreak,
		Severity:    0.85,
		Description: "Fake developer mode activation",
	},
	{
		Name:        "jailbreak_keywords",
		Regexp:      regexp.MustCompile(`(?i)\b(jailbreak|bypass\s+filters?|unlock|unrestricted\s+mode|no\s+limits?)\b`),
		Category:    CategoryJailbreak,
		Severity:    0.85,
		Description: "Common jailbreak terminology",
	},
	{
		Name:        "forget_instructions",
		Regexp:      regexp.MustCompile(`(?i)(forget|disregard|discard)\s+(everything|all|your)\s+(you|instructions?|training)`),
		Category:    CategoryJailbreak,
		Severity:    0.9,
		Description: "Attempts to reset AI behavior",
	},

	// === Role override ===
	{
		Name:          "you_are_now",
		Regexp:        regexp.MustCompile(`(?i)(you\s+are\s+now|from\s+now\s+on\s+you\s+are|act\s+as\s+if\s+you\s+are)\s+`),
		Category:      CategoryRoleOverride,
		Severity:      0.7,
		Description:   "Role reassignment attempt",
		excludeSuffix: []string{"helpful", "a helpful", "a assistant", "an assistant"},
	},
	{
		Name:          "pretend_to_be",
		Regexp:        regexp.MustCompile(`(?i)(pretend|imagine|roleplay|act)\s+(to\s+be|as|like|you\s+are)\s+`),
		Category:      CategoryRoleOverride,
		Severity:      0.65,
		Description:   "Roleplay-based manipulation",
		excludeSuffix: []string{"helpful"},
	},
	{
		Name:        "new_persona",
		Regexp:      regexp.MustCompile(`(?i)(your\s+new\s+(name|identity|persona|role)\s+is|adopt\s+the\s+persona)`),
		Category:    CategoryRoleOverride,
		Severity:    0.8,
		Description: "Persona injection attempt",
	},

	// === System prompt extraction ===
	{
		Name:        "repeat_instructions",
		Regexp:      regexp.MustCompile(`(?i)(repeat|show|display|reveal|print|output)\s+(your\s+)?(system\s+)?(prompt|instructions?|rules?|guidelines?)`),
		Category:    CategorySystemExtraction,
		Severity:    0.9,
		Description: "System prompt extraction attempt",
	},
	{
		Name:        "what_are_instructions",
		Regexp:      regexp.MustCompile(`(?i)what\s+(are|is)\s+(your\s+)?(initial|original|system|secret)?\s*(instructions?|prompt|rules?|guidelines?)`),
		Category:    CategorySystemExtraction,
		Severity:    0.85,
		Description: "System prompt interrogation",
	},
	{
		Name:        "verbatim_output",
		Regexp:      regexp.MustCompile(`(?i)(print|output|echo|show)\s+(verbatim|exactly|word\s+for\s+word)`),
		Category:    CategorySystemExtraction,
		Severity:    0.75,
		Description: "Verbatim output request",
	},

	// === Delimiter injection ===
	{
		Name:        "markdown_delimiter",
		Regexp:      regexp.MustCompile(`(?is)(^|\n)("""|''').*?(ignore|instruction|system|prompt)`),
		Category:    CategoryDelimiterInjection,
		Severity:    0.8,
		Description: "Markdown/code block delimiter injection",
	},
	{
		Name:        "xml_injection",
		Regexp:      regexp.MustCompile(`(?i)</?(system|instruction|prompt|ignore|override)[^>]*>`),
		Category:    CategoryDelimiterInjection,
		Severity:    0.75,
		Description: "XML tag injection",
	},
	{
		Name:        "separator_injection",
		Regexp:      regexp.MustCompile(`(?i)(^|\n)(#{3,}|={3,}|-{3,})\s*(system|instruction|new\s+prompt|override)`),
		Category:    CategoryDelimiterInjection,
		Severity:    0.7,
		Description: "Separator-based section injection",
	},

	// === Encoding evasion ===
	{
		Name:        "base64_instruction",
		Regexp:      regexp.MustCompile(`(?i)(decode|interpret|execute)\s+(this\s+)?base64`),
		Category:    CategoryEncodingEvasion,
		Severity:    0.8,
		Description: "Base64 encoded instruction attempt",
	},
	{
		// Zero-width space, non-joiner, joiner, and BOM. Escapes, not
		// literals: a raw U+FEFF in source is rejected by the compiler.
		Name:        "unicode_obfuscation",
		Regexp:      regexp.MustCompile("[\u200b\u200c\u200d\ufeff]"),
		Category:    CategoryEncodingEvasion,
		Severity:    0.6,
		Description: "Unicode obfuscation detected",
	},
	{
		Name:        "leetspeak",
		Regexp:      regexp.MustCompile(`(?i)1gn0r3|1nstruct10n|syst3m|pr0mpt|byp4ss`),
		Category:    CategoryEncodingEvasion,
		Severity:    0.5,
		Description: "Leetspeak obfuscation",
	},
}

// PatternsByCategory returns the rules of one category, in catalogue order.
func PatternsByCategory(category PatternCategory) []Pattern {
	var out []Pattern
	for _, p := range Patterns {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// AnalyzePatterns evaluates every rule against text.
//
// Description:
//
//	All rules are evaluated with no short-circuit: the match list feeds
//	per-pattern metrics and the top rule names the finding. The score is
//	the maximum severity among matches.
//
// Outputs:
//   - float64: Maximum severity among matched rules (0 when none match).
//   - []string: Names of all matched rules, in catalogue order.
//   - string: Name of the highest-severity matched rule ("" when none).
func AnalyzePatterns(text string) (float64, []string, string) {
	var matched []string
	highestSeverity := 0.0
	highestName := ""

	for i := range Patterns {
		p := &Patterns[i]
		if !p.Matches(text) {
			continue
		}
		matched = append(matched, p.Name)
		if p.Severity > highestSeverity {
			highestSeverity = p.Severity
			highestName = p.Name
		}
	}
	return highestSeverity, matched, highestName
}
