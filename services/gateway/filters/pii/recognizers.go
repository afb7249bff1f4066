// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pii locates sensitive-entity spans in text. Detection is
// span-based: each recognizer reports (entity type, start, end, score)
// without ever exporting the matched text itself.
package pii

import (
	"net"
	"regexp"
	"strings"
)

// Match is one detected entity span. Start/End are half-open character
// offsets into the analyzed text.
type Match struct {
	EntityType string
	Start      int
	End        int
	Score      float64

	// Metadata carries recognition detail (pattern name, checksum
	// outcome). It must never contain the matched text.
	Metadata map[string]any
}

// Recognizer locates spans of one entity family in text.
//
// Thread Safety: Implementations must be safe for concurrent use; the
// registry is built once at startup and treated as read-only.
type Recognizer interface {
	// Entity returns the entity type this recognizer reports.
	Entity() string

	// Recognize returns all spans found in text, unfiltered by threshold.
	Recognize(text string) []Match
}

// contextBoost is added to a pattern's base score when one of the
// recognizer's context words appears near the span. Mirrors the context
// enhancement of mainstream PII analyzers.
const contextBoost = 0.35

// contextWindow is how many characters around a span are searched for
// context words.
const contextWindow = 50

// pattern is one scored regex within a PatternRecognizer.
type pattern struct {
	name  string
	re    *regexp.Regexp
	score float64

	// validate, when non-nil, adjusts the base score for a candidate
	// span (e.g. Luhn or IBAN checksums). Returning a negative value
	// rejects the span outright.
	validate func(span string) float64
}

// PatternRecognizer detects one entity type through a list of scored
// regexes plus optional context words that raise confidence.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type PatternRecognizer struct {
	entity   string
	patterns []pattern
	context  []string
}

// Entity implements Recognizer.
func (r *PatternRecognizer) Entity() string { return r.entity }

// Recognize implements Recognizer.
//
// Description:
//
//	Runs every pattern over the text. Each hit gets the pattern's base
//	score, adjusted by the pattern's validator if present, then boosted
//	by contextBoost (capped at 1) when a context word appears within
//	contextWindow characters of the span.
func (r *PatternRecognizer) Recognize(text string) []Match {
	var matches []Match
	lower := strings.ToLower(text)

	for _, p := range r.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			score := p.score
			if p.validate != nil {
				score = p.validate(text[loc[0]:loc[1]])
				if score < 0 {
					continue
				}
			}
			if r.hasContext(lower, loc[0], loc[1]) {
				score += contextBoost
				if score > 1 {
					score = 1
				}
			}
			matches = append(matches, Match{
				EntityType: r.entity,
				Start:      loc[0],
				End:        loc[1],
				Score:      score,
				Metadata:   map[string]any{"pattern_name": p.name},
			})
		}
	}
	return matches
}

// hasContext reports whether any context word appears near [start, end).
func (r *PatternRecognizer) hasContext(lower string, start, end int) bool {
	if len(r.context) == 0 {
		return false
	}
	from := start - contextWindow
	if from < 0 {
		from = 0
	}
	to := end + contextWindow
	if to > len(lower) {
		to = len(lower)
	}
	window := lower[from:to]
	for _, word := range r.context {
		if strings.Contains(window, word) {
			return true
		}
	}
	return false
}

// luhnValid runs the Luhn checksum over the digits of span.
func luhnValid(span string) bool {
	var digits []int
	for _, ch := range span {
		if ch >= '0' && ch <= '9' {
			digits = append(digits, int(ch-'0'))
		}
	}
	if len(digits) < 13 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ibanValid runs the mod-97 checksum of ISO 13616 over span.
func ibanValid(span string) bool {
	s := strings.ToUpper(strings.ReplaceAll(span, " ", ""))
	if len(s) < 15 || len(s) > 34 {
		return false
	}
	rearranged := s[4:] + s[:4]
	// Mod-97 over the expanded numeric string, digit by digit to avoid
	// big integer arithmetic.
	rem := 0
	for _, ch := range rearranged {
		switch {
		case ch >= '0' && ch <= '9':
			rem = (rem*10 + int(ch-'0')) % 97
		case ch >= 'A' && ch <= 'Z':
			v := int(ch-'A') + 10
			rem = (rem*100 + v) % 97
		default:
			return false
		}
	}
	return rem == 1
}

// BuiltinRecognizers returns the standard recognizer set covering the
// built-in entity catalogue. Person-name detection substitutes an
// honorific heuristic for full NLP-based NER.
func BuiltinRecognizers() []Recognizer {
	return []Recognizer{
		&PatternRecognizer{
			entity: "EMAIL_ADDRESS",
			patterns: []pattern{
				{name: "Email", re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), score: 0.9},
			},
			context: []string{"email", "mail", "contact"},
		},
		&PatternRecognizer{
			entity: "PHONE_NUMBER",
			patterns: []pattern{
				{name: "US Phone", re: regexp.MustCompile(`(\+1[\s.-]?)?(\(\d{3}\)|\b\d{3})[\s.-]\d{3}[\s.-]?\d{4}\b`), score: 0.75},
				{name: "International Phone", re: regexp.MustCompile(`\+\d{1,3}[\s.-]?\d{1,4}[\s.-]?\d{3,4}[\s.-]?\d{3,4}\b`), score: 0.6},
			},
			context: []string{"phone", "call", "tel", "mobile", "cell", "number"},
		},
		&PatternRecognizer{
			entity: "US_SSN",
			patterns: []pattern{
				{name: "SSN Dashed", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), score: 0.85},
				{name: "SSN Plain", re: regexp.MustCompile(`\b\d{9}\b`), score: 0.3},
			},
			context: []string{"ssn", "social security", "social-security"},
		},
		&PatternRecognizer{
			entity: "CREDIT_CARD",
			patterns: []pattern{
				{
					name: "Credit Card",
					re:   regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`),
					// Luhn decides: a passing checksum is near-certain,
					// a failing one is noise.
					score: 0.5,
					validate: func(span string) float64 {
						if luhnValid(span) {
							return 0.95
						}
						return -1
					},
				},
			},
			context: []string{"card", "credit", "visa", "mastercard", "amex", "cvv", "payment"},
		},
		&PatternRecognizer{
			entity: "IP_ADDRESS",
			patterns: []pattern{
				{
					name:  "IPv4",
					re:    regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
					score: 0.6,
					validate: func(span string) float64 {
						if net.ParseIP(span) == nil {
							return -1
						}
						return 0.85
					},
				},
				{
					name:  "IPv6",
					re:    regexp.MustCompile(`\b(?:[A-Fa-f0-9]{1,4}:){2,7}[A-Fa-f0-9]{1,4}\b`),
					score: 0.4,
					validate: func(span string) float64 {
						if net.ParseIP(span) == nil {
							return -1
						}
						return 0.85
					},
				},
			},
			context: []string{"ip", "address", "host", "server"},
		},
		&PatternRecognizer{
			entity: "IBAN_CODE",
			patterns: []pattern{
				{
					name:  "IBAN",
					re:    regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`),
					score: 0.4,
					validate: func(span string) float64 {
						if ibanValid(span) {
							return 0.95
						}
						return -1
					},
				},
			},
			context: []string{"iban", "bank", "account", "transfer"},
		},
		&PatternRecognizer{
			entity: "US_PASSPORT",
			patterns: []pattern{
				{name: "US Passport", re: regexp.MustCompile(`\b[A-Z]?\d{8,9}\b`), score: 0.4},
			},
			context: []string{"passport", "travel document"},
		},
		&PatternRecognizer{
			entity: "US_DRIVER_LICENSE",
			patterns: []pattern{
				{name: "Driver License", re: regexp.MustCompile(`\b[A-Z]{1,2}\d{5,8}\b`), score: 0.4},
			},
			context: []string{"driver", "license", "licence", "dl#", "dmv"},
		},
		&PatternRecognizer{
			// Honorific-based heuristic standing in for NLP-based NER.
			entity: "PERSON",
			patterns: []pattern{
				{name: "Honorific Name", re: regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`), score: 0.75},
			},
			context: []string{"name", "person", "contact"},
		},
	}
}

// CustomRecognizers returns the secret-material recognizers: API keys,
// AWS secrets, and private-key blocks.
func CustomRecognizers() []Recognizer {
	return []Recognizer{
		&PatternRecognizer{
			entity: "API_KEY",
			patterns: []pattern{
				{name: "OpenAI API Key", re: regexp.MustCompile(`sk-[a-zA-Z0-9]{48}`), score: 0.95},
				{name: "OpenAI Project Key", re: regexp.MustCompile(`sk-proj-[a-zA-Z0-9\-_]{80,}`), score: 0.95},
				{name: "GitHub PAT", re: regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`), score: 0.95},
				{name: "GitHub OAuth", re: regexp.MustCompile(`gho_[a-zA-Z0-9]{36}`), score: 0.95},
				{name: "AWS Access Key", re: regexp.MustCompile(`AKIA[0-9A-Z]{16}`), score: 0.9},
				{name: "Stripe Key", re: regexp.MustCompile(`sk_(live|test)_[a-zA-Z0-9]{24,}`), score: 0.95},
				{name: "Stripe Publishable", re: regexp.MustCompile(`pk_(live|test)_[a-zA-Z0-9]{24,}`), score: 0.85},
				{name: "Google API Key", re: regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), score: 0.9},
				{name: "Slack Token", re: regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`), score: 0.9},
				{name: "Generic API Key", re: regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|secret[_-]?key|access[_-]?token)['"]?\s*[:=]\s*['"]?[a-zA-Z0-9\-_]{20,}['"]?`), score: 0.7},
			},
			context: []string{"api", "key", "token", "secret", "credential", "auth"},
		},
		&PatternRecognizer{
			entity: "AWS_SECRET",
			patterns: []pattern{
				{name: "AWS Secret Key", re: regexp.MustCompile(`(?i)(?:aws[_-]?secret[_-]?(?:access[_-]?)?key)['"]?\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`), score: 0.9},
				// Standalone 40-char base64; low confidence unless AWS
				// context words appear nearby.
				{name: "AWS Secret Standalone", re: regexp.MustCompile(`\b[A-Za-z0-9/+=]{40}\b`), score: 0.5},
			},
			context: []string{"aws", "amazon", "secret", "credentials", "iam"},
		},
		&PatternRecognizer{
			entity: "PRIVATE_KEY",
			patterns: []pattern{
				{name: "Private Key Block", re: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`), score: 0.99},
			},
			context: []string{"key", "private", "pem", "ssh", "rsa"},
		},
	}
}
