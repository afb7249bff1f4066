// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/aegislabs/aegisproxy/services/gateway/filters"
)

func finding(entity string, start, end int, confidence float64) filters.Finding {
	return filters.Finding{
		Kind:       filters.KindPII,
		EntityType: entity,
		Confidence: confidence,
		Start:      start,
		End:        end,
		FilterName: "pii_detector",
	}
}

func TestPlaceholderMode(t *testing.T) {
	text := "Please contact me at admin@company.com regarding the merger."
	start := strings.Index(text, "admin@")
	res := NewEngine(ModePlaceholder).Redact(text, []filters.Finding{
		finding("EMAIL_ADDRESS", start, start+len("admin@company.com"), 0.9),
	})
	want := "Please contact me at [EMAIL_1] regarding the merger."
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
	if len(res.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(res.Items))
	}
	item := res.Items[0]
	if res.Text[item.Start:item.End] != "[EMAIL_1]" {
		t.Errorf("item offsets [%d, %d) point at %q in rewritten text", item.Start, item.End, res.Text[item.Start:item.End])
	}
}

func TestPlaceholderCountersPerType(t *testing.T) {
	text := "a@x.com b@y.com 555-867-5309"
	res := NewEngine(ModePlaceholder).Redact(text, []filters.Finding{
		finding("EMAIL_ADDRESS", 0, 7, 0.9),
		finding("EMAIL_ADDRESS", 8, 15, 0.9),
		finding("PHONE_NUMBER", 16, 28, 0.75),
	})
	want := "[EMAIL_1] [EMAIL_2] [PHONE_NUMBER_1]"
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
}

func TestShortTypeStripping(t *testing.T) {
	tests := []struct {
		entity string
		want   string
	}{
		{"EMAIL_ADDRESS", "EMAIL"},
		{"IP_ADDRESS", "IP"},
		{"US_SSN", "SSN"},
		{"US_PASSPORT", "PASSPORT"},
		{"PHONE_NUMBER", "PHONE_NUMBER"},
		{"API_KEY", "API_KEY"},
	}
	for _, tt := range tests {
		if got := shortType(tt.entity); got != tt.want {
			t.Errorf("shortType(%q) = %q, want %q", tt.entity, got, tt.want)
		}
	}
}

func TestTypeOnlyMode(t *testing.T) {
	res := NewEngine(ModeTypeOnly).Redact("a@x.com b@y.com", []filters.Finding{
		finding("EMAIL_ADDRESS", 0, 7, 0.9),
		finding("EMAIL_ADDRESS", 8, 15, 0.9),
	})
	if res.Text != "[EMAIL] [EMAIL]" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestMaskMode(t *testing.T) {
	res := NewEngine(ModeMask).Redact("key sk-abcdef1234", []filters.Finding{
		finding("API_KEY", 4, 17, 0.95),
	})
	// First eight characters masked, remainder kept.
	if res.Text != "key ********f1234" {
		t.Errorf("Text = %q", res.Text)
	}
	short := NewEngine(ModeMask).Redact("pin 1234", []filters.Finding{
		finding("PIN", 4, 8, 0.9),
	})
	if short.Text != "pin ****" {
		t.Errorf("short span Text = %q", short.Text)
	}
}

func TestHashMode(t *testing.T) {
	span := "admin@company.com"
	text := "contact " + span
	res := NewEngine(ModeHash).Redact(text, []filters.Finding{
		finding("EMAIL_ADDRESS", 8, 8+len(span), 0.9),
	})
	sum := sha256.Sum256([]byte(span))
	want := "contact " + hex.EncodeToString(sum[:])
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
}

func TestOverlapResolution(t *testing.T) {
	// Higher confidence wins, then longer span, then earlier start.
	text := "0123456789"
	res := NewEngine(ModePlaceholder).Redact(text, []filters.Finding{
		finding("API_KEY", 0, 6, 0.95),
		finding("AWS_SECRET", 4, 10, 0.5),
	})
	if res.Text != "[API_KEY_1]6789" {
		t.Errorf("Text = %q", res.Text)
	}

	tie := NewEngine(ModePlaceholder).Redact(text, []filters.Finding{
		finding("A", 2, 5, 0.9),
		finding("B", 3, 10, 0.9),
	})
	if tie.Text != "012[B_1]" {
		t.Errorf("tie Text = %q, want longer span to win", tie.Text)
	}
}

func TestRedactIdempotentOnPlaceholders(t *testing.T) {
	// Placeholder output carries no spans, so a second pass with no
	// findings leaves it untouched.
	once := NewEngine(ModePlaceholder).Redact("mail me at a@x.com", []filters.Finding{
		finding("EMAIL_ADDRESS", 11, 18, 0.9),
	})
	twice := NewEngine(ModePlaceholder).Redact(once.Text, nil)
	if twice.Text != once.Text {
		t.Errorf("second pass changed text: %q -> %q", once.Text, twice.Text)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"placeholder", "type_only", "mask", "hash", ""} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q) = %v", s, err)
		}
	}
	if _, err := ParseMode("rot13"); err == nil {
		t.Error("ParseMode(rot13) accepted")
	}
}
