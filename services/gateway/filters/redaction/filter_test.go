// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package redaction

import (
	"context"
	"testing"

	"github.com/aegislabs/aegisproxy/services/gateway/filters"
)

func TestFilterIdentity(t *testing.T) {
	f, err := NewFilter(Config{Mode: "placeholder", Enabled: true})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if f.Name() != "redaction_filter" {
		t.Errorf("Name() = %q", f.Name())
	}
	if f.Priority() != 100 {
		t.Errorf("Priority() = %d, want 100", f.Priority())
	}
}

func TestNewFilterRejectsBadMode(t *testing.T) {
	if _, err := NewFilter(Config{Mode: "rot13"}); err == nil {
		t.Error("invalid mode accepted")
	}
}

func TestAnalyzeConsumesStagedFindings(t *testing.T) {
	f, _ := NewFilter(Config{Mode: "placeholder", Enabled: true})
	fctx := filters.NewFilterContext("req-1", nil)
	text := "mail a@x.com now"
	fctx.StagePIIFindings([]filters.Finding{finding("EMAIL_ADDRESS", 5, 12, 0.9)})

	res, err := f.Analyze(context.Background(), text, fctx)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Action != filters.ActionRedact {
		t.Fatalf("action = %v, want redact", res.Action)
	}
	if !res.HasModifiedContent || res.ModifiedContent != "mail [EMAIL_1] now" {
		t.Errorf("modified = %q", res.ModifiedContent)
	}
}

func TestAnalyzePassesWithNothingStaged(t *testing.T) {
	f, _ := NewFilter(Config{Mode: "placeholder", Enabled: true})
	fctx := filters.NewFilterContext("req-2", nil)

	res, err := f.Analyze(context.Background(), "nothing sensitive", fctx)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Action != filters.ActionPass {
		t.Errorf("action = %v, want pass", res.Action)
	}
	if res.HasModifiedContent {
		t.Error("pass result carries modified content")
	}
}
