// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package filters defines the security filter contract and the pipeline
// that orchestrates filters over chat messages. Filters are registered once
// at startup and run sequentially in priority order for every message of
// every inbound request.
//
// Thread Safety:
//
//	Filter implementations must be safe for concurrent use: one pipeline
//	instance serves all requests. All per-request state lives in the
//	FilterContext, which is never shared across requests.
package filters

import (
	"context"
	"errors"
	"fmt"
)

// Action is the decision a filter returns for a piece of content.
type Action int

const (
	// ActionPass continues processing with the content unchanged.
	ActionPass Action = iota

	// ActionRedact continues processing with the filter's modified content.
	ActionRedact

	// ActionBlock stops the pipeline and rejects the request.
	ActionBlock
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionPass:
		return "pass"
	case ActionRedact:
		return "redact"
	case ActionBlock:
		return "block"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// FindingKind classifies what family of detector produced a finding.
type FindingKind int

const (
	// KindPII marks findings from PII recognizers.
	KindPII FindingKind = iota

	// KindInjection marks findings from the prompt injection detector.
	KindInjection

	// KindCustom marks findings from user-registered filters.
	KindCustom
)

// String returns the wire name of the finding kind.
func (k FindingKind) String() string {
	switch k {
	case KindPII:
		return "pii"
	case KindInjection:
		return "injection"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Finding records that a filter detected something in a message.
//
// A Finding deliberately never carries the matched text. Offsets, entity
// types, confidences, and counts are safe to log and export as metrics;
// the content they point into is not.
type Finding struct {
	// Kind is the detector family (pii, injection, custom).
	Kind FindingKind

	// EntityType names what was detected (e.g. "EMAIL_ADDRESS",
	// "ignore_instructions").
	EntityType string

	// Confidence is the detector's score in [0, 1].
	Confidence float64

	// Start and End are half-open character offsets into the analyzed
	// content, with Start <= End <= len(content).
	Start int
	End   int

	// FilterName identifies the filter that produced this finding.
	FilterName string

	// Metadata holds detector-specific detail (scores, pattern lists).
	// Values must never contain matched content.
	Metadata map[string]any
}

// FilterContext carries per-request state through the pipeline.
//
// One FilterContext exists per inbound request and is discarded when the
// response is sent. Only filters mutate it.
//
// Thread Safety: NOT safe for concurrent use. Filters within one request
// run sequentially, so no locking is needed.
type FilterContext struct {
	// RequestID is the gateway-assigned identifier for this request.
	RequestID string

	// ClientInfo holds client metadata (ip, user agent, origin) for logs.
	ClientInfo map[string]string

	// Metadata is a scratch map shared across filters in one request.
	// Custom filters may stage collaboration data here.
	Metadata map[string]any

	// piiFindings is the typed collaboration slot between the PII
	// detector and the redaction filter. Other filters must not touch it.
	piiFindings []Finding
}

// NewFilterContext creates a context for a single inbound request.
func NewFilterContext(requestID string, clientInfo map[string]string) *FilterContext {
	if clientInfo == nil {
		clientInfo = make(map[string]string)
	}
	return &FilterContext{
		RequestID:  requestID,
		ClientInfo: clientInfo,
		Metadata:   make(map[string]any),
	}
}

// StagePIIFindings appends findings to the PII collaboration slot consumed
// by the redaction filter later in the same message's filter sequence.
func (c *FilterContext) StagePIIFindings(findings []Finding) {
	c.piiFindings = append(c.piiFindings, findings...)
}

// StagedPIIFindings returns the findings staged by the PII detector for the
// content currently being processed.
func (c *FilterContext) StagedPIIFindings() []Finding {
	return c.piiFindings
}

// ResetStagedPIIFindings clears the collaboration slot. The pipeline calls
// this between messages so findings from one message never drive redaction
// of another.
func (c *FilterContext) ResetStagedPIIFindings() {
	c.piiFindings = nil
}

// FilterResult is what a filter returns from Analyze.
type FilterResult struct {
	// Action is the filter's decision.
	Action Action

	// ModifiedContent carries the rewritten text when Action is
	// ActionRedact. Empty means the content is unchanged.
	ModifiedContent string

	// HasModifiedContent distinguishes "redact to empty string" from
	// "no modification".
	HasModifiedContent bool

	// Findings are the detections behind this decision.
	Findings []Finding

	// Reason is a human-readable explanation, safe to log (no content).
	Reason string
}

// Filter is the capability contract every security filter implements.
// The pipeline never inspects a filter's concrete type.
type Filter interface {
	// Name returns the stable filter identifier used in logs and metrics.
	Name() string

	// Priority orders execution; lower runs earlier. Default is 100.
	Priority() int

	// Enabled reports whether the pipeline should invoke this filter.
	Enabled() bool

	// Analyze inspects content and returns a decision. Errors are
	// non-fatal to the pipeline unless the filter fails closed by
	// returning ActionBlock itself.
	Analyze(ctx context.Context, content string, fctx *FilterContext) (*FilterResult, error)
}

// PipelineResult is the outcome of running all filters over all messages
// of one request. Created fresh per request; lifetime equals the request.
type PipelineResult struct {
	// Blocked is true when any filter returned ActionBlock.
	Blocked bool

	// BlockReason explains the block (content-free).
	BlockReason string

	// BlockingFilter names the filter that blocked.
	BlockingFilter string

	// ProcessedMessages are the sanitized messages in input order. When
	// Blocked is true the suffix from the blocking message onward is
	// undefined and must not be read.
	ProcessedMessages []Message

	// AllFindings accumulates findings from every filter over every
	// message, in detection order.
	AllFindings []Finding
}

// Message is the minimal message shape the pipeline operates on. It mirrors
// schema.ChatMessage structurally so the gateway can convert with a cast-free
// copy, without coupling the filter packages to the wire schema.
type Message struct {
	Role    string
	Content *string
	Name    string
}

// ErrRequestBlocked is the sentinel wrapped into errors surfaced when a
// pipeline result has Blocked set and a caller needs an error value.
var ErrRequestBlocked = errors.New("filters: request blocked by security policy")
