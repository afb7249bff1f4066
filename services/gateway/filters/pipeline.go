// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package filters

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aegislabs/aegisproxy/services/gateway/telemetry"
)

// Pipeline runs registered filters over every message of a request, in
// priority order, applying redactions and short-circuiting on block.
//
// Thread Safety: Register is not safe for concurrent use with Process;
// register everything at startup, then the pipeline is read-only and
// safe for concurrent requests.
type Pipeline struct {
	filters []Filter
	logger  *slog.Logger
}

// NewPipeline builds an empty pipeline.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

// Register appends a filter and re-sorts by ascending priority. Sorting
// is stable so equal-priority filters keep registration order.
func (p *Pipeline) Register(f Filter) {
	p.filters = append(p.filters, f)
	sort.SliceStable(p.filters, func(i, j int) bool {
		return p.filters[i].Priority() < p.filters[j].Priority()
	})
}

// Filters returns the registered filters in execution order.
func (p *Pipeline) Filters() []Filter { return p.filters }

// Process runs every message through the filter chain.
//
// Description:
//
//	Messages are handled in input order. Within a message each enabled
//	filter sees the output of the previous one, so redacted text is
//	what later filters analyze. A block short-circuits the whole
//	request immediately; the processed-message suffix after a block is
//	unspecified and callers must not read it. Filter errors are logged
//	and skipped unless the failing filter also returned a block.
func (p *Pipeline) Process(ctx context.Context, messages []Message, fctx *FilterContext) *PipelineResult {
	tracer := otel.Tracer("gateway/filters")
	ctx, span := tracer.Start(ctx, "pipeline.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", fctx.RequestID),
		attribute.Int("message.count", len(messages)),
	)

	result := &PipelineResult{}
	processed := make([]Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Content == nil {
			processed = append(processed, msg)
			continue
		}
		current := *msg.Content
		fctx.ResetStagedPIIFindings()

		for _, f := range p.filters {
			if !f.Enabled() {
				continue
			}
			start := time.Now()
			res, err := f.Analyze(ctx, current, fctx)
			telemetry.ObserveFilterDuration(f.Name(), time.Since(start).Seconds())
			if err != nil {
				p.logger.Error("filter failed",
					"filter", f.Name(),
					"request_id", fctx.RequestID,
					"error", err)
				if res == nil || res.Action != ActionBlock {
					continue
				}
			}
			if res == nil {
				continue
			}

			result.AllFindings = append(result.AllFindings, res.Findings...)

			switch res.Action {
			case ActionBlock:
				result.Blocked = true
				result.BlockReason = res.Reason
				result.BlockingFilter = f.Name()
				result.ProcessedMessages = processed
				return result
			case ActionRedact:
				if res.HasModifiedContent {
					current = res.ModifiedContent
				}
			}
		}

		out := msg
		out.Content = &current
		processed = append(processed, out)
	}

	result.ProcessedMessages = processed
	return result
}
