// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gateway is the HTTP surface of the security proxy: it
// validates OpenAI-style chat requests, runs them through the filter
// pipeline, and relays clean traffic upstream.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/aegislabs/aegisproxy/services/gateway/config"
	"github.com/aegislabs/aegisproxy/services/gateway/filters"
	"github.com/aegislabs/aegisproxy/services/gateway/proxy"
	"github.com/aegislabs/aegisproxy/services/gateway/proxy/providers"
	"github.com/aegislabs/aegisproxy/services/gateway/schema"
	"github.com/aegislabs/aegisproxy/services/gateway/telemetry"
)

const chatEndpoint = "/v1/chat/completions"

// Handlers carries the wired collaborators for every route. One
// instance is built at startup and shared across requests.
//
// Thread Safety: Handlers is safe for concurrent use; all collaborators
// serialize their own state.
type Handlers struct {
	cfg      config.Config
	pipeline *filters.Pipeline
	proxy    *proxy.Handler
	stats    *telemetry.StatsStore
	logger   *slog.Logger
	version  string
}

// NewHandlers wires the route handlers.
func NewHandlers(cfg config.Config, pipe *filters.Pipeline, prx *proxy.Handler, stats *telemetry.StatsStore, logger *slog.Logger, version string) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		cfg:      cfg,
		pipeline: pipe,
		proxy:    prx,
		stats:    stats,
		logger:   logger,
		version:  version,
	}
}

// HandleRoot identifies the service.
func (h *Handlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "aegisproxy",
		"version": h.version,
		"status":  "operational",
	})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
	})
}

// HandleModels returns a static pass-through model list in the OpenAI
// shape. The gateway does not interrogate upstreams for their catalogs.
func (h *Handlers) HandleModels(c *gin.Context) {
	now := time.Now().Unix()
	models := []gin.H{
		{"id": "gpt-4o", "object": "model", "created": now, "owned_by": "openai"},
		{"id": "gpt-4o-mini", "object": "model", "created": now, "owned_by": "openai"},
		{"id": "gemini-2.0-flash", "object": "model", "created": now, "owned_by": "google"},
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": models})
}

// HandleChatCompletions is the core proxy path.
//
// Description:
//
//	Validates the request, runs every message through the filter
//	pipeline, and forwards the processed form upstream. A pipeline
//	block answers 403 with the structured security envelope; upstream
//	failures answer 502. Streaming responses are relayed as SSE with
//	the [DONE] terminator.
func (h *Handlers) HandleChatCompletions(c *gin.Context) {
	start := time.Now()
	requestID := RequestID(c)

	var req schema.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.RecordRequest("validation_error", chatEndpoint, time.Since(start).Seconds())
		c.JSON(http.StatusBadRequest, schema.ErrorResponse{
			Error: schema.ErrorDetail{
				Message: validationMessage(err),
				Type:    "invalid_request_error",
			},
		})
		return
	}

	fctx := filters.NewFilterContext(requestID, clientInfo(c))
	msgs := make([]filters.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = filters.Message(m)
	}

	result := h.pipeline.Process(c.Request.Context(), msgs, fctx)

	piiCount := 0
	injectionScore := 0.0
	for _, f := range result.AllFindings {
		switch f.Kind {
		case filters.KindPII:
			piiCount++
		case filters.KindInjection:
			if f.Confidence > injectionScore {
				injectionScore = f.Confidence
			}
		}
	}

	if result.Blocked {
		latency := time.Since(start)
		telemetry.RecordRequest("blocked", chatEndpoint, latency.Seconds())
		h.recordStats(requestID, "blocked", piiCount, injectionScore, latency, req.Model)
		h.logger.Warn("request blocked",
			"request_id", requestID,
			"filter", result.BlockingFilter,
			"pii_count", piiCount,
			"injection_score", injectionScore,
			"model", req.Model)
		c.JSON(http.StatusForbidden, schema.SecurityBlockResponse{
			Error: schema.ErrorDetail{
				Message: result.BlockReason,
				Type:    "security_block",
				Code:    "prompt_injection_detected",
			},
			SecurityEventID: requestID,
		})
		return
	}

	for i, pm := range result.ProcessedMessages {
		req.Messages[i] = schema.ChatMessage(pm)
	}

	status := "clean"
	if piiCount > 0 {
		status = "redacted"
	}
	apiKey := bearerToken(c)
	providerName := h.providerFor(req.Model)

	if req.Stream {
		h.streamUpstream(c, &req, providerName, apiKey, requestID, status, piiCount, injectionScore, start)
		return
	}

	resp, err := h.proxy.Complete(c.Request.Context(), providerName, &req, apiKey)
	if err != nil {
		h.answerUpstreamError(c, err, requestID, start)
		return
	}

	latency := time.Since(start)
	telemetry.RecordRequest("success", chatEndpoint, latency.Seconds())
	h.recordStats(requestID, status, piiCount, injectionScore, latency, req.Model)
	c.JSON(http.StatusOK, resp)
}

// streamUpstream relays the SSE stream. The outcome is recorded at
// dispatch; a mid-stream failure reaches the client as premature
// termination, never as an injected error frame.
func (h *Handlers) streamUpstream(c *gin.Context, req *schema.ChatCompletionRequest, providerName, apiKey, requestID, status string, piiCount int, injectionScore float64, start time.Time) {
	frames, err := h.proxy.StreamCompletion(c.Request.Context(), providerName, req, apiKey)
	if err != nil {
		h.answerUpstreamError(c, err, requestID, start)
		return
	}

	latency := time.Since(start)
	telemetry.RecordRequest("success", chatEndpoint, latency.Seconds())
	h.recordStats(requestID, status, piiCount, injectionScore, latency, req.Model)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		frame, ok := <-frames
		if !ok {
			return false
		}
		if _, err := io.WriteString(w, frame); err != nil {
			return false
		}
		return true
	})
}

// answerUpstreamError maps transport failures to the 502 envelope.
func (h *Handlers) answerUpstreamError(c *gin.Context, err error, requestID string, start time.Time) {
	latency := time.Since(start)
	telemetry.RecordRequest("upstream_error", chatEndpoint, latency.Seconds())
	h.recordStats(requestID, "error", 0, 0, latency, "")

	msg := "upstream request failed"
	var upstream *providers.UpstreamError
	if errors.As(err, &upstream) {
		msg = fmt.Sprintf("upstream returned status %d", upstream.StatusCode)
	}
	h.logger.Error("proxy error", "request_id", requestID, "error", err)
	c.JSON(http.StatusBadGateway, schema.ErrorResponse{
		Error: schema.ErrorDetail{Message: msg, Type: "proxy_error"},
	})
}

// HandleDashboardStats serves the aggregate counters.
func (h *Handlers) HandleDashboardStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Stats())
}

// HandleDashboardActivity serves the recent-request ring, newest first.
func (h *Handlers) HandleDashboardActivity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"requests": h.stats.Activity()})
}

// HandleDashboardChart serves hourly buckets for the last 12 hours.
func (h *Handlers) HandleDashboardChart(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"points": h.stats.ChartData()})
}

// providerFor picks the upstream adapter. Gemini models route to the
// gemini adapter; everything else goes to the configured default.
func (h *Handlers) providerFor(model string) string {
	if strings.HasPrefix(model, "gemini") {
		return providers.ProviderGemini
	}
	return h.cfg.DefaultProvider
}

// recordStats feeds the dashboard store when one is wired.
func (h *Handlers) recordStats(requestID, status string, piiCount int, injectionScore float64, latency time.Duration, model string) {
	if h.stats == nil {
		return
	}
	h.stats.RecordRequest(telemetry.RequestRecord{
		ID:             requestID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Status:         status,
		PIICount:       piiCount,
		InjectionScore: injectionScore,
		LatencyMs:      float64(latency.Microseconds()) / 1000,
		Model:          model,
	})
}

// bearerToken extracts the caller's upstream credential, if presented.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}

// validationMessage flattens binding failures into one OpenAI-style
// message without echoing any submitted values.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("field %q failed validation on %q", fe.Field(), fe.Tag()))
		}
		return strings.Join(parts, "; ")
	}
	return "invalid request body"
}
