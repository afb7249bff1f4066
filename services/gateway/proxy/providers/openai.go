// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aegislabs/aegisproxy/services/gateway/schema"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"

	// Upstream I/O limits: overall request budget and connect budget.
	requestTimeout = 60 * time.Second
	connectTimeout = 10 * time.Second

	// Error bodies are surfaced for diagnostics but never in full.
	maxErrorBodyBytes = 512

	providerTracerName = "gateway/proxy/providers"
)

// OpenAIProvider speaks the OpenAI chat-completions API. It also serves
// any OpenAI-compatible endpoint when BaseURL points elsewhere.
//
// Thread Safety: OpenAIProvider is safe for concurrent use.
type OpenAIProvider struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// NewOpenAIProvider creates a provider for the OpenAI API.
//
// Inputs:
//   - cfg: API key and optional base URL override.
//
// Outputs:
//   - *OpenAIProvider: The configured provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		name:       "openai",
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: newUpstreamClient(),
	}
}

// newUpstreamClient builds the shared HTTP client shape for adapters:
// hard overall timeout for non-streaming calls is applied per request,
// connect timeout at the dialer.
func newUpstreamClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return p.name }

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req *schema.ChatCompletionRequest, apiKey string) (*schema.ChatCompletionResponse, error) {
	ctx, span := otel.Tracer(providerTracerName).Start(ctx, "providers.OpenAIProvider.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", p.name),
		attribute.String("model", req.Model),
	)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := p.post(ctx, req, apiKey, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var out schema.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decoding %s response: %w", p.name, err)
	}
	return &out, nil
}

// Stream implements Provider.
//
// Description:
//
//	Issues the completion call with stream enabled and decodes the SSE
//	body on a dedicated goroutine. The channel closes when upstream
//	finishes or the context is canceled; the response body is always
//	released.
func (p *OpenAIProvider) Stream(ctx context.Context, req *schema.ChatCompletionRequest, apiKey string) (<-chan StreamChunk, error) {
	ctx, span := otel.Tracer(providerTracerName).Start(ctx, "providers.OpenAIProvider.Stream")
	span.SetAttributes(
		attribute.String("provider", p.name),
		attribute.String("model", req.Model),
	)

	streamed := *req
	streamed.Stream = true

	resp, err := p.post(ctx, &streamed, apiKey, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer span.End()
		defer resp.Body.Close()

		dec := NewDecoder(resp.Body)
		for {
			chunk, err := dec.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case out <- StreamChunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- StreamChunk{Data: chunk}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// post serializes and sends the request, converting HTTP-level failures
// to UpstreamError. apiKey, when non-empty, replaces the configured key.
func (p *OpenAIProvider) post(ctx context.Context, req *schema.ChatCompletionRequest, apiKey string, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	key := apiKey
	if key == "" {
		key = p.apiKey
	}
	if key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", p.name, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		return nil, &UpstreamError{Provider: p.name, StatusCode: resp.StatusCode, Body: string(detail)}
	}
	return resp, nil
}

// Close implements Provider.
func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
