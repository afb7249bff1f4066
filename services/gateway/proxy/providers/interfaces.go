// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers holds the upstream LLM adapters. Each adapter
// speaks one provider's chat-completions dialect; the proxy handler
// selects adapters by name and treats them uniformly.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aegislabs/aegisproxy/services/gateway/schema"
)

// ErrUnknownProvider is returned by the factory for unrecognized names.
var ErrUnknownProvider = errors.New("unknown provider")

// StreamChunk is one decoded streaming event, or a terminal error. The
// producing goroutine closes the channel after the last chunk.
type StreamChunk struct {
	Data json.RawMessage
	Err  error
}

// Provider is an upstream chat-completions backend.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider's configuration name.
	Name() string

	// Complete posts the request and returns the parsed response.
	// A non-empty apiKey overrides the provider's configured key,
	// forwarding the caller's own credential upstream.
	Complete(ctx context.Context, req *schema.ChatCompletionRequest, apiKey string) (*schema.ChatCompletionResponse, error)

	// Stream posts the request with stream enabled and yields decoded
	// chunks. An upstream failure before the first chunk is returned
	// directly; later failures arrive on the channel.
	Stream(ctx context.Context, req *schema.ChatCompletionRequest, apiKey string) (<-chan StreamChunk, error)

	// Close releases pooled connections.
	Close() error
}

// UpstreamError reports an HTTP failure from a provider. The body is
// truncated upstream detail, never client content.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}
