// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package proxy forwards filtered requests to upstream LLM providers.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aegislabs/aegisproxy/services/gateway/proxy/providers"
	"github.com/aegislabs/aegisproxy/services/gateway/schema"
)

// Handler routes completion calls to upstream providers, constructing
// each adapter lazily on first use and reusing it afterwards.
//
// Thread Safety: Handler is safe for concurrent use.
type Handler struct {
	factory *providers.Factory

	mu    sync.Mutex
	cache map[string]providers.Provider
}

// NewHandler creates a Handler backed by the given factory.
func NewHandler(factory *providers.Factory) *Handler {
	return &Handler{
		factory: factory,
		cache:   make(map[string]providers.Provider),
	}
}

// provider returns the cached adapter for name, building it on first
// use.
func (h *Handler) provider(name string) (providers.Provider, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.cache[name]; ok {
		return p, nil
	}
	p, err := h.factory.Create(name)
	if err != nil {
		return nil, err
	}
	h.cache[name] = p
	return p, nil
}

// Complete forwards a non-streaming request and returns the upstream
// response verbatim. A non-empty apiKey is the caller's own credential
// and takes precedence over the configured one.
func (h *Handler) Complete(ctx context.Context, providerName string, req *schema.ChatCompletionRequest, apiKey string) (*schema.ChatCompletionResponse, error) {
	p, err := h.provider(providerName)
	if err != nil {
		return nil, err
	}
	return p.Complete(ctx, req, apiKey)
}

// StreamCompletion forwards a streaming request and yields SSE-framed
// strings ready to write to the client, ending with the [DONE] frame.
//
// Description:
//
//	An upstream failure before the first chunk is returned directly so
//	the caller can still answer with an error status. Failures mid
//	stream surface on the channel; the [DONE] frame is only sent after
//	a clean upstream finish.
func (h *Handler) StreamCompletion(ctx context.Context, providerName string, req *schema.ChatCompletionRequest, apiKey string) (<-chan string, error) {
	p, err := h.provider(providerName)
	if err != nil {
		return nil, err
	}
	chunks, err := p.Stream(ctx, req, apiKey)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Err != nil {
				return
			}
			select {
			case out <- providers.EncodeEvent(chunk.Data):
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- providers.EncodeDone():
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// Close releases every cached adapter. The first error is returned but
// all adapters are closed regardless.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for name, p := range h.cache {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing provider %s: %w", name, err))
		}
		delete(h.cache, name)
	}
	return errors.Join(errs...)
}
