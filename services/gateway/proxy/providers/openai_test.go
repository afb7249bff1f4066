// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegislabs/aegisproxy/services/gateway/schema"
)

func strPtr(s string) *string { return &s }

func chatRequest() *schema.ChatCompletionRequest {
	return &schema.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []schema.ChatMessage{{Role: "user", Content: strPtr("hello")}},
	}
}

func TestCompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req schema.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(schema.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []schema.ChatCompletionChoice{{
				Message: schema.ChatMessage{Role: "assistant", Content: strPtr("hi")},
			}},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	defer p.Close()

	resp, err := p.Complete(context.Background(), chatRequest(), "")
	require.NoError(t, err)
	assert.Equal(t, "chatcmpl-1", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi", *resp.Choices[0].Message.Content)
}

func TestCompletePerCallKeyOverridesConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer caller-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(schema.ChatCompletionResponse{ID: "chatcmpl-2"})
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "configured-key", BaseURL: server.URL})
	defer p.Close()

	_, err := p.Complete(context.Background(), chatRequest(), "caller-key")
	require.NoError(t, err)
}

func TestCompleteUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	defer p.Close()

	_, err := p.Complete(context.Background(), chatRequest(), "")
	require.Error(t, err)
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
}

func TestStreamDecodesChunksUntilDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req schema.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream, "stream flag should be forced on")

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"id\":\"c1\"}\n\n"))
		w.Write([]byte(": comment line, ignored\n"))
		w.Write([]byte("data: not json, dropped\n\n"))
		w.Write([]byte("data: {\"id\":\"c2\"}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	defer p.Close()

	chunks, err := p.Stream(context.Background(), chatRequest(), "")
	require.NoError(t, err)

	var ids []string
	for chunk := range chunks {
		require.NoError(t, chunk.Err)
		var payload struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(chunk.Data, &payload))
		ids = append(ids, payload.ID)
	}
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestStreamUpstreamFailureBeforeFirstChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	defer p.Close()

	_, err := p.Stream(context.Background(), chatRequest(), "")
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
}

func TestFactoryCreatesByName(t *testing.T) {
	f := NewFactory(Credentials{OpenAIAPIKey: "a", GeminiAPIKey: "b"})

	openai, err := f.Create(ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "openai", openai.Name())

	gemini, err := f.Create(ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "gemini", gemini.Name())

	_, err = f.Create("mystery")
	require.ErrorIs(t, err, ErrUnknownProvider)
}
