// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package schema defines the OpenAI-compatible wire types shared by the
// gateway handlers, the filter pipeline, and the provider adapters.
//
// The request schema carries validator/v10 binding tags; out-of-range values
// are rejected by the gateway before the filter pipeline runs.
package schema

import "encoding/json"

// ChatMessage is a single message in a chat conversation.
//
// Content is a pointer: tool-result shells legitimately arrive with no
// content and must pass through the filter pipeline untouched.
type ChatMessage struct {
	Role    string  `json:"role" binding:"required,oneof=system user assistant tool"`
	Content *string `json:"content,omitempty"`
	Name    string  `json:"name,omitempty"`
}

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
//
// Thread Safety: ChatCompletionRequest is not safe for concurrent mutation;
// the gateway treats it as owned by a single request.
type ChatCompletionRequest struct {
	Model            string        `json:"model" binding:"required"`
	Messages         []ChatMessage `json:"messages" binding:"required,min=1,dive"`
	Temperature      *float64      `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
	TopP             *float64      `json:"top_p,omitempty" binding:"omitempty,gte=0,lte=1"`
	N                *int          `json:"n,omitempty" binding:"omitempty,gte=1,lte=128"`
	Stream           bool          `json:"stream,omitempty"`
	Stop             *StopSequence `json:"stop,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty" binding:"omitempty,gte=1"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty" binding:"omitempty,gte=-2,lte=2"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty" binding:"omitempty,gte=-2,lte=2"`
	User             string        `json:"user,omitempty"`
}

// StopSequence accepts either a single string or a list of strings, matching
// the OpenAI wire format for the "stop" field.
type StopSequence struct {
	Sequences []string
}

// UnmarshalJSON accepts "stop": "\n" and "stop": ["\n", "END"].
func (s *StopSequence) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		s.Sequences = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	s.Sequences = many
	return nil
}

// MarshalJSON re-emits a single string when only one sequence is present,
// preserving the client's original shape for the upstream provider.
func (s StopSequence) MarshalJSON() ([]byte, error) {
	if len(s.Sequences) == 1 {
		return json.Marshal(s.Sequences[0])
	}
	return json.Marshal(s.Sequences)
}

// ChatCompletionChoice is a single completion choice.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// Usage reports token accounting from the upstream provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is an OpenAI-compatible chat completion response.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *Usage                 `json:"usage,omitempty"`
}

// ErrorDetail follows the OpenAI error envelope format.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// SecurityBlockResponse is returned when a request is rejected by the
// security filter pipeline. SecurityEventID echoes the request ID so a
// blocked request can be correlated with audit logs without exposing any
// matched content.
type SecurityBlockResponse struct {
	Error           ErrorDetail `json:"error"`
	SecurityEventID string      `json:"security_event_id,omitempty"`
}
