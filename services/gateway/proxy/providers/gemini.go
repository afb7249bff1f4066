// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

// defaultGeminiBaseURL is Google's OpenAI-compatible endpoint for the
// Gemini API.
const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// GeminiConfig configures a Gemini provider.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
}

// NewGeminiProvider creates a provider for the Gemini API via its
// OpenAI-compatible surface, so the wire handling is shared with the
// OpenAI adapter.
//
// Inputs:
//   - cfg: API key and optional base URL override.
//
// Outputs:
//   - *OpenAIProvider: The configured provider, named "gemini".
func NewGeminiProvider(cfg GeminiConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &OpenAIProvider{
		name:       "gemini",
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: newUpstreamClient(),
	}
}
