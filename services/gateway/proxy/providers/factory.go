// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import "fmt"

// Known provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Credentials carries the per-provider configuration the factory needs.
type Credentials struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiBaseURL string
}

// Factory builds providers by configuration name.
//
// Thread Safety: Factory is safe for concurrent use.
type Factory struct {
	creds Credentials
}

// NewFactory creates a Factory with the given credentials.
func NewFactory(creds Credentials) *Factory {
	return &Factory{creds: creds}
}

// Create builds the named provider.
//
// Inputs:
//   - name: Provider name ("openai" or "gemini").
//
// Outputs:
//   - Provider: The configured adapter.
//   - error: ErrUnknownProvider (wrapped) for unrecognized names.
func (f *Factory) Create(name string) (Provider, error) {
	switch name {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  f.creds.OpenAIAPIKey,
			BaseURL: f.creds.OpenAIBaseURL,
		}), nil
	case ProviderGemini:
		return NewGeminiProvider(GeminiConfig{
			APIKey:  f.creds.GeminiAPIKey,
			BaseURL: f.creds.GeminiBaseURL,
		}), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}
