// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the language-model boundary. Providers turn a system and
// user prompt into completion text; every provider failure is returned as
// an apierr classified error and never retried.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// DefaultMaxTokens bounds completions when the request does not.
const DefaultMaxTokens = 2048

// Request is a single-turn completion request.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Provider completes prompts. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// New builds the provider selected by cfg.Provider. A nil client gets one
// with cfg.Timeout as its overall timeout.
func New(cfg types.LLMConfig, client *http.Client) (Provider, error) {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for %s provider", cfg.Provider)
	}
	switch cfg.Provider {
	case "", "claude":
		model := cfg.Model
		if model == "" {
			model = DefaultClaudeModel
		}
		return &ClaudeProvider{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL, Client: client}, nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, client), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
