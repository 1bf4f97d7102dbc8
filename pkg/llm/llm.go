// Package llm provides language-generation clients for the call
// pipeline, one per supported provider.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hamon-Elyot/testcall/pkg/call"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is "openai" or "gemini". Empty selects openai.
	Provider string

	APIKey string
	Model  string

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

// New builds the generation client for the configured provider.
func New(ctx context.Context, cfg Config) (call.Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAI(cfg), nil
	case "gemini":
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
