// Package ai wraps external language-model providers behind a single
// interface so the analysis service does not care which vendor answers.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrProviderUnavailable is returned when the upstream provider cannot be
// reached or rejects the request with a server-side error.
var ErrProviderUnavailable = errors.New("ai provider unavailable")

// Request is a single completion request. The system prompt frames the
// clinical context; the user prompt carries the patient data to analyze.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Response is the provider's answer plus usage accounting.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider generates a completion for a request. Implementations must honor
// context cancellation.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// NewProvider constructs the provider named in configuration.
func NewProvider(name, openaiKey, geminiKey string) (Provider, error) {
	switch name {
	case "openai":
		if openaiKey == "" {
			return nil, errors.New("openai provider selected but no API key configured")
		}
		return NewOpenAIClient(openaiKey), nil
	case "gemini":
		if geminiKey == "" {
			return nil, errors.New("gemini provider selected but no API key configured")
		}
		return NewGeminiClient(geminiKey), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", name)
	}
}
