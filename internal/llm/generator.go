// Package llm defines the generation collaborator boundary and its
// Gemini-backed implementation.
package llm

import (
	"context"
	"fmt"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// Generator produces text for an assembled payload. Timeout and retry
// policy belong to the implementation, not to the memory core.
type Generator interface {
	Generate(ctx context.Context, payload string) (string, error)
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, payload string) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, payload string) (string, error) {
	return f(ctx, payload)
}

// Unavailable is a Generator that always fails; used when no API key is
// configured so that non-generating commands still work.
type Unavailable struct {
	Reason string
}

// Generate implements Generator.
func (u Unavailable) Generate(ctx context.Context, payload string) (string, error) {
	reason := u.Reason
	if reason == "" {
		reason = "no generator configured"
	}
	return "", fmt.Errorf("%w: %s", model.ErrGeneration, reason)
}
