package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

func TestFuncAdapter(t *testing.T) {
	gen := Func(func(ctx context.Context, payload string) (string, error) {
		return "echo: " + payload, nil
	})

	out, err := gen.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{Reason: "GEMINI_API_KEY not set"}.Generate(context.Background(), "hi")
	require.ErrorIs(t, err, model.ErrGeneration)
	assert.ErrorContains(t, err, "GEMINI_API_KEY not set")

	_, err = Unavailable{}.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, model.ErrGeneration)
}
