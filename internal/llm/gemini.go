package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

const defaultModel = "gemini-2.5-flash"

// Gemini generates text through the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	system string
}

// NewGemini creates a Gemini-backed generator. systemInstruction may be
// empty.
func NewGemini(ctx context.Context, apiKey, modelName, systemInstruction string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{client: client, model: modelName, system: systemInstruction}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, payload string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if g.system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(g.system, genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(payload), cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrGeneration, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", model.ErrGeneration)
	}
	return text, nil
}
