package reasoner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// genaiBackend talks to the Gemini API.
type genaiBackend struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func newGenAIBackend(ctx context.Context, cfg BackendConfig) (*genaiBackend, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("reasoner: gemini client: %w", err)
	}
	return &genaiBackend{client: client, model: cfg.Model, maxTokens: int32(cfg.MaxTokens)}, nil
}

func (g *genaiBackend) Generate(ctx context.Context, prompt string, jpeg []byte) (string, error) {
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(jpeg, "image/jpeg"),
	}, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content},
		&genai.GenerateContentConfig{MaxOutputTokens: g.maxTokens})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			result.WriteString(part.Text)
		}
	}
	if result.Len() == 0 {
		return "", errors.New("empty response")
	}
	return result.String(), nil
}
