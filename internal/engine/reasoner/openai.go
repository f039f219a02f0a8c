package reasoner

import (
	"context"
	"encoding/base64"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// openaiBackend talks to any OpenAI-compatible chat completions endpoint.
type openaiBackend struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func newOpenAIBackend(cfg BackendConfig) *openaiBackend {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		// Used as-is; providers differ on whether the path carries /v1.
		cc.BaseURL = cfg.Endpoint
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	return &openaiBackend{
		client:    openai.NewClientWithConfig(cc),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

func (o *openaiBackend) Generate(ctx context.Context, prompt string, jpeg []byte) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		}},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
