package reasoner

import (
	"context"
	"fmt"
	"net/http"
)

// Wire protocols a backend can speak.
const (
	ProtocolGenAI  = "genai"
	ProtocolOpenAI = "openai"
)

const defaultMaxTokens = 1000

// Backend sends one multimodal request to a remote generative service.
type Backend interface {
	Generate(ctx context.Context, prompt string, jpeg []byte) (string, error)
}

// BackendConfig is the endpoint/model/credential triple of one backend.
type BackendConfig struct {
	Protocol   string
	Endpoint   string // empty selects the provider default
	Model      string
	APIKey     string
	MaxTokens  int
	HTTPClient *http.Client // optional, for proxies and tests
}

// NewBackend builds the client for cfg.Protocol.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("reasoner: backend model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	switch cfg.Protocol {
	case ProtocolGenAI:
		return newGenAIBackend(ctx, cfg)
	case ProtocolOpenAI:
		return newOpenAIBackend(cfg), nil
	default:
		return nil, fmt.Errorf("reasoner: unsupported protocol %q", cfg.Protocol)
	}
}
