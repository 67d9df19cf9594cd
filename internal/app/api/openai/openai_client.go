package openai

import (
	"github.com/sashabaranov/go-openai"
)

// NewClient builds an OpenAI client for the given API key. An optional
// base URL points the client at a compatible self-hosted endpoint.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
