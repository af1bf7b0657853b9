// Package model abstracts the language model used for the planning step.
// Providers return the assistant's raw text; interpreting that text as a
// tool call or final answer is the plan package's job.
package model

import (
	"context"
	"fmt"

	"github.com/aidconnect/hub/core/protocol"
)

// Client produces one assistant completion for a conversation.
type Client interface {
	Chat(ctx context.Context, messages []protocol.Message) (string, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider    string  `json:"provider,omitempty"` // "nim" (default) or "anthropic"
	URL         string  `json:"url,omitempty"`
	Name        string  `json:"name,omitempty"`
	APIKeyEnv   string  `json:"api_key_env,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TimeoutSec  float64 `json:"timeout_sec,omitempty"`
	Cache       bool    `json:"cache,omitempty"`
}

// DefaultConfig returns the default model configuration: the NVIDIA
// Integrate chat-completions endpoint with response caching on.
func DefaultConfig() Config {
	return Config{
		Provider:    "nim",
		URL:         "https://integrate.api.nvidia.com/v1/chat/completions",
		Name:        "meta/llama-4-maverick-17b-128e-instruct",
		APIKeyEnv:   "NV_API_KEY",
		MaxTokens:   700,
		Temperature: 0.2,
		TimeoutSec:  25,
		Cache:       true,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.URL != "" {
		c.URL = source.URL
	}
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.APIKeyEnv != "" {
		c.APIKeyEnv = source.APIKeyEnv
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.Temperature > 0 {
		c.Temperature = source.Temperature
	}
	if source.TimeoutSec > 0 {
		c.TimeoutSec = source.TimeoutSec
	}
	if source.Cache {
		c.Cache = true
	}
}

// New creates a Client from configuration, wrapping it in the response
// cache when enabled.
func New(cfg *Config) (Client, error) {
	var client Client
	var err error
	switch cfg.Provider {
	case "", "nim":
		client, err = NewNIMClient(cfg)
	case "anthropic":
		client, err = NewAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Cache {
		client = WithCache(client)
	}
	return client, nil
}
