package model

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aidconnect/hub/core/protocol"
)

// AnthropicClient plans through the Anthropic Messages API. System-role
// history entries become the system prompt; the rest map onto alternating
// user/assistant messages.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicClient builds a client from configuration.
func NewAnthropicClient(cfg *Config) (*AnthropicClient, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("anthropic api key env %s is empty", cfg.APIKeyEnv)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 700
	}
	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(key)),
		model:       cfg.Name,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Chat performs one completion call and returns the assistant text.
func (c *AnthropicClient) Chat(ctx context.Context, messages []protocol.Message) (string, error) {
	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case protocol.RoleSystem:
			system = append(system, anthropic.NewTextBlock(msg.Content))
		case protocol.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(c.model)),
		MaxTokens:   anthropic.Int(int64(c.maxTokens)),
		Messages:    anthropic.F(turns),
		Temperature: anthropic.Float(c.temperature),
	}
	if len(system) > 0 {
		params.System = anthropic.F(system)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
