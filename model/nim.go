package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aidconnect/hub/core/protocol"
)

// NIMClient speaks the OpenAI-compatible chat-completions REST shape served
// by NVIDIA Integrate. Endpoint failures are returned as bracketed error
// text rather than hard errors so the orchestrator can keep the turn alive
// and let the model's caller see what went wrong.
type NIMClient struct {
	url         string
	model       string
	key         string
	maxTokens   int
	temperature float64
	http        *http.Client
}

// NewNIMClient builds a client from configuration. The API key is read from
// the configured environment variable at construction time.
func NewNIMClient(cfg *Config) (*NIMClient, error) {
	if !strings.HasPrefix(strings.ToLower(cfg.URL), "http") {
		return nil, fmt.Errorf("model url is not HTTP(S): %q", cfg.URL)
	}
	timeout := time.Duration(cfg.TimeoutSec * float64(time.Second))
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &NIMClient{
		url:         cfg.URL,
		model:       cfg.Name,
		key:         os.Getenv(cfg.APIKeyEnv),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		http:        &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []protocol.Message `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat performs one completion call and returns the assistant text.
func (c *NIMClient) Chat(ctx context.Context, messages []protocol.Message) (string, error) {
	if c.key == "" {
		return "[NV ERROR] API key not set", nil
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Sprintf("[NV CONNECT ERROR] %v", err), nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("[NV HTTP ERROR] %d %s", resp.StatusCode, strings.TrimSpace(string(data))), nil
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Choices) == 0 {
		return string(data), nil
	}
	return parsed.Choices[0].Message.Content, nil
}
