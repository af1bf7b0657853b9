// Package mcp implements the client side of the child worker protocol: the
// initialize/initialized handshake and tools/call requests over a transport
// Channel, with strict one-in-flight request/response correlation.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aidconnect/hub/core/jsonrpc"
	"github.com/aidconnect/hub/transport"
)

// ProtocolVersion is the worker protocol revision sent during initialize.
const ProtocolVersion = "2024-11-05"

// DefaultCallTimeout bounds how long a single tools/call may block before
// the worker is considered wedged.
const DefaultCallTimeout = 30 * time.Second

// Client drives the request/response protocol on one channel. The protocol
// is strictly synchronous: a single outstanding request at a time, enforced
// internally with a mutex, so a Client is safe for concurrent callers.
type Client struct {
	ch      *transport.Channel
	timeout time.Duration

	mu          sync.Mutex
	nextID      int64
	initialized bool
}

// NewClient wraps a channel. callTimeout <= 0 selects DefaultCallTimeout.
func NewClient(ch *transport.Channel, callTimeout time.Duration) *Client {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Client{ch: ch, timeout: callTimeout}
}

// Initialize performs the handshake: an initialize request followed by the
// notifications/initialized notification. Must be called exactly once per
// channel before any tool call.
func (c *Client) Initialize(ctx context.Context, info jsonrpc.ClientInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return fmt.Errorf("%w: already initialized", ErrHandshake)
	}

	params := jsonrpc.InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      info,
	}
	resp, err := c.roundTrip(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, resp.Error)
	}

	if err := c.ch.Send(jsonrpc.NewNotification("notifications/initialized", map[string]any{})); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	c.initialized = true
	return nil
}

// CallTool sends a tools/call request and returns the normalized textual
// result: all "text" content items concatenated in order, or the raw result
// serialized when no text items are present. Worker-reported failures come
// back as *RemoteToolError; a missing response within the deadline is
// ErrCallTimeout; a dead channel is transport.ErrChannelClosed.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return "", ErrNotInitialized
	}
	if args == nil {
		args = map[string]any{}
	}

	resp, err := c.roundTrip(ctx, "tools/call", jsonrpc.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", &RemoteToolError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return extractText(resp.Result), nil
}

// Close tears down the underlying channel.
func (c *Client) Close() error {
	return c.ch.Close()
}

// roundTrip issues one request and blocks for the response with the matching
// id, discarding server-initiated notifications and stale replies to
// already-failed requests. Callers hold c.mu, which is what makes ids
// strictly increasing and responses trivially correlated.
func (c *Client) roundTrip(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	c.nextID++
	id := c.nextID

	if err := c.ch.Send(jsonrpc.NewRequest(id, method, params)); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for {
		resp, err := c.ch.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s after %s", ErrCallTimeout, method, c.timeout)
			}
			if errors.Is(err, transport.ErrChannelDecode) {
				// A garbled line is a protocol violation for the
				// in-flight call, not a dead channel.
				return nil, err
			}
			return nil, err
		}
		if resp.IsNotification() {
			continue
		}
		if resp.ID == nil || *resp.ID != id {
			if resp.ID != nil && *resp.ID < id {
				// A reply to an earlier request whose round trip already
				// failed (garbled line, timeout). Ids are strictly
				// increasing, so it can be dropped without desyncing the
				// channel.
				continue
			}
			return nil, fmt.Errorf("%w: response id mismatch (got %v, want %d)", transport.ErrChannelDecode, resp.ID, id)
		}
		return resp, nil
	}
}

// extractText pulls the "text" content items out of a tools/call result.
func extractText(raw json.RawMessage) string {
	var result jsonrpc.ToolResult
	if err := json.Unmarshal(raw, &result); err == nil && len(result.Content) > 0 {
		var parts []string
		for _, item := range result.Content {
			if item.Type == "text" {
				parts = append(parts, item.Text)
			}
		}
		if joined := strings.TrimSpace(strings.Join(parts, "\n")); joined != "" {
			return joined
		}
	}
	return string(raw)
}
