// Package jsonrpc defines the line-delimited JSON-RPC 2.0 envelopes spoken
// between the hub and its child worker processes. One JSON value per line,
// UTF-8, no embedded newlines.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version carried in every envelope.
const Version = "2.0"

// Request is an outbound envelope. A nil ID marks a notification, for which
// no response will arrive.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a request envelope with the given id.
func NewRequest(id int64, method string, params any) Request {
	return Request{JSONRPC: Version, ID: &id, Method: method, Params: params}
}

// NewNotification builds a one-way envelope with no id.
func NewNotification(method string, params any) Request {
	return Request{JSONRPC: Version, Method: method, Params: params}
}

// Response is an inbound envelope. Exactly one of Result or Error is set on
// a reply to a request; envelopes with a Method and no ID are
// server-initiated notifications and carry neither.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsNotification reports whether the envelope is a server-initiated
// notification rather than a reply.
func (r *Response) IsNotification() bool {
	return r.ID == nil && r.Method != ""
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// ContentItem is one element of a tools/call result's content array.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult is the result payload of a tools/call response.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// InitializeParams is the params payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// ClientInfo identifies the hub to a worker during the handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CallToolParams is the params payload of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
