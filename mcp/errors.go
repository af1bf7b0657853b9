package mcp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the RPC layer.
var (
	// ErrHandshake means the initialize exchange failed; the worker is
	// unusable and should be discarded.
	ErrHandshake = errors.New("handshake failed")
	// ErrCallTimeout means no response arrived within the call deadline.
	ErrCallTimeout = errors.New("tool call timed out")
	// ErrNotInitialized means CallTool was invoked before Initialize.
	ErrNotInitialized = errors.New("client not initialized")
)

// RemoteToolError carries the error object a worker returned for a tool
// call. It is returned to the router rather than crashing the turn; the
// model is expected to see and react to tool failures.
type RemoteToolError struct {
	Code    int
	Message string
}

func (e *RemoteToolError) Error() string {
	return fmt.Sprintf("remote tool error %d: %s", e.Code, e.Message)
}
