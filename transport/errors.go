package transport

import "errors"

// Sentinel errors for channel operations.
var (
	// ErrChannelWrite means the write side failed, usually because the
	// child process exited or closed its stdin.
	ErrChannelWrite = errors.New("channel write failed")
	// ErrChannelClosed means the read side reached end-of-input: the child
	// exited or the channel was closed locally.
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelDecode means a received line was not a valid envelope.
	ErrChannelDecode = errors.New("channel decode failed")
)
