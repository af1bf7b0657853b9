package router

import "errors"

// Sentinel errors for tool resolution.
var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrUnknownWorker = errors.New("unknown worker role")
)
