// Package session manages per-conversation message history for the hub.
//
// Sessions are independent; turns within one session are serialized by the
// caller through BeginTurn/EndTurn since history mutation is not safe to
// interleave.
package session

import (
	"sync"

	"github.com/aidconnect/hub/core/protocol"
)

// Session holds the ordered, append-only (except trimming) message history
// of one conversation.
type Session struct {
	id string

	// turn serializes whole user turns on this session.
	turn sync.Mutex

	mu       sync.RWMutex
	messages []protocol.Message
	max      int
	trimTo   int
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// BeginTurn blocks until the session is free to process a user turn.
func (s *Session) BeginTurn() {
	s.turn.Lock()
}

// EndTurn releases the session for the next turn.
func (s *Session) EndTurn() {
	s.turn.Unlock()
}

// Append adds a message and enforces the history bound: once the history
// exceeds max entries it is cut down to the newest trimTo, re-prepending a
// leading system message so the operating instructions survive trimming.
func (s *Session) Append(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	if s.max <= 0 || len(s.messages) <= s.max {
		return
	}

	var system *protocol.Message
	if s.messages[0].Role == protocol.RoleSystem {
		head := s.messages[0]
		system = &head
	}

	keep := s.trimTo
	if system != nil {
		keep--
	}
	if keep > len(s.messages) {
		keep = len(s.messages)
	}
	tail := s.messages[len(s.messages)-keep:]

	trimmed := make([]protocol.Message, 0, s.trimTo)
	if system != nil {
		trimmed = append(trimmed, *system)
	}
	trimmed = append(trimmed, tail...)
	s.messages = trimmed
}

// Messages returns a defensive copy of the history.
func (s *Session) Messages() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]protocol.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the current history length.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
