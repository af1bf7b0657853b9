package session

import (
	"sync"

	"github.com/google/uuid"
)

// Default history bounds: trim to the newest trimTo entries once the
// history exceeds max.
const (
	DefaultMaxHistory = 500
	DefaultTrimTo     = 200
)

// Config holds session store initialization parameters.
type Config struct {
	MaxHistory int `json:"max_history,omitempty"`
	TrimTo     int `json:"trim_to,omitempty"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{MaxHistory: DefaultMaxHistory, TrimTo: DefaultTrimTo}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MaxHistory > 0 {
		c.MaxHistory = source.MaxHistory
	}
	if source.TrimTo > 0 {
		c.TrimTo = source.TrimTo
	}
}

// Store is the process-wide mapping from session id to history. Lookup is
// guarded by one lock; history mutation is guarded per session so unrelated
// sessions never serialize on each other.
type Store struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty Store with the given bounds. TrimTo is clamped
// to MaxHistory so a small history cap with a defaulted trim target cannot
// produce an impossible bound.
func NewStore(cfg Config) *Store {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.TrimTo <= 0 {
		cfg.TrimTo = DefaultTrimTo
	}
	if cfg.TrimTo > cfg.MaxHistory {
		cfg.TrimTo = cfg.MaxHistory
	}
	return &Store{cfg: cfg, sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it lazily. An omitted or
// unknown id yields a fresh session under a newly generated UUIDv7; callers
// learn the identifier from the session itself.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" {
		if s, ok := st.sessions[id]; ok {
			return s
		}
	}
	id = uuid.Must(uuid.NewV7()).String()

	s := &Session{id: id, max: st.cfg.MaxHistory, trimTo: st.cfg.TrimTo}
	st.sessions[id] = s
	return s
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
