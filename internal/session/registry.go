package session

import (
	"log/slog"
	"sync"
)

// Registry maps call identifiers to live sessions. A session is created on
// first use and removed when its media stream ends, so the map never holds
// entries for finished calls.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for callID, creating it if absent.
// The second return reports whether the session was newly created.
func (r *Registry) GetOrCreate(callID, streamID string, opts ...Option) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[callID]; ok {
		return s, false
	}
	s := New(callID, streamID, opts...)
	r.sessions[callID] = s
	r.logger.Debug("session created", "call", callID, "session", s.ID)
	return s, true
}

// Get returns the session for callID, or nil.
func (r *Registry) Get(callID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[callID]
}

// Remove evicts and closes the session for callID. Removing an unknown call
// is a no-op.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	s, ok := r.sessions[callID]
	delete(r.sessions, callID)
	r.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	r.logger.Debug("session removed", "call", callID, "session", s.ID)
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
