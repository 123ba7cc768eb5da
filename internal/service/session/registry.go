// Package session maps connecting identities to their current isolation
// boundary. A session exists for the lifetime of one connection; there is
// no resumption across reconnects.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks identity -> session id for all live connections.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]string)}
}

// Attach allocates a fresh session for the identity and records the
// mapping. A second connect from the same identity overwrites the entry;
// the earlier connection keeps its session id but is no longer reachable
// through the registry.
func (r *Registry) Attach(identity string) string {
	sessionID := uuid.NewString()

	r.mu.Lock()
	r.sessions[identity] = sessionID
	r.mu.Unlock()

	return sessionID
}

// Detach removes the mapping. No-op if the identity is absent, so teardown
// paths may call it unconditionally.
func (r *Registry) Detach(identity string) {
	r.mu.Lock()
	delete(r.sessions, identity)
	r.mu.Unlock()
}

// Lookup returns the identity's current session, if any.
func (r *Registry) Lookup(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.sessions[identity]
	return sessionID, ok
}

// Len reports how many identities are currently attached.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
