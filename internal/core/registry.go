package core

import "sync"

// Registry tracks live connections for routing: connection id to durable
// identity and room. It holds weak references only; all room mutation goes
// through the owning room actor, never through the registry.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]routeEntry
}

type routeEntry struct {
	UserID string
	RoomID string
	Client *Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]routeEntry)}
}

// Admit records a validated connection. Identity must already be established
// by the caller's auth context.
func (r *Registry) Admit(client *Client, roomID string) error {
	if client.UserID == "" {
		return coreError(ErrCodeUnauthenticated, "identity required")
	}
	r.mu.Lock()
	r.conns[client.ConnID] = routeEntry{
		UserID: client.UserID,
		RoomID: roomID,
		Client: client,
	}
	r.mu.Unlock()
	return nil
}

// Route returns the room a connection is attached to.
func (r *Registry) Route(connID string) (string, error) {
	r.mu.RLock()
	entry, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return "", ErrNotInRoom
	}
	return entry.RoomID, nil
}

// Remove forgets a connection. Idempotent.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}

// Len returns the number of tracked connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
