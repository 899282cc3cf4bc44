package presence

import "sync"

// Handle is a reference to one live, push-capable connection.
type Handle interface {
	// Push queues a payload for delivery and never blocks; a full or
	// closed connection drops the payload.
	Push(payload []byte)
}

// Registry maps a user id to its live connection. Presence is a
// liveness hint, never persisted: a restart means everyone is offline
// until they rejoin. A user opening a second session overwrites the
// first mapping (last join wins).
type Registry struct {
	mu      sync.Mutex
	online  map[string]Handle
	byConn  map[Handle]string
}

func NewRegistry() *Registry {
	return &Registry{
		online: make(map[string]Handle),
		byConn: make(map[Handle]string),
	}
}

// Join registers the handle as the user's live connection,
// overwriting any prior session.
func (r *Registry) Join(userID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.online[userID]; ok {
		delete(r.byConn, old)
	}
	r.online[userID] = h
	r.byConn[h] = userID
}

// Leave removes the handle's mapping and returns the affected user.
// A handle superseded by a newer join finds no mapping and returns
// ok=false.
func (r *Registry) Leave(h Handle) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byConn[h]
	if !ok {
		return "", false
	}
	delete(r.byConn, h)
	if r.online[userID] == h {
		delete(r.online, userID)
	}
	return userID, true
}

func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.online[userID]
	return h, ok
}

// Snapshot lists every user currently online.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.online))
	for id := range r.online {
		users = append(users, id)
	}
	return users
}

// Handles returns every live handle, for broadcasts.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs := make([]Handle, 0, len(r.online))
	for _, h := range r.online {
		hs = append(hs, h)
	}
	return hs
}
