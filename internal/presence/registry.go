package presence

import (
	"sync"
	"time"
)

// Registry owns the set of connected clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*ClientSession
	now     func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = utcNow
	}
	return &Registry{clients: map[string]*ClientSession{}, now: now}
}

// Connect inserts a placeholder session for id. It reports false when the id
// is already connected, in which case the existing session is returned.
func (r *Registry) Connect(id string) (ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[id]; ok {
		return existing.clone(), false
	}
	s := &ClientSession{ID: id, Metadata: map[string]string{}}
	r.clients[id] = s
	return s.clone(), true
}

// Register names a connected client. Unknown ids are a no-op.
func (r *Registry) Register(id, name string, metadata map[string]string) (ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.clients[id]
	if !ok {
		return ClientSession{}, false
	}
	s.Name = name
	s.ConnectedAt = r.now()
	s.Metadata = cloneMetadata(metadata)
	return s.clone(), true
}

// UpdateMetadata replaces the metadata of a connected client wholesale.
func (r *Registry) UpdateMetadata(id string, metadata map[string]string) (ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.clients[id]
	if !ok {
		return ClientSession{}, false
	}
	s.Metadata = cloneMetadata(metadata)
	return s.clone(), true
}

// Remove deletes the session and returns it. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) (ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.clients[id]
	if !ok {
		return ClientSession{}, false
	}
	delete(r.clients, id)
	return s.clone(), true
}

func (r *Registry) Get(id string) (ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.clients[id]
	if !ok {
		return ClientSession{}, false
	}
	return s.clone(), true
}

// All returns a snapshot of every session, ordered by id.
func (r *Registry) All() []ClientSession {
	r.mu.RLock()
	out := make([]ClientSession, 0, len(r.clients))
	for _, s := range r.clients {
		out = append(out, s.clone())
	}
	r.mu.RUnlock()
	sortSessions(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func utcNow() time.Time { return time.Now().UTC() }
