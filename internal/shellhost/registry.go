package shellhost

import "sync"

// Registry tracks live shell sessions by run id. The daemon routes report
// updates through it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session under a run id.
func (r *Registry) Add(runID string, s *Session) {
	r.mu.Lock()
	r.sessions[runID] = s
	r.mu.Unlock()
}

// Get looks a session up.
func (r *Registry) Get(runID string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[runID]
	r.mu.Unlock()
	return s, ok
}

// Remove drops and closes the session for a run. Reports for it fail from
// then on.
func (r *Registry) Remove(runID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[runID]
	delete(r.sessions, runID)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// CloseAll tears every session down.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
