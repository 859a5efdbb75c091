package automation

import (
	"sync"

	"github.com/google/uuid"
)

// Registry enforces single-flight pipeline runs per work order.
type Registry struct {
	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

// NewRegistry returns an empty run registry.
func NewRegistry() *Registry {
	return &Registry{running: make(map[uuid.UUID]struct{})}
}

// Acquire claims the work order for a run. It returns ok=false when a run is
// already in flight; otherwise the returned release must be called when the
// run finishes.
func (r *Registry) Acquire(id uuid.UUID) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.running[id]; exists {
		return nil, false
	}
	r.running[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.running, id)
			r.mu.Unlock()
		})
	}, true
}

// Running reports whether a run is in flight for the work order.
func (r *Registry) Running(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[id]
	return ok
}
