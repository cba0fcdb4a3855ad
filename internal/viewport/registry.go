package viewport

import (
	"sort"
	"sync"
)

// Observer is what a Registry drives. *Tracker implements it.
type Observer interface {
	Observe(index int, h Handle)
	Unobserve(index int)
}

// Registry maps render indices to live handles, at most one per index.
// It is owned by the rendering layer's mount and unmount lifecycle.
type Registry struct {
	// bind serialises a map change with the matching observer call, so the
	// observer always ends up watching exactly the registered handles.
	bind sync.Mutex

	mu      sync.Mutex
	handles map[int]Handle
	obs     Observer
}

// NewRegistry returns a Registry forwarding to obs (which may be nil).
func NewRegistry(obs Observer) *Registry {
	return &Registry{handles: make(map[int]Handle), obs: obs}
}

// Register binds h to index, superseding and unobserving any previous
// handle there. A nil h unregisters.
func (r *Registry) Register(index int, h Handle) {
	if h == nil {
		r.Unregister(index)
		return
	}
	r.bind.Lock()
	defer r.bind.Unlock()
	r.mu.Lock()
	r.handles[index] = h
	r.mu.Unlock()

	// Observe replaces the tracker's target for index, which also drops
	// the superseded handle.
	if r.obs != nil {
		r.obs.Observe(index, h)
	}
}

// Unregister removes whatever is bound at index. No-op when absent.
func (r *Registry) Unregister(index int) {
	r.bind.Lock()
	defer r.bind.Unlock()
	r.mu.Lock()
	_, ok := r.handles[index]
	delete(r.handles, index)
	r.mu.Unlock()
	if ok && r.obs != nil {
		r.obs.Unobserve(index)
	}
}

// Release removes index only if h is still the handle bound there. A card
// unmounting late cannot evict the card that replaced it. Handles must be
// comparable (pointer types are).
func (r *Registry) Release(index int, h Handle) bool {
	r.bind.Lock()
	defer r.bind.Unlock()
	r.mu.Lock()
	cur, ok := r.handles[index]
	if !ok || cur != h {
		r.mu.Unlock()
		return false
	}
	delete(r.handles, index)
	r.mu.Unlock()
	if r.obs != nil {
		r.obs.Unobserve(index)
	}
	return true
}

// Lookup returns the handle at index.
func (r *Registry) Lookup(index int) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[index]
	return h, ok
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Indices returns registered indices in ascending order.
func (r *Registry) Indices() []int {
	r.mu.Lock()
	out := make([]int, 0, len(r.handles))
	for idx := range r.handles {
		out = append(out, idx)
	}
	r.mu.Unlock()
	sort.Ints(out)
	return out
}

// Clear unregisters every handle.
func (r *Registry) Clear() {
	for _, idx := range r.Indices() {
		r.Unregister(idx)
	}
}
