package provider

import (
	"context"
	"sync"
)

// streamRegistry maps live stream ids to their cancel functions. Both
// transports share it so StopStream is a plain id lookup.
type streamRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (r *streamRegistry) add(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[id] = cancel
}

// cancel cancels the stream if it is still live. Unknown ids are a no-op;
// stopping an already-finished stream must not error.
func (r *streamRegistry) cancel(id string) {
	r.mu.Lock()
	fn, ok := r.cancels[id]
	delete(r.cancels, id)
	r.mu.Unlock()
	if ok {
		fn()
	}
}

func (r *streamRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn, ok := r.cancels[id]; ok {
		fn()
		delete(r.cancels, id)
	}
}

func (r *streamRegistry) live(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[id]
	return ok
}
