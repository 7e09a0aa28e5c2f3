// Package shutdown tracks every resource that must be released when the
// process terminates and guarantees the release sequence runs exactly once,
// no matter how many termination triggers fire concurrently.
package shutdown

import "sync"

type Registry struct {
	mu      sync.Mutex
	run     bool
	closers []func()
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a close callback. Callbacks registered after Run has fired
// are invoked immediately, so a listener that finishes binding during
// shutdown is still released.
func (r *Registry) Register(close func()) {
	r.mu.Lock()
	if r.run {
		r.mu.Unlock()
		close()
		return
	}
	r.closers = append(r.closers, close)
	r.mu.Unlock()
}

// Run invokes every registered callback in registration order. Only the
// first call does anything.
func (r *Registry) Run() {
	r.mu.Lock()
	if r.run {
		r.mu.Unlock()
		return
	}
	r.run = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for _, close := range closers {
		close()
	}
}
