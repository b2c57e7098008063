package registry

import (
	"context"
	"sync"
)

// LocalRegistry is the single-process implementation: a mutex-guarded set
// of bound session ids.
type LocalRegistry struct {
	mu    sync.Mutex
	bound map[string]struct{}
}

// NewLocalRegistry creates an empty registry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{bound: make(map[string]struct{})}
}

// Bind acquires the exclusive binding for a session.
func (r *LocalRegistry) Bind(_ context.Context, sessionID string) (Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.bound[sessionID]; taken {
		return nil, ErrSessionBusy
	}
	r.bound[sessionID] = struct{}{}
	return &localLease{registry: r, sessionID: sessionID}, nil
}

// Shutdown drops all bindings.
func (r *LocalRegistry) Shutdown(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = make(map[string]struct{})
	return nil
}

// Len returns the number of active bindings.
func (r *LocalRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound)
}

type localLease struct {
	registry  *LocalRegistry
	sessionID string
	once      sync.Once
}

func (l *localLease) SessionID() string { return l.sessionID }

func (l *localLease) Release() {
	l.once.Do(func() {
		l.registry.mu.Lock()
		defer l.registry.mu.Unlock()
		delete(l.registry.bound, l.sessionID)
	})
}
