// Package registry enforces at-most-one active connection per session.
//
// The registry is the only mutual-exclusion resource shared between
// connection workers. It is an explicit, injectable component: empty at
// process start, entries created on Bind and removed on Release, all
// entries dropped on Shutdown. The Redis implementation lets multiple
// replicas share one exclusivity domain.
package registry

import (
	"context"
	"errors"
)

// ErrSessionBusy is returned when a session already has a live connection
// bound to it. Policy is reject-new: the existing connection keeps its
// binding and the new attempt fails.
var ErrSessionBusy = errors.New("session already has an active connection")

// Lease is an exclusive binding for one session. Release must be called
// exactly once per successful Bind, on every worker exit path.
type Lease interface {
	// SessionID returns the bound session id.
	SessionID() string
	// Release frees the binding. Safe to call only once.
	Release()
}

// Registry binds sessions exclusively to connection workers.
type Registry interface {
	// Bind acquires the exclusive binding for a session, or returns
	// ErrSessionBusy if another connection holds it.
	Bind(ctx context.Context, sessionID string) (Lease, error)
	// Shutdown drops all bindings. Called on process teardown.
	Shutdown(ctx context.Context) error
}
