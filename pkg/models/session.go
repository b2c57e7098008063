package models

import "time"

// SessionStatus represents the lifecycle state of a learning session.
type SessionStatus string

const (
	// SessionStatusCreated means the session row exists but no client has
	// ever connected to it.
	SessionStatusCreated SessionStatus = "created"
	// SessionStatusStarted means at least one client connection has been
	// established for the session.
	SessionStatusStarted SessionStatus = "started"
	// SessionStatusCompleted means the mission was finished; further
	// connection attempts are rejected.
	SessionStatusCompleted SessionStatus = "completed"
)

// IsOpen reports whether new connections may still bind to the session.
func (s SessionStatus) IsOpen() bool {
	return s == SessionStatusCreated || s == SessionStatusStarted
}

// SessionKind distinguishes the two conversation endpoints.
type SessionKind string

const (
	// SessionKindMission is a learner working through mission checkpoints.
	SessionKindMission SessionKind = "mission"
	// SessionKindCommander is a creator building a new mission.
	SessionKindCommander SessionKind = "commander"
)

// Session is one learner's run through one mission conversation.
// The ID is immutable. At most one live connection may be bound to a
// session at any instant; that exclusivity is enforced by pkg/registry,
// not by this struct.
type Session struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	MissionID    string        `json:"mission_id"`
	EnrollmentID string        `json:"enrollment_id"`
	Kind         SessionKind   `json:"kind"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
}
