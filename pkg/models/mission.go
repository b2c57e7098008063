package models

import "time"

// Mission is the externally-owned learning plan. The orchestrator only
// reads it: checkpoint ids drive progress bookkeeping, nothing else.
type Mission struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Checkpoints []string  `json:"checkpoints"`
	CreatedAt   time.Time `json:"created_at"`
}

// Enrollment associates a user with a mission and carries the progress
// bookkeeping the checkpoint tracker maintains.
type Enrollment struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	MissionID            string    `json:"mission_id"`
	CompletedCheckpoints []string  `json:"completed_checkpoints"`
	// Progress is the stored fraction in [0,1]. Percentage rounding
	// happens at presentation time only.
	Progress  float64   `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCheckpoint reports whether the given checkpoint id is already in the
// completed set.
func (e *Enrollment) HasCheckpoint(checkpointID string) bool {
	for _, c := range e.CompletedCheckpoints {
		if c == checkpointID {
			return true
		}
	}
	return false
}
