package models

// CheckpointProgress is a snapshot of mission completion bookkeeping for
// one enrollment. Progress is monotonically non-decreasing over the life
// of the enrollment.
type CheckpointProgress struct {
	EnrollmentID         string   `json:"enrollment_id"`
	CompletedCheckpoints []string `json:"completed_checkpoints"`
	TotalCheckpoints     int      `json:"total_checkpoints"`
	// Progress is completed/total clamped to [0,1].
	Progress float64 `json:"progress"`
}

// Complete reports whether every checkpoint has been recorded.
func (p CheckpointProgress) Complete() bool {
	return p.Progress >= 1.0
}

// Percent returns the progress as a percentage in [0,100] for
// presentation. The stored fraction is never rounded.
func (p CheckpointProgress) Percent() float64 {
	pct := p.Progress * 100.0
	if pct > 100.0 {
		return 100.0
	}
	return pct
}
