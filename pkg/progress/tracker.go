// Package progress tracks checkpoint completion for one mission session.
package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumina-learn/lumina/pkg/models"
	"github.com/lumina-learn/lumina/pkg/services"
)

// Store persists the completed-checkpoint set for an enrollment.
type Store interface {
	UpdateEnrollmentProgress(ctx context.Context, enrollmentID string, completedCheckpoints []string, progress float64) error
}

// SessionGuard marks the owning session completed. It must return
// services.ErrSessionCompleted when the session is already completed so
// the completion signal fires at most once.
type SessionGuard interface {
	MarkCompleted(ctx context.Context, sessionID string) error
}

// Tracker consumes checkpoint-completion signals for one session,
// persists the updated enrollment progress, and decides mission
// completion. It is owned by a single connection worker and is not safe
// for concurrent use.
//
// Progress is stored as a fraction in [0,1], recomputed as
// completed/total on every change; it never decreases.
type Tracker struct {
	store Store
	guard SessionGuard

	sessionID    string
	enrollmentID string
	checkpoints  []string
	completed    map[string]bool
	order        []string
}

// NewTracker builds a tracker seeded with the mission's checkpoint list
// and the enrollment's previously completed checkpoints. Stored
// checkpoint ids not present in the mission are dropped.
func NewTracker(store Store, guard SessionGuard, sessionID, enrollmentID string, checkpoints, completed []string) *Tracker {
	t := &Tracker{
		store:        store,
		guard:        guard,
		sessionID:    sessionID,
		enrollmentID: enrollmentID,
		checkpoints:  checkpoints,
		completed:    make(map[string]bool, len(checkpoints)),
	}
	known := make(map[string]bool, len(checkpoints))
	for _, c := range checkpoints {
		known[c] = true
	}
	for _, c := range completed {
		if known[c] && !t.completed[c] {
			t.completed[c] = true
			t.order = append(t.order, c)
		}
	}
	return t
}

// Snapshot returns the current progress without touching the store.
func (t *Tracker) Snapshot() models.CheckpointProgress {
	total := len(t.checkpoints)
	fraction := 0.0
	if total > 0 {
		fraction = float64(len(t.order)) / float64(total)
	}
	if fraction > 1.0 {
		fraction = 1.0
	}
	return models.CheckpointProgress{
		EnrollmentID:         t.enrollmentID,
		CompletedCheckpoints: append([]string(nil), t.order...),
		TotalCheckpoints:     total,
		Progress:             fraction,
	}
}

// RecordCompletion records one checkpoint as done and persists the new
// progress. Recording an id already present, or one not in the mission,
// is a no-op that returns the unchanged snapshot; duplicate signals from
// a replayed or retried turn are tolerated.
func (t *Tracker) RecordCompletion(ctx context.Context, checkpointID string) (models.CheckpointProgress, error) {
	if !t.isKnown(checkpointID) || t.completed[checkpointID] {
		return t.Snapshot(), nil
	}
	t.completed[checkpointID] = true
	t.order = append(t.order, checkpointID)

	snap := t.Snapshot()
	if err := t.store.UpdateEnrollmentProgress(ctx, t.enrollmentID, snap.CompletedCheckpoints, snap.Progress); err != nil {
		return snap, fmt.Errorf("persist checkpoint completion: %w", err)
	}
	return snap, nil
}

// CompleteAll marks every remaining checkpoint complete and forces the
// stored progress to 1.0. Used when the terminal agent signals mission
// completion even if individual checkpoint signals were missed.
func (t *Tracker) CompleteAll(ctx context.Context) (models.CheckpointProgress, error) {
	for _, c := range t.checkpoints {
		if !t.completed[c] {
			t.completed[c] = true
			t.order = append(t.order, c)
		}
	}
	snap := t.Snapshot()
	if err := t.store.UpdateEnrollmentProgress(ctx, t.enrollmentID, snap.CompletedCheckpoints, snap.Progress); err != nil {
		return snap, fmt.Errorf("persist mission completion: %w", err)
	}
	return snap, nil
}

// SignalCompletion reports mission completion exactly once per session.
// It returns true only on the call that transitions the session to
// completed; later calls (and calls before progress reaches 1.0) return
// false.
func (t *Tracker) SignalCompletion(ctx context.Context) (bool, error) {
	if !t.Snapshot().Complete() {
		return false, nil
	}
	err := t.guard.MarkCompleted(ctx, t.sessionID)
	if errors.Is(err, services.ErrSessionCompleted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark session completed: %w", err)
	}
	return true, nil
}

func (t *Tracker) isKnown(checkpointID string) bool {
	for _, c := range t.checkpoints {
		if c == checkpointID {
			return true
		}
	}
	return false
}
