package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumina-learn/lumina/pkg/database"
	"github.com/lumina-learn/lumina/pkg/models"
)

// SessionService manages conversation session lifecycle.
type SessionService struct {
	client *database.Client
}

// NewSessionService creates a new SessionService.
func NewSessionService(client *database.Client) *SessionService {
	return &SessionService{client: client}
}

// CreateSession creates a new session row in the created state.
func (s *SessionService) CreateSession(ctx context.Context, userID, missionID, enrollmentID string, kind models.SessionKind) (*models.Session, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	// Commander sessions are created before a mission exists.
	if missionID == "" && kind == models.SessionKindMission {
		return nil, NewValidationError("mission_id", "required")
	}

	now := time.Now()
	sess := &models.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		MissionID:    missionID,
		EnrollmentID: enrollmentID,
		Kind:         kind,
		Status:       models.SessionStatusCreated,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	_, err := s.client.DB().ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, mission_id, enrollment_id, kind, status, created_at, last_active_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.UserID, sess.MissionID, sess.EnrollmentID, sess.Kind, sess.Status, sess.CreatedAt, sess.LastActiveAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetSession retrieves a session by ID.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.client.DB().QueryRowContext(ctx,
		`SELECT id, user_id, mission_id, enrollment_id, kind, status, created_at, last_active_at
		 FROM sessions WHERE id = $1`, sessionID)

	var sess models.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.MissionID, &sess.EnrollmentID,
		&sess.Kind, &sess.Status, &sess.CreatedAt, &sess.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// GetOrCreateSession returns the open session for a user/mission pair,
// creating one if none exists. Completed sessions are never returned; a
// learner who finished a mission starts a fresh session if they reconnect.
func (s *SessionService) GetOrCreateSession(ctx context.Context, userID, missionID, enrollmentID string, kind models.SessionKind) (*models.Session, error) {
	row := s.client.DB().QueryRowContext(ctx,
		`SELECT id, user_id, mission_id, enrollment_id, kind, status, created_at, last_active_at
		 FROM sessions
		 WHERE user_id = $1 AND mission_id = $2 AND status != $3
		 ORDER BY created_at DESC LIMIT 1`,
		userID, missionID, models.SessionStatusCompleted)

	var sess models.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.MissionID, &sess.EnrollmentID,
		&sess.Kind, &sess.Status, &sess.CreatedAt, &sess.LastActiveAt)
	if err == nil {
		return &sess, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	return s.CreateSession(ctx, userID, missionID, enrollmentID, kind)
}

// MarkStarted transitions a created session to started. Starting an
// already-started session is a no-op so reconnects do not fail.
func (s *SessionService) MarkStarted(ctx context.Context, sessionID string) error {
	res, err := s.client.DB().ExecContext(ctx,
		`UPDATE sessions SET status = $1, last_active_at = now()
		 WHERE id = $2 AND status != $3`,
		models.SessionStatusStarted, sessionID, models.SessionStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark session started: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check session update: %w", err)
	}
	if n == 0 {
		return ErrSessionCompleted
	}
	return nil
}

// MarkCompleted transitions a session to its terminal completed state.
// Returns ErrSessionCompleted if it already was, so callers can enforce
// exactly-once completion handling.
func (s *SessionService) MarkCompleted(ctx context.Context, sessionID string) error {
	res, err := s.client.DB().ExecContext(ctx,
		`UPDATE sessions SET status = $1, last_active_at = now()
		 WHERE id = $2 AND status != $1`,
		models.SessionStatusCompleted, sessionID)
	if err != nil {
		return fmt.Errorf("failed to mark session completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check session update: %w", err)
	}
	if n == 0 {
		return ErrSessionCompleted
	}
	return nil
}

// TouchSession bumps last_active_at. Called by the connection worker on
// inbound traffic; failures are logged by the caller, never fatal.
func (s *SessionService) TouchSession(ctx context.Context, sessionID string) error {
	_, err := s.client.DB().ExecContext(ctx,
		`UPDATE sessions SET last_active_at = now() WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}
