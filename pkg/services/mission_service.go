package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lumina-learn/lumina/pkg/database"
	"github.com/lumina-learn/lumina/pkg/models"
)

// MissionService reads mission and enrollment records. Mission CRUD is
// owned by another service; the orchestrator only consumes them and
// updates enrollment progress.
type MissionService struct {
	client *database.Client
}

// NewMissionService creates a new MissionService.
func NewMissionService(client *database.Client) *MissionService {
	return &MissionService{client: client}
}

// GetMission retrieves a mission by ID.
func (s *MissionService) GetMission(ctx context.Context, missionID string) (*models.Mission, error) {
	row := s.client.DB().QueryRowContext(ctx,
		`SELECT id, title, description, checkpoints, created_at FROM missions WHERE id = $1`,
		missionID)

	var m models.Mission
	var checkpoints []byte
	err := row.Scan(&m.ID, &m.Title, &m.Description, &checkpoints, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	if err := json.Unmarshal(checkpoints, &m.Checkpoints); err != nil {
		return nil, fmt.Errorf("failed to decode mission checkpoints: %w", err)
	}
	return &m, nil
}

// GetEnrollment retrieves a user's enrollment in a mission.
func (s *MissionService) GetEnrollment(ctx context.Context, userID, missionID string) (*models.Enrollment, error) {
	row := s.client.DB().QueryRowContext(ctx,
		`SELECT id, user_id, mission_id, completed_checkpoints, progress, created_at, updated_at
		 FROM enrollments WHERE user_id = $1 AND mission_id = $2`,
		userID, missionID)

	var e models.Enrollment
	var completed []byte
	err := row.Scan(&e.ID, &e.UserID, &e.MissionID, &completed, &e.Progress, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if err := json.Unmarshal(completed, &e.CompletedCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to decode completed checkpoints: %w", err)
	}
	return &e, nil
}

// UpdateEnrollmentProgress persists the completed-checkpoint set and the
// stored progress fraction for an enrollment.
func (s *MissionService) UpdateEnrollmentProgress(ctx context.Context, enrollmentID string, completedCheckpoints []string, progress float64) error {
	if completedCheckpoints == nil {
		completedCheckpoints = []string{}
	}
	completed, err := json.Marshal(completedCheckpoints)
	if err != nil {
		return fmt.Errorf("failed to encode completed checkpoints: %w", err)
	}

	res, err := s.client.DB().ExecContext(ctx,
		`UPDATE enrollments SET completed_checkpoints = $1, progress = $2, updated_at = now()
		 WHERE id = $3`,
		completed, progress, enrollmentID)
	if err != nil {
		return fmt.Errorf("failed to update enrollment progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check enrollment update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
