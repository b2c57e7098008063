package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumina-learn/lumina/pkg/database"
	"github.com/lumina-learn/lumina/pkg/models"
)

// MessageService manages the persisted conversation log.
type MessageService struct {
	client *database.Client
}

// NewMessageService creates a new MessageService.
func NewMessageService(client *database.Client) *MessageService {
	return &MessageService{client: client}
}

// AppendMessage persists a message with the next sequence number for the
// session. Sequence allocation and insert run in one transaction; within a
// session all writes come from the single owning connection worker, so
// MAX+1 cannot race with itself.
func (s *MessageService) AppendMessage(ctx context.Context, sessionID string, direction models.MessageDirection, kind models.MessageKind, content, agentName string) (*models.Message, error) {
	if sessionID == "" {
		return nil, NewValidationError("session_id", "required")
	}
	if content == "" {
		return nil, NewValidationError("content", "required")
	}

	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM messages WHERE session_id = $1`,
		sessionID).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate sequence number: %w", err)
	}

	msg := &models.Message{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		SequenceNumber: seq,
		Direction:      direction,
		Kind:           kind,
		Content:        content,
		AgentName:      agentName,
		CreatedAt:      time.Now(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, sequence_number, direction, kind, content, agent_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.SessionID, msg.SequenceNumber, msg.Direction, msg.Kind, msg.Content, msg.AgentName, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

// ListMessages returns every message for a session in sequence order,
// oldest first. An empty result is valid.
func (s *MessageService) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT id, session_id, sequence_number, direction, kind, content, agent_name, created_at
		 FROM messages WHERE session_id = $1 ORDER BY sequence_number ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SequenceNumber, &m.Direction,
			&m.Kind, &m.Content, &m.AgentName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
