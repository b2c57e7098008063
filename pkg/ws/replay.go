package ws

import (
	"context"
	"fmt"

	"github.com/lumina-learn/lumina/pkg/models"
)

// MessageStore is the slice of the message service the ws package needs.
type MessageStore interface {
	AppendMessage(ctx context.Context, sessionID string, direction models.MessageDirection, kind models.MessageKind, content, agentName string) (*models.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
}

// Replayer loads a session's persisted conversation log for emission on
// (re)connect. Pure read: calling it twice yields the same result unless
// new messages were persisted in between.
type Replayer struct {
	store MessageStore
}

// NewReplayer creates a Replayer over the message store.
func NewReplayer(store MessageStore) *Replayer {
	return &Replayer{store: store}
}

// Load returns the session's conversation in persisted sequence order,
// oldest first. An empty slice is valid and means the caller should
// suppress the historical_messages frame entirely.
func (r *Replayer) Load(ctx context.Context, sessionID string) ([]HistoricalEntry, error) {
	messages, err := r.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	entries := make([]HistoricalEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, HistoricalEntry{
			Type:    string(m.Kind),
			Message: m.Content,
		})
	}
	return entries, nil
}
