package models

import "time"

// MessageDirection says which side of the socket produced a message.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageKind is the protocol-level tag of a persisted message.
// Only conversation-bearing kinds are persisted; control frames
// (ping/pong, processing markers) never reach the store.
type MessageKind string

const (
	MessageKindUser     MessageKind = "user_message"
	MessageKindAgent    MessageKind = "agent_message"
	MessageKindHandover MessageKind = "agent_handover"
)

// Message is one persisted conversation unit within a session.
// SequenceNumber is strictly increasing per session and reflects true
// delivery order; rows are immutable once written.
type Message struct {
	ID             string           `json:"id"`
	SessionID      string           `json:"session_id"`
	SequenceNumber int              `json:"sequence_number"`
	Direction      MessageDirection `json:"direction"`
	Kind           MessageKind      `json:"kind"`
	Content        string           `json:"content"`
	AgentName      string           `json:"agent_name,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
