// Package ws implements the WebSocket session protocol: one connection
// worker per live socket, driving the agent pipeline and serializing
// every outbound frame for its session.
package ws

// Inbound message types.
const (
	TypeUserMessage = "user_message"
	TypePing        = "ping"
)

// Outbound message types.
const (
	TypeConnected          = "connected"
	TypeHistoricalMessages = "historical_messages"
	TypeProcessingStart    = "agent_processing_start"
	TypeAgentMessage       = "agent_message"
	TypeAgentHandover      = "agent_handover"
	TypeCheckpointUpdate   = "checkpoint_update"
	TypeProcessingEnd      = "agent_processing_end"
	TypeSessionClosed      = "session_closed"
	TypePong               = "pong"
	TypeError              = "error"
)

// inboundFrame is the envelope every client frame must parse into.
type inboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ConnectedMessage confirms a successful auth+bind, sent exactly once.
type ConnectedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// HistoricalEntry is one replayed conversation unit.
type HistoricalEntry struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// HistoricalMessagesMessage carries the ordered conversation log on
// reconnect, oldest first.
type HistoricalMessagesMessage struct {
	Type     string            `json:"type"`
	Messages []HistoricalEntry `json:"messages"`
}

// ProcessingMarker frames one turn (agent_processing_start/_end).
type ProcessingMarker struct {
	Type string `json:"type"`
}

// AgentMessage carries one block of agent content.
type AgentMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AgentHandoverMessage announces a pipeline transition.
type AgentHandoverMessage struct {
	Type    string `json:"type"`
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

// CheckpointUpdateMessage reports new progress. Progress is a
// percentage in [0,100].
type CheckpointUpdateMessage struct {
	Type                 string   `json:"type"`
	CompletedCheckpoints []string `json:"completed_checkpoints"`
	Progress             float64  `json:"progress"`
}

// SessionClosedMessage is the final frame of a completed session; the
// socket closes shortly after.
type SessionClosedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PongMessage answers an inbound ping.
type PongMessage struct {
	Type string `json:"type"`
}

// ErrorMessage reports a failure to the client. The text is always
// sanitized before it leaves the process.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
