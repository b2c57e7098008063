// Package pipeline drives a closed set of conversation agents through a
// handover state machine. Content production is opaque: agents delegate
// the actual text to a Generator and only own the transition mechanics.
package pipeline

// EventKind tags an event emitted during one turn.
type EventKind int

const (
	// EventContent carries agent text for the client.
	EventContent EventKind = iota
	// EventHandover announces a transition to the next agent. The
	// pipeline's current pointer has already switched when the event is
	// observed; the next inbound turn goes to the new agent.
	EventHandover
	// EventCheckpoint reports that the current agent considers a
	// checkpoint complete.
	EventCheckpoint
	// EventTurnDone terminates a successful turn.
	EventTurnDone
	// EventError terminates a failed turn. Exactly one error event is
	// emitted and nothing follows it.
	EventError
)

// Event is one element of the per-turn event stream. The stream is a
// lazy, finite, non-restartable sequence consumed by pull inside the
// connection worker's loop.
type Event struct {
	Kind  EventKind
	Agent AgentName

	// Text is agent content (EventContent) or a handover announcement
	// (EventHandover).
	Text string

	// To is the handover target (EventHandover only).
	To AgentName
	// Final marks a handover to the terminal agent: the mission is done.
	Final bool

	// CheckpointID identifies the completed checkpoint (EventCheckpoint only).
	CheckpointID string

	// Err is set on EventError only.
	Err error
}
