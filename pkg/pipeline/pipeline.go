package pipeline

import (
	"context"
	"fmt"
)

// State is the per-session conversation state the pipeline mutates. One
// State (and one Pipeline) exists per connection worker; nothing here is
// shared across sessions.
type State struct {
	MissionTitle string
	Checkpoints  []string
	// Completed is the set of finished checkpoint ids, in completion order.
	Completed []string
	// CheckpointIndex points at the checkpoint being taught, -1 when all
	// checkpoints are done.
	CheckpointIndex int
}

// NewState builds conversation state resuming at the first checkpoint not
// yet in the completed set.
func NewState(missionTitle string, checkpoints, completed []string) *State {
	s := &State{
		MissionTitle:    missionTitle,
		Checkpoints:     checkpoints,
		Completed:       append([]string(nil), completed...),
		CheckpointIndex: -1,
	}
	for i, c := range checkpoints {
		if !s.isCompleted(c) {
			s.CheckpointIndex = i
			break
		}
	}
	return s
}

func (s *State) isCompleted(checkpointID string) bool {
	for _, c := range s.Completed {
		if c == checkpointID {
			return true
		}
	}
	return false
}

// CurrentGoal returns the checkpoint currently being taught, or "" when
// every checkpoint is done.
func (s *State) CurrentGoal() string {
	if s.CheckpointIndex < 0 || s.CheckpointIndex >= len(s.Checkpoints) {
		return ""
	}
	return s.Checkpoints[s.CheckpointIndex]
}

// markCompleted records the current checkpoint as done and advances to
// the next incomplete one. Returns the completed checkpoint id.
func (s *State) markCompleted() string {
	goal := s.CurrentGoal()
	if goal == "" {
		return ""
	}
	if !s.isCompleted(goal) {
		s.Completed = append(s.Completed, goal)
	}
	s.CheckpointIndex = -1
	for i, c := range s.Checkpoints {
		if !s.isCompleted(c) {
			s.CheckpointIndex = i
			break
		}
	}
	return goal
}

// Done reports whether every checkpoint has been completed.
func (s *State) Done() bool {
	return s.CheckpointIndex == -1
}

// Pipeline owns the agent units and the current pointer for one session.
// It holds no cross-session state and is discarded when the connection
// worker exits.
type Pipeline struct {
	units       []unit
	transitions map[AgentName][]AgentName
	current     int
	// resume remembers who delegated to the help desk so the detour can
	// return.
	resume AgentName
	state  *State
}

// Current returns the name of the current agent.
func (p *Pipeline) Current() AgentName {
	return p.units[p.current].name
}

func (p *Pipeline) indexOf(name AgentName) int {
	for i, u := range p.units {
		if u.name == name {
			return i
		}
	}
	return -1
}

func (p *Pipeline) canTransition(from, to AgentName) bool {
	for _, t := range p.transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ProcessTurn runs one turn of the current agent against the inbound user
// text. The returned channel yields events in emission order and is
// closed when the turn ends; the last event is always EventTurnDone or a
// single EventError. The stream must be drained by exactly one consumer.
func (p *Pipeline) ProcessTurn(ctx context.Context, input string) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		t := &turn{pipeline: p, ctx: ctx, out: out, input: input}

		defer func() {
			if r := recover(); r != nil {
				t.emit(Event{
					Kind:  EventError,
					Agent: p.Current(),
					Err:   fmt.Errorf("agent %s panicked: %v", p.Current(), r),
				})
			}
		}()

		u := p.units[p.current]
		if err := u.handler.handleTurn(ctx, t); err != nil {
			t.emit(Event{
				Kind:  EventError,
				Agent: u.name,
				Err:   fmt.Errorf("agent %s failed: %w", u.name, err),
			})
			return
		}

		t.emit(Event{Kind: EventTurnDone, Agent: p.Current()})
	}()

	return out
}

// turn is the emission surface handed to agent handlers for one turn.
type turn struct {
	pipeline  *Pipeline
	ctx       context.Context
	out       chan<- Event
	input     string
	handedOff bool
}

// emit sends an event unless the turn context was cancelled.
func (t *turn) emit(e Event) bool {
	select {
	case t.out <- e:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// say emits agent content.
func (t *turn) say(text string) {
	if text == "" {
		return
	}
	t.emit(Event{Kind: EventContent, Agent: t.pipeline.Current(), Text: text})
}

// checkpoint emits a checkpoint-completion signal.
func (t *turn) checkpoint(checkpointID string) {
	t.emit(Event{Kind: EventCheckpoint, Agent: t.pipeline.Current(), CheckpointID: checkpointID})
}

// handoverTo announces a transition and switches the current pointer.
// The switch happens with the emission, never mid-content; the next
// inbound turn is processed by the target agent. At most one handover
// per turn.
func (t *turn) handoverTo(target AgentName, announce string) error {
	if t.handedOff {
		return fmt.Errorf("turn already handed over")
	}
	p := t.pipeline
	from := p.Current()
	if !p.canTransition(from, target) {
		return fmt.Errorf("illegal handover %s -> %s", from, target)
	}
	idx := p.indexOf(target)
	if idx < 0 {
		return fmt.Errorf("unknown agent %s", target)
	}

	if target == AgentHelpDesk {
		p.resume = from
	}

	t.handedOff = true
	p.current = idx
	t.emit(Event{
		Kind:  EventHandover,
		Agent: from,
		To:    target,
		Text:  announce,
		Final: p.units[idx].final,
	})
	return nil
}
