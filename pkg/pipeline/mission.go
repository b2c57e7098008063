package pipeline

import (
	"context"
	"fmt"
)

// NewMissionPipeline builds the mission-learning pipeline:
// greeter → flow briefer → sensei → wrapper, with a help-desk detour
// reachable from every non-terminal agent. The sensei loops back to the
// briefer after each completed checkpoint until none remain.
//
// When the state shows prior progress the greeter is skipped and the
// conversation resumes at the briefer for the next checkpoint.
func NewMissionPipeline(gen Generator, state *State) *Pipeline {
	p := &Pipeline{
		units: []unit{
			{name: AgentGreeter, handler: &greeterHandler{gen: gen}},
			{name: AgentBriefer, handler: &brieferHandler{gen: gen}},
			{name: AgentSensei, handler: &senseiHandler{gen: gen}},
			{name: AgentHelpDesk, handler: &helpDeskHandler{gen: gen}},
			{name: AgentWrapper, handler: &speakOnlyHandler{gen: gen}, final: true},
		},
		transitions: map[AgentName][]AgentName{
			AgentGreeter:  {AgentBriefer, AgentHelpDesk},
			AgentBriefer:  {AgentSensei, AgentHelpDesk},
			AgentSensei:   {AgentBriefer, AgentWrapper, AgentHelpDesk},
			AgentHelpDesk: {AgentGreeter, AgentBriefer, AgentSensei},
		},
		state: state,
	}
	if len(state.Completed) > 0 && !state.Done() {
		p.current = p.indexOf(AgentBriefer)
	}
	return p
}

func handoverAnnouncement(target AgentName) string {
	return fmt.Sprintf("Handing over to %s...", target)
}

// detourTarget returns the help-desk target if the generator requested
// the detour, or the default next agent otherwise.
func detourTarget(res GenerateResult, defaultNext AgentName) AgentName {
	if res.HandoverTo == AgentHelpDesk {
		return AgentHelpDesk
	}
	return defaultNext
}

// greeterHandler welcomes the learner once, then hands over to the
// briefer.
type greeterHandler struct {
	gen Generator
}

func (h *greeterHandler) handleTurn(ctx context.Context, t *turn) error {
	res, err := h.gen.Generate(ctx, GenerateRequest{
		Agent:          AgentGreeter,
		Input:          t.input,
		MissionTitle:   t.pipeline.state.MissionTitle,
		CheckpointGoal: t.pipeline.state.CurrentGoal(),
	})
	if err != nil {
		return err
	}
	t.say(res.Reply)
	if res.Handover {
		target := detourTarget(res, AgentBriefer)
		return t.handoverTo(target, handoverAnnouncement(target))
	}
	return nil
}

// brieferHandler introduces the current checkpoint goal and hands over
// to the sensei when the learner is ready.
type brieferHandler struct {
	gen Generator
}

func (h *brieferHandler) handleTurn(ctx context.Context, t *turn) error {
	res, err := h.gen.Generate(ctx, GenerateRequest{
		Agent:          AgentBriefer,
		Input:          t.input,
		MissionTitle:   t.pipeline.state.MissionTitle,
		CheckpointGoal: t.pipeline.state.CurrentGoal(),
	})
	if err != nil {
		return err
	}
	t.say(res.Reply)
	if res.Handover {
		target := detourTarget(res, AgentSensei)
		return t.handoverTo(target, handoverAnnouncement(target))
	}
	return nil
}

// senseiHandler teaches the current checkpoint. On a completion signal it
// records the checkpoint, then loops back to the briefer for the next one
// or hands over to the terminal wrapper when none remain.
type senseiHandler struct {
	gen Generator
}

func (h *senseiHandler) handleTurn(ctx context.Context, t *turn) error {
	state := t.pipeline.state
	res, err := h.gen.Generate(ctx, GenerateRequest{
		Agent:          AgentSensei,
		Input:          t.input,
		MissionTitle:   state.MissionTitle,
		CheckpointGoal: state.CurrentGoal(),
	})
	if err != nil {
		return err
	}
	t.say(res.Reply)

	if res.CheckpointComplete && !state.Done() {
		completed := state.markCompleted()
		t.checkpoint(completed)

		if state.Done() {
			return t.handoverTo(AgentWrapper, handoverAnnouncement(AgentWrapper))
		}
		return t.handoverTo(AgentBriefer, handoverAnnouncement(AgentBriefer))
	}

	if res.Handover {
		target := detourTarget(res, AgentBriefer)
		return t.handoverTo(target, handoverAnnouncement(target))
	}
	return nil
}

// helpDeskHandler answers off-topic questions, then returns to whichever
// agent delegated to it.
type helpDeskHandler struct {
	gen Generator
}

func (h *helpDeskHandler) handleTurn(ctx context.Context, t *turn) error {
	res, err := h.gen.Generate(ctx, GenerateRequest{
		Agent:          AgentHelpDesk,
		Input:          t.input,
		MissionTitle:   t.pipeline.state.MissionTitle,
		CheckpointGoal: t.pipeline.state.CurrentGoal(),
	})
	if err != nil {
		return err
	}
	t.say(res.Reply)
	if res.Handover {
		back := t.pipeline.resume
		if back == "" {
			back = AgentBriefer
		}
		return t.handoverTo(back, handoverAnnouncement(back))
	}
	return nil
}

// speakOnlyHandler emits content with no transition logic. Used for the
// terminal wrapper, which normally never receives a turn: the worker
// closes the session on the final handover.
type speakOnlyHandler struct {
	gen Generator
}

func (h *speakOnlyHandler) handleTurn(ctx context.Context, t *turn) error {
	res, err := h.gen.Generate(ctx, GenerateRequest{
		Agent:          t.pipeline.Current(),
		Input:          t.input,
		MissionTitle:   t.pipeline.state.MissionTitle,
		CheckpointGoal: t.pipeline.state.CurrentGoal(),
	})
	if err != nil {
		return err
	}
	t.say(res.Reply)
	return nil
}
