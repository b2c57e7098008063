package pipeline

import "context"

// NewCommanderPipeline builds the mission-creation pipeline:
// pathfinder → director → curator → content weaver. It is linear; each
// agent hands over to the next when its part of the mission draft is
// done, and the content weaver is terminal.
//
// Commander sessions track no checkpoints, so the state carries only the
// working title.
func NewCommanderPipeline(gen Generator, state *State) *Pipeline {
	return &Pipeline{
		units: []unit{
			{name: AgentPathfinder, handler: &linearHandler{gen: gen, next: AgentDirector}},
			{name: AgentDirector, handler: &linearHandler{gen: gen, next: AgentCurator}},
			{name: AgentCurator, handler: &linearHandler{gen: gen, next: AgentContentWeaver}},
			{name: AgentContentWeaver, handler: &speakOnlyHandler{gen: gen}, final: true},
		},
		transitions: map[AgentName][]AgentName{
			AgentPathfinder: {AgentDirector},
			AgentDirector:   {AgentCurator},
			AgentCurator:    {AgentContentWeaver},
		},
		state: state,
	}
}

// linearHandler speaks and advances to a fixed next agent on the
// generator's handover signal.
type linearHandler struct {
	gen  Generator
	next AgentName
}

func (h *linearHandler) handleTurn(ctx context.Context, t *turn) error {
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
	if res.Handover {
		return t.handoverTo(h.next, handoverAnnouncement(h.next))
	}
	return nil
}
