package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator returns queued results per agent, in order.
type scriptedGenerator struct {
	results map[AgentName][]GenerateResult
	errs    map[AgentName]error
	calls   []AgentName
}

func (g *scriptedGenerator) Generate(_ context.Context, req GenerateRequest) (GenerateResult, error) {
	g.calls = append(g.calls, req.Agent)
	if err := g.errs[req.Agent]; err != nil {
		return GenerateResult{}, err
	}
	queue := g.results[req.Agent]
	if len(queue) == 0 {
		return GenerateResult{Reply: "..."}, nil
	}
	res := queue[0]
	g.results[req.Agent] = queue[1:]
	return res, nil
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestMissionPipeline_StartsAtGreeter(t *testing.T) {
	gen := &scriptedGenerator{results: map[AgentName][]GenerateResult{
		AgentGreeter: {{Reply: "Welcome!"}},
	}}
	p := NewMissionPipeline(gen, NewState("Go Basics", []string{"c1", "c2"}, nil))

	assert.Equal(t, AgentGreeter, p.Current())

	events := collect(t, p.ProcessTurn(context.Background(), "hi"))
	require.Equal(t, []EventKind{EventContent, EventTurnDone}, kinds(events))
	assert.Equal(t, "Welcome!", events[0].Text)
	assert.Equal(t, AgentGreeter, events[0].Agent)
}

func TestMissionPipeline_HandoverSwitchesCurrentForNextTurn(t *testing.T) {
	gen := &scriptedGenerator{results: map[AgentName][]GenerateResult{
		AgentGreeter: {{Reply: "Welcome!", Handover: true}},
		AgentBriefer: {{Reply: "First up: c1."}},
	}}
	p := NewMissionPipeline(gen, NewState("Go Basics", []string{"c1"}, nil))

	events := collect(t, p.ProcessTurn(context.Background(), "hi"))
	require.Equal(t, []EventKind{EventContent, EventHandover, EventTurnDone}, kinds(events))
	assert.Equal(t, AgentBriefer, events[1].To)
	assert.False(t, events[1].Final)
	assert.Equal(t, AgentBriefer, p.Current())

	// Next inbound turn is processed by the new agent.
	events = collect(t, p.ProcessTurn(context.Background(), "ready"))
	require.Equal(t, []EventKind{EventContent, EventTurnDone}, kinds(events))
	assert.Equal(t, AgentBriefer, events[0].Agent)
}

func TestMissionPipeline_CheckpointLoopAndFinalHandover(t *testing.T) {
	gen := &scriptedGenerator{results: map[AgentName][]GenerateResult{
		AgentSensei: {
			{Reply: "Well done on c1!", CheckpointComplete: true},
			{Reply: "And that's c2!", CheckpointComplete: true},
		},
		AgentBriefer: {{Reply: "Next: c2.", Handover: true}},
	}}
	state := NewState("Go Basics", []string{"c1", "c2"}, nil)
	p := NewMissionPipeline(gen, state)
	p.current = p.indexOf(AgentSensei)

	// First checkpoint completes; sensei loops back to the briefer.
	events := collect(t, p.ProcessTurn(context.Background(), "answer"))
	require.Equal(t, []EventKind{EventContent, EventCheckpoint, EventHandover, EventTurnDone}, kinds(events))
	assert.Equal(t, "c1", events[1].CheckpointID)
	assert.Equal(t, AgentBriefer, events[2].To)
	assert.False(t, events[2].Final)
	assert.Equal(t, []string{"c1"}, state.Completed)
	assert.Equal(t, "c2", state.CurrentGoal())

	// Briefer hands to sensei for the next checkpoint.
	events = collect(t, p.ProcessTurn(context.Background(), "ready"))
	require.Equal(t, []EventKind{EventContent, EventHandover, EventTurnDone}, kinds(events))
	assert.Equal(t, AgentSensei, p.Current())

	// Last checkpoint completes; handover to the terminal wrapper.
	events = collect(t, p.ProcessTurn(context.Background(), "answer"))
	require.Equal(t, []EventKind{EventContent, EventCheckpoint, EventHandover, EventTurnDone}, kinds(events))
	assert.Equal(t, "c2", events[1].CheckpointID)
	assert.Equal(t, AgentWrapper, events[2].To)
	assert.True(t, events[2].Final)
	assert.True(t, state.Done())
}

func TestMissionPipeline_HelpDeskDetourReturns(t *testing.T) {
	gen := &scriptedGenerator{results: map[AgentName][]GenerateResult{
		AgentBriefer:  {{Reply: "Sure, one sec.", Handover: true, HandoverTo: AgentHelpDesk}},
		AgentHelpDesk: {{Reply: "Here's your answer.", Handover: true}},
	}}
	p := NewMissionPipeline(gen, NewState("Go Basics", []string{"c1"}, nil))
	p.current = p.indexOf(AgentBriefer)

	events := collect(t, p.ProcessTurn(context.Background(), "off-topic question"))
	require.Equal(t, []EventKind{EventContent, EventHandover, EventTurnDone}, kinds(events))
	assert.Equal(t, AgentHelpDesk, p.Current())

	// Help desk answers and returns to the agent that delegated.
	events = collect(t, p.ProcessTurn(context.Background(), "thanks"))
	require.Equal(t, []EventKind{EventContent, EventHandover, EventTurnDone}, kinds(events))
	assert.Equal(t, AgentBriefer, events[1].To)
	assert.Equal(t, AgentBriefer, p.Current())
}

func TestMissionPipeline_ResumesAtBrieferWithPriorProgress(t *testing.T) {
	gen := &scriptedGenerator{results: map[AgentName][]GenerateResult{}}
	state := NewState("Go Basics", []string{"c1", "c2", "c3"}, []string{"c1"})
	p := NewMissionPipeline(gen, state)

	assert.Equal(t, AgentBriefer, p.Current())
	assert.Equal(t, "c2", state.CurrentGoal())
}

func TestMissionPipeline_GeneratorErrorYieldsSingleErrorEvent(t *testing.T) {
	gen := &scriptedGenerator{errs: map[AgentName]error{
		AgentGreeter: errors.New("generator unavailable"),
	}}
	p := NewMissionPipeline(gen, NewState("Go Basics", []string{"c1"}, nil))

	events := collect(t, p.ProcessTurn(context.Background(), "hi"))
	require.Equal(t, []EventKind{EventError}, kinds(events))
	assert.ErrorContains(t, events[0].Err, "generator unavailable")

	// The pipeline does not retry; the current agent is unchanged and a
	// resent message is processed normally.
	gen.errs = nil
	events = collect(t, p.ProcessTurn(context.Background(), "hi again"))
	assert.Equal(t, EventTurnDone, events[len(events)-1].Kind)
}

func TestMissionPipeline_PanicIsRecoveredAsError(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, GenerateRequest) (GenerateResult, error) {
		panic("boom")
	})
	p := NewMissionPipeline(gen, NewState("Go Basics", []string{"c1"}, nil))

	events := collect(t, p.ProcessTurn(context.Background(), "hi"))
	require.Equal(t, []EventKind{EventError}, kinds(events))
	assert.ErrorContains(t, events[0].Err, "panicked")
}

func TestState_ResumeSkipsCompleted(t *testing.T) {
	s := NewState("m", []string{"c1", "c2", "c3"}, []string{"c1", "c3"})
	assert.Equal(t, "c2", s.CurrentGoal())

	s = NewState("m", []string{"c1", "c2"}, []string{"c1", "c2"})
	assert.True(t, s.Done())
	assert.Equal(t, "", s.CurrentGoal())
}

func TestState_MarkCompletedIdempotentOrder(t *testing.T) {
	s := NewState("m", []string{"c1", "c2"}, nil)
	assert.Equal(t, "c1", s.markCompleted())
	assert.Equal(t, "c2", s.CurrentGoal())
	assert.Equal(t, "c2", s.markCompleted())
	assert.True(t, s.Done())
	assert.Equal(t, "", s.markCompleted())
	assert.Equal(t, []string{"c1", "c2"}, s.Completed)
}

func TestCommanderPipeline_LinearFlow(t *testing.T) {
	gen := &scriptedGenerator{results: map[AgentName][]GenerateResult{
		AgentPathfinder: {{Reply: "What do you want to teach?", Handover: true}},
		AgentDirector:   {{Reply: "Structuring...", Handover: true}},
		AgentCurator:    {{Reply: "Curated.", Handover: true}},
	}}
	p := NewCommanderPipeline(gen, NewState("draft", nil, nil))

	assert.Equal(t, AgentPathfinder, p.Current())

	events := collect(t, p.ProcessTurn(context.Background(), "a Go course"))
	assert.Equal(t, AgentDirector, p.Current())
	assert.False(t, events[1].Final)

	collect(t, p.ProcessTurn(context.Background(), "ok"))
	assert.Equal(t, AgentCurator, p.Current())

	events = collect(t, p.ProcessTurn(context.Background(), "ok"))
	require.Equal(t, []EventKind{EventContent, EventHandover, EventTurnDone}, kinds(events))
	assert.Equal(t, AgentContentWeaver, events[1].To)
	assert.True(t, events[1].Final)
}

func TestCommanderPipeline_NoBackwardTransitions(t *testing.T) {
	gen := &scriptedGenerator{}
	p := NewCommanderPipeline(gen, NewState("draft", nil, nil))
	assert.False(t, p.canTransition(AgentDirector, AgentPathfinder))
	assert.True(t, p.canTransition(AgentDirector, AgentCurator))
}
