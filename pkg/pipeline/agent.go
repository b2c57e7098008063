package pipeline

import "context"

// AgentName identifies one agent unit. The set of agents per pipeline is
// fixed and known at compile time.
type AgentName string

// Mission-learning pipeline agents.
const (
	AgentGreeter  AgentName = "greeter"
	AgentBriefer  AgentName = "flow_briefer"
	AgentSensei   AgentName = "sensei"
	AgentHelpDesk AgentName = "help_desk"
	AgentWrapper  AgentName = "wrapper"
)

// Mission-creation ("commander") pipeline agents.
const (
	AgentPathfinder    AgentName = "pathfinder"
	AgentDirector      AgentName = "director"
	AgentCurator       AgentName = "curator"
	AgentContentWeaver AgentName = "content_weaver"
)

// GenerateRequest is what an agent hands to the opaque content function.
type GenerateRequest struct {
	Agent AgentName
	// Input is the latest inbound user text.
	Input string
	// MissionTitle and CheckpointGoal give the generator conversational
	// context without exposing repository types.
	MissionTitle   string
	CheckpointGoal string
}

// GenerateResult is the opaque function's output: a response plus
// optional signals. The pipeline, not the generator, decides what a
// signal means for the handover graph.
type GenerateResult struct {
	Reply string
	// Handover signals that this agent's part is done.
	Handover bool
	// HandoverTo optionally names a non-default target (e.g. the help
	// desk detour). Ignored unless Handover is set and the target is a
	// legal transition for the current agent.
	HandoverTo AgentName
	// CheckpointComplete signals that the learner finished the current
	// checkpoint. Only the sensei acts on it.
	CheckpointComplete bool
}

// Generator produces agent responses. Implementations are external
// collaborators (an LLM service in production, scripts in tests).
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (GenerateResult, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	return f(ctx, req)
}

// handler is the per-agent transition logic. Implementations emit
// content and transition decisions through the turn.
type handler interface {
	handleTurn(ctx context.Context, t *turn) error
}

// unit is one member of the closed agent set.
type unit struct {
	name    AgentName
	handler handler
	// final marks the terminal agent: handing over to it means the
	// conversation is complete.
	final bool
}
