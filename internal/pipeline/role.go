package pipeline

import "github.com/andrewfreeman/spectator/internal/backend"

// TelemetryLevel and MemoryFeedbackLevel model the tagged-variant role
// config rather than a class hierarchy per role.
type TelemetryLevel string
type MemoryFeedbackLevel string

const (
	TelemetryNone  TelemetryLevel = "none"
	TelemetryBasic TelemetryLevel = "basic"

	MemoryFeedbackNone  MemoryFeedbackLevel = "none"
	MemoryFeedbackBasic MemoryFeedbackLevel = "basic"
)

// RoleSpec configures one pipeline stage. Only the governor role is allowed
// to drive a tool round; that gate lives in Run, keyed on Name == "governor".
type RoleSpec struct {
	Name           string
	SystemPrompt   string
	Telemetry      TelemetryLevel
	MemoryFeedback MemoryFeedbackLevel
	WantsRetrieval bool
	Params         backend.Params
}

// RoleResult is the committed outcome of one role's turn.
type RoleResult struct {
	Role  string
	Text  string
	Notes *NotesOutcome
}

// NotesOutcome records what a role's notes patch (if any) did (applied for
// the governor, ignored for every other role), for
// callers that want to inspect trace-equivalent detail without re-parsing
// the trace file.
type NotesOutcome struct {
	Applied bool
	Ignored bool
}

// DefaultRoleSpecs returns the fixed reflection -> planner -> critic ->
// governor sequence, with plain system prompts. Callers
// (internal/turn) append the chain-of-thought safety suffix afterward.
func DefaultRoleSpecs() []RoleSpec {
	return []RoleSpec{
		{
			Name:           "reflection",
			SystemPrompt:   "You are the reflection role. Summarize what has happened and surface open questions.",
			Telemetry:      TelemetryNone,
			MemoryFeedback: MemoryFeedbackNone,
		},
		{
			Name:           "planner",
			SystemPrompt:   "You are the planner role. Propose the next concrete step toward the user's goal.",
			Telemetry:      TelemetryNone,
			MemoryFeedback: MemoryFeedbackBasic,
		},
		{
			Name:           "critic",
			SystemPrompt:   "You are the critic role. Identify risks or gaps in the plan before it is executed.",
			Telemetry:      TelemetryNone,
			MemoryFeedback: MemoryFeedbackNone,
		},
		{
			Name:           "governor",
			SystemPrompt:   "You are the governor role, the sole producer of the visible answer. You may call tools using the documented marker protocol.",
			Telemetry:      TelemetryBasic,
			MemoryFeedback: MemoryFeedbackBasic,
			WantsRetrieval: true,
		},
	}
}
