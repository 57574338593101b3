// Package spectator defines the shared data model for the cognitive runtime:
// session state, checkpoints, trace events, and the tool-call/tool-result
// wire shapes that flow between the pipeline and the sandboxed executor.
package spectator

// DefaultListCap is the default maximum length for every capped state list
// (goals, open loops, decisions, constraints, memory tags, memory refs).
const DefaultListCap = 32

// DefaultEpisodeSummaryCap is the default maximum character length of
// SessionState.EpisodeSummary.
const DefaultEpisodeSummaryCap = 2000

// SessionState is the bounded, durable working memory for one session.
// Every list field is capped and deduplicated on append; see
// internal/condense for the helpers that enforce this.
type SessionState struct {
	Goals             []string `json:"goals"`
	OpenLoops         []string `json:"open_loops"`
	Decisions         []string `json:"decisions"`
	Constraints       []string `json:"constraints"`
	MemoryTags        []string `json:"memory_tags"`
	MemoryRefs        []string `json:"memory_refs"`
	EpisodeSummary    string   `json:"episode_summary"`
	CapabilityGranted []string `json:"capabilities_granted"`
	CapabilityPending []string `json:"capabilities_pending"`
}

// NewSessionState returns a zero-valued SessionState with empty, non-nil
// slices so it serializes as `[]` rather than `null`.
func NewSessionState() SessionState {
	return SessionState{
		Goals:             []string{},
		OpenLoops:         []string{},
		Decisions:         []string{},
		Constraints:       []string{},
		MemoryTags:        []string{},
		MemoryRefs:        []string{},
		CapabilityGranted: []string{},
		CapabilityPending: []string{},
	}
}

// Message is one turn of conversation history kept in a Checkpoint.
// Role is always "user" or "assistant"; the history framing in
// internal/condense never includes any other role.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// MaxTraceTail is the maximum number of trace filenames kept in
// Checkpoint.TraceTail; older entries are dropped FIFO.
const MaxTraceTail = 20

// Checkpoint is the full durable state for one session: session state, the
// recent message window, and the tail of trace filenames for that session.
type Checkpoint struct {
	SessionID      string        `json:"session_id"`
	Revision       int           `json:"revision"`
	UpdatedTS      float64       `json:"updated_ts"`
	State          SessionState  `json:"state"`
	RecentMessages []Message     `json:"recent_messages"`
	TraceTail      []string      `json:"trace_tail"`
}

// ToolCall is a single tool invocation parsed out of a governor's response,
// either from the canonical TOOL_CALLS_JSON marker or from loose coercion of
// bare JSON.
type ToolCall struct {
	ID   string         `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	ID       string         `json:"id"`
	Tool     string         `json:"tool"`
	OK       bool           `json:"ok"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NotesPatch is the strict, all-or-nothing patch a role may emit to mutate
// SessionState. Every field is optional; a non-nil field must fully
// type-check or the entire patch is rejected by internal/notes.
type NotesPatch struct {
	Goals           *[]string `json:"set_goals,omitempty"`
	AddOpenLoops    *[]string `json:"add_open_loops,omitempty"`
	CloseOpenLoops  *[]string `json:"close_open_loops,omitempty"`
	Decisions       *[]string `json:"add_decisions,omitempty"`
	Constraints     *[]string `json:"add_constraints,omitempty"`
	MemoryTags      *[]string `json:"add_memory_tags,omitempty"`
	EpisodeSummary  *string   `json:"set_episode_summary,omitempty"`
	Actions         *[]string `json:"actions,omitempty"`
}

// Role identifies a pipeline stage. Roles are modeled as a closed set of
// string constants rather than a class hierarchy; the pipeline scheduler
// switches on Role where behavior (e.g. the tool round) diverges.
type Role string

const (
	RoleReflection Role = "reflection"
	RolePlanner    Role = "planner"
	RoleCritic     Role = "critic"
	RoleGovernor   Role = "governor"
)

// Roles is the fixed pipeline order. Only RoleGovernor may call tools or
// produce the turn's final answer.
var Roles = []Role{RoleReflection, RolePlanner, RoleCritic, RoleGovernor}
