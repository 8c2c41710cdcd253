package models

// EventKind discriminates the typed record broadcast on the Event Bus.
type EventKind string

const (
	EventToken       EventKind = "token"
	EventMessage     EventKind = "message"
	EventActivity    EventKind = "activity"
	EventRun         EventKind = "run"
	EventStateUpdate EventKind = "state_updated"
)

// RunPhase distinguishes the two Run event moments.
type RunPhase string

const (
	RunPhaseStart   RunPhase = "start"
	RunPhaseOutcome RunPhase = "outcome"
)

// Event is a typed record broadcast on the Event Bus. Fire-and-forget:
// observers that miss events must resync via the (out-of-scope) REST
// surface. Every event carries the common envelope fields; Kind determines
// which of the remaining fields are meaningful.
type Event struct {
	Kind      EventKind `json:"kind"`
	AgentID   string    `json:"agent_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`

	// Token
	Text  string `json:"text,omitempty"`
	Phase string `json:"phase,omitempty"`

	// Message
	Role Role `json:"role,omitempty"`

	// Activity
	Status      string `json:"status,omitempty"`
	Tool        string `json:"tool,omitempty"`
	ArgsSummary string `json:"args_summary,omitempty"`

	// Run
	RunPhase  RunPhase  `json:"run_phase,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	RunStatus RunStatus `json:"run_status,omitempty"`

	Data map[string]any `json:"data,omitempty"`
}
