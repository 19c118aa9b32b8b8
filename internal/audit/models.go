package audit

import "time"

// Action names a workflow event worth keeping in the audit trail.
type Action string

const (
	ActionSessionStarted    Action = "session_started"
	ActionSessionResumed    Action = "session_resumed"
	ActionSessionDiscarded  Action = "session_discarded"
	ActionRequestSubmitted  Action = "request_submitted"
	ActionRequestRedirected Action = "request_redirected"
	ActionRequestReviewed   Action = "request_reviewed"
	ActionPaymentCompleted  Action = "payment_completed"
	ActionWorkflowReset     Action = "workflow_reset"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	SessionID  string    `json:"session_id,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	Step       string    `json:"step,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}
