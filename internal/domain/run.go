package domain

import "time"

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusTimedOut  RunStatus = "timed_out"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusTimedOut, RunStatusCancelled:
		return true
	}
	return false
}

// NodeStatus is the lifecycle state of a single node within a run.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
)

// NodeState tracks one node's progress as observed by the orchestrator.
type NodeState struct {
	NodeID      string     `json:"node_id"`
	Status      NodeStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunResult is what a finished (or abandoned) run hands back: the final
// status and the outputs of terminal nodes that completed. Outputs is empty
// unless Status is RunStatusCompleted.
type RunResult struct {
	RunID      string                `json:"run_id"`
	Status     RunStatus             `json:"status"`
	Outputs    map[string]any        `json:"outputs"`
	NodeStates map[string]*NodeState `json:"node_states,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// RunState is the persisted snapshot of a run, written by the coordinator at
// submission and on every status transition.
type RunState struct {
	RunID       string                `json:"run_id"`
	Workflow    *Workflow             `json:"workflow"`
	Width       int                   `json:"width"`
	Status      RunStatus             `json:"status"`
	Outputs     map[string]any        `json:"outputs,omitempty"`
	NodeStates  map[string]*NodeState `json:"node_states,omitempty"`
	Error       string                `json:"error,omitempty"`
	SubmittedAt time.Time             `json:"submitted_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}
