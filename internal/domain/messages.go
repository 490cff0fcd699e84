package domain

import "time"

// EventType identifies a node lifecycle notification.
type EventType string

const (
	EventNodeStarted   EventType = "started"
	EventNodeCompleted EventType = "completed"
	EventNodeFailed    EventType = "failed"
)

// TaskInput carries one parent's output into a dependent node's task.
type TaskInput struct {
	From   string `json:"from"`
	Output any    `json:"output"`
}

// TaskMessage is the unit of dispatchable work published by the orchestrator
// on the tasks stream. Delivery is at-least-once; consumers must tolerate
// duplicates for the same (RunID, NodeID).
type TaskMessage struct {
	RunID     string      `json:"run_id"`
	NodeID    string      `json:"node_id"`
	AgentID   string      `json:"agent_id"`
	Parents   []string    `json:"parents,omitempty"`
	Inputs    []TaskInput `json:"inputs,omitempty"`
	Attempt   int         `json:"attempt"`
	CreatedAt time.Time   `json:"created_at"`
}

// Key returns the stream partition key for the task.
func (t *TaskMessage) Key() string {
	return t.RunID + "|" + t.NodeID
}

// EventMessage is a node lifecycle notification published by a worker on the
// events stream. The events stream is shared across concurrent runs; each
// orchestrator filters on RunID.
type EventMessage struct {
	RunID     string    `json:"run_id"`
	NodeID    string    `json:"node_id"`
	Type      EventType `json:"type"`
	Attempt   int       `json:"attempt,omitempty"`
	Output    any       `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"ts"`
}
