// Package ports declares the interfaces between the weft engine and its
// adapters: the message broker, the agent executor, run storage and metrics.
package ports

import (
	"context"

	"github.com/weftlabs/weft/internal/domain"
)

// TaskDelivery is one task received from the tasks stream. Ack commits the
// offset; under at-least-once delivery a task must only be acked after its
// completion or failure event has been durably published.
type TaskDelivery struct {
	Task domain.TaskMessage
	Ack  func(ctx context.Context) error
}

// EventDelivery is one event received from the events stream.
type EventDelivery struct {
	Event domain.EventMessage
	Ack   func(ctx context.Context) error
}

// TaskStream is a bounded-poll consumer of the tasks stream. Next blocks for
// at most the broker's poll interval and returns (nil, nil) when no message
// arrived in time.
type TaskStream interface {
	Next(ctx context.Context) (*TaskDelivery, error)
	Close() error
}

// EventStream is a bounded-poll consumer of the events stream.
type EventStream interface {
	Next(ctx context.Context) (*EventDelivery, error)
	Close() error
}

// MessageBroker is the pub/sub transport between the orchestrator and the
// worker pool. Both streams are durable, support multiple consumers in a
// named group and deliver at least once.
type MessageBroker interface {
	PublishTask(ctx context.Context, task *domain.TaskMessage) error
	PublishEvent(ctx context.Context, event *domain.EventMessage) error

	// SubscribeTasks joins the shared worker group; the broker load-balances
	// tasks across consumers of the same group.
	SubscribeTasks(ctx context.Context, group, consumer string) (TaskStream, error)

	// SubscribeEvents joins a per-orchestrator group so every orchestrator
	// sees every event.
	SubscribeEvents(ctx context.Context, group, consumer string) (EventStream, error)

	Close() error
}

// AgentExecutor performs the actual work of one node. It is a black box to
// the engine: failures are reported as errors, never panics.
type AgentExecutor interface {
	Execute(ctx context.Context, agentID string, inputs []domain.TaskInput) (any, error)
}

// RunStore persists run snapshots for status queries across the API surface.
type RunStore interface {
	SaveRun(ctx context.Context, state *domain.RunState) error
	GetRun(ctx context.Context, runID string) (*domain.RunState, error)
	DeleteRun(ctx context.Context, runID string) error
	ListRuns(ctx context.Context) ([]*domain.RunState, error)
}

// MetricsCollector records engine metrics. Implementations must be safe for
// concurrent use.
type MetricsCollector interface {
	RecordRunSubmitted(status string)
	RecordRunCompleted(status string, durationSeconds float64)
	RecordNodeExecuted(status string, durationSeconds float64)
	RecordTaskRetry()
	RecordWorkflowWidth(width int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
