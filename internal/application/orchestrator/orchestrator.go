package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/domain"
	"github.com/weftlabs/weft/internal/ports"
)

// Orchestrator drives a single run to completion over the message broker.
type Orchestrator struct {
	broker      ports.MessageBroker
	metrics     ports.MetricsCollector
	validator   *Validator
	logger      *zap.Logger
	maxAttempts int
}

// New creates an orchestrator. maxAttempts bounds how often a failed node's
// task is re-published before the run is marked failed.
func New(
	broker ports.MessageBroker,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	maxAttempts int,
) *Orchestrator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Orchestrator{
		broker:      broker,
		metrics:     metrics,
		validator:   validator,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// runState is the per-run dependency and progress state. It is owned and
// mutated exclusively by the Execute loop.
type runState struct {
	children    map[string][]string
	inDeg       map[string]int
	terminal    map[string]bool
	parentsDone map[string][]string
	outputs     map[string]any
	completed   map[string]bool
	attempts    map[string]int
	tasks       map[string]*domain.TaskMessage
	nodeStates  map[string]*domain.NodeState
	doneCount   int
	total       int
}

func newRunState(w *domain.Workflow) *runState {
	st := &runState{
		children:    make(map[string][]string, len(w.Nodes)),
		inDeg:       make(map[string]int, len(w.Nodes)),
		terminal:    make(map[string]bool, len(w.Nodes)),
		parentsDone: make(map[string][]string, len(w.Nodes)),
		outputs:     make(map[string]any, len(w.Nodes)),
		completed:   make(map[string]bool, len(w.Nodes)),
		attempts:    make(map[string]int, len(w.Nodes)),
		tasks:       make(map[string]*domain.TaskMessage, len(w.Nodes)),
		nodeStates:  make(map[string]*domain.NodeState, len(w.Nodes)),
		total:       len(w.Nodes),
	}
	for _, n := range w.Nodes {
		st.inDeg[n] = 0
		st.nodeStates[n] = &domain.NodeState{NodeID: n, Status: domain.NodeStatusPending}
	}
	dedup := make(map[domain.Edge]bool, len(w.Edges))
	for _, e := range w.Edges {
		if dedup[e] {
			continue
		}
		dedup[e] = true
		st.children[e.From] = append(st.children[e.From], e.To)
		st.inDeg[e.To]++
	}
	for _, n := range w.Nodes {
		if len(st.children[n]) == 0 {
			st.terminal[n] = true
		}
	}
	return st
}

// Execute runs the workflow to completion and returns the final result. The
// returned error is reserved for input and transport failures; protocol
// outcomes (completed, failed, timed out, cancelled) are reported through the
// result's status.
func (o *Orchestrator) Execute(ctx context.Context, runID string, w *domain.Workflow) (*domain.RunResult, error) {
	if err := o.validator.Validate(w); err != nil {
		o.logger.Error("workflow validation failed",
			zap.String("run_id", runID),
			zap.Error(err))
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	st := newRunState(w)

	// Subscribe before seeding so no event can slip past the consumer group.
	events, err := o.broker.SubscribeEvents(ctx, "orchestrator."+runID, "orchestrator")
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}
	defer events.Close()

	o.logger.Info("run started",
		zap.String("run_id", runID),
		zap.Int("nodes", st.total),
		zap.Int("edges", len(w.Edges)))

	for _, n := range w.Nodes {
		if st.inDeg[n] == 0 {
			if err := o.dispatch(ctx, runID, w, st, n); err != nil {
				return nil, err
			}
		}
	}

	for {
		delivery, err := events.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return o.abandonedResult(ctx, runID, st), nil
			}
			return nil, fmt.Errorf("failed to read events: %w", err)
		}
		if delivery == nil {
			continue
		}

		evt := delivery.Event
		// Loss of an observed event must not stall the run, so ack eagerly.
		if err := delivery.Ack(ctx); err != nil {
			o.logger.Warn("failed to ack event",
				zap.String("run_id", runID),
				zap.Error(err))
		}

		// The events stream is shared across concurrent runs.
		if evt.RunID != runID {
			continue
		}
		if _, known := st.nodeStates[evt.NodeID]; !known {
			o.logger.Warn("event for unknown node",
				zap.String("run_id", runID),
				zap.String("node_id", evt.NodeID))
			continue
		}

		switch evt.Type {
		case domain.EventNodeStarted:
			o.onStarted(st, &evt)

		case domain.EventNodeCompleted:
			done, err := o.onCompleted(ctx, runID, w, st, &evt)
			if err != nil {
				return nil, err
			}
			if done {
				o.logger.Info("run completed",
					zap.String("run_id", runID),
					zap.Int("nodes", st.total))
				return o.finalResult(runID, st), nil
			}

		case domain.EventNodeFailed:
			failed, err := o.onFailed(ctx, runID, st, &evt)
			if err != nil {
				return nil, err
			}
			if failed {
				return o.failedResult(runID, st, &evt), nil
			}

		default:
			o.logger.Warn("unknown event type",
				zap.String("run_id", runID),
				zap.String("type", string(evt.Type)))
		}
	}
}

// dispatch publishes the task for a node whose dependencies are satisfied.
// Inputs aggregate parent outputs in completion-arrival order.
func (o *Orchestrator) dispatch(ctx context.Context, runID string, w *domain.Workflow, st *runState, node string) error {
	parents := st.parentsDone[node]
	inputs := make([]domain.TaskInput, 0, len(parents))
	for _, p := range parents {
		inputs = append(inputs, domain.TaskInput{From: p, Output: st.outputs[p]})
	}

	task := &domain.TaskMessage{
		RunID:     runID,
		NodeID:    node,
		AgentID:   w.AgentFor(node),
		Parents:   parents,
		Inputs:    inputs,
		Attempt:   1,
		CreatedAt: time.Now(),
	}
	st.tasks[node] = task
	st.attempts[node] = 1

	if err := o.broker.PublishTask(ctx, task); err != nil {
		return fmt.Errorf("failed to publish task for node %s: %w", node, err)
	}

	o.logger.Info("task dispatched",
		zap.String("run_id", runID),
		zap.String("node_id", node),
		zap.Strings("parents", parents))
	return nil
}

func (o *Orchestrator) onStarted(st *runState, evt *domain.EventMessage) {
	ns := st.nodeStates[evt.NodeID]
	if ns.Status == domain.NodeStatusPending {
		ns.Status = domain.NodeStatusRunning
		now := time.Now()
		ns.StartedAt = &now
	}
	o.logger.Debug("node started", zap.String("node_id", evt.NodeID))
}

// onCompleted records a node's output and fans out to children whose
// dependency count reaches zero. Duplicate completed events for the same
// node are ignored. Returns true once every node has completed.
func (o *Orchestrator) onCompleted(ctx context.Context, runID string, w *domain.Workflow, st *runState, evt *domain.EventMessage) (bool, error) {
	n := evt.NodeID
	if st.completed[n] {
		o.logger.Debug("duplicate completed event ignored",
			zap.String("run_id", runID),
			zap.String("node_id", n))
		return false, nil
	}

	st.completed[n] = true
	st.outputs[n] = evt.Output
	st.doneCount++

	ns := st.nodeStates[n]
	ns.Status = domain.NodeStatusCompleted
	ns.Output = evt.Output
	now := time.Now()
	ns.CompletedAt = &now

	o.logger.Info("node completed",
		zap.String("run_id", runID),
		zap.String("node_id", n),
		zap.Int("done", st.doneCount),
		zap.Int("total", st.total))

	for _, c := range st.children[n] {
		st.parentsDone[c] = append(st.parentsDone[c], n)
		st.inDeg[c]--
		if st.inDeg[c] == 0 {
			if err := o.dispatch(ctx, runID, w, st, c); err != nil {
				return false, err
			}
		}
	}

	return st.doneCount == st.total, nil
}

// onFailed re-publishes the node's task while attempts remain; once they are
// exhausted the run is marked failed and downstream nodes never dispatch.
// Returns true when the run is over.
func (o *Orchestrator) onFailed(ctx context.Context, runID string, st *runState, evt *domain.EventMessage) (bool, error) {
	n := evt.NodeID
	if st.completed[n] {
		return false, nil
	}
	// Stale redelivery of a failure already retried.
	if evt.Attempt != 0 && evt.Attempt < st.attempts[n] {
		return false, nil
	}

	ns := st.nodeStates[n]
	ns.Attempts = st.attempts[n]
	ns.Error = evt.Error

	if st.attempts[n] < o.maxAttempts {
		task := st.tasks[n]
		st.attempts[n]++
		task.Attempt = st.attempts[n]
		task.CreatedAt = time.Now()

		o.metrics.RecordTaskRetry()
		o.logger.Warn("node failed, retrying",
			zap.String("run_id", runID),
			zap.String("node_id", n),
			zap.Int("attempt", task.Attempt),
			zap.String("error", evt.Error))

		if err := o.broker.PublishTask(ctx, task); err != nil {
			return false, fmt.Errorf("failed to republish task for node %s: %w", n, err)
		}
		return false, nil
	}

	ns.Status = domain.NodeStatusFailed
	o.logger.Error("node failed permanently",
		zap.String("run_id", runID),
		zap.String("node_id", n),
		zap.Int("attempts", st.attempts[n]),
		zap.String("error", evt.Error))
	return true, nil
}

// finalResult restricts outputs to terminal nodes that completed.
func (o *Orchestrator) finalResult(runID string, st *runState) *domain.RunResult {
	outputs := make(map[string]any, len(st.terminal))
	for n := range st.terminal {
		if st.completed[n] {
			outputs[n] = st.outputs[n]
		}
	}
	return &domain.RunResult{
		RunID:      runID,
		Status:     domain.RunStatusCompleted,
		Outputs:    outputs,
		NodeStates: st.nodeStates,
	}
}

func (o *Orchestrator) failedResult(runID string, st *runState, evt *domain.EventMessage) *domain.RunResult {
	return &domain.RunResult{
		RunID:      runID,
		Status:     domain.RunStatusFailed,
		Outputs:    map[string]any{},
		NodeStates: st.nodeStates,
		Error:      fmt.Sprintf("node %s failed after %d attempts: %s", evt.NodeID, st.attempts[evt.NodeID], evt.Error),
	}
}

// abandonedResult reports a run cut short by its context; partial terminal
// outputs are never returned.
func (o *Orchestrator) abandonedResult(ctx context.Context, runID string, st *runState) *domain.RunResult {
	status := domain.RunStatusCancelled
	errMsg := "run cancelled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		status = domain.RunStatusTimedOut
		errMsg = "run timed out"
	}
	o.logger.Warn("run abandoned",
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int("done", st.doneCount),
		zap.Int("total", st.total))
	return &domain.RunResult{
		RunID:      runID,
		Status:     status,
		Outputs:    map[string]any{},
		NodeStates: st.nodeStates,
		Error:      errMsg,
	}
}
