package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/application/orchestrator"
	"github.com/weftlabs/weft/internal/application/planner"
	"github.com/weftlabs/weft/internal/application/workers"
	"github.com/weftlabs/weft/internal/domain"
	"github.com/weftlabs/weft/internal/ports"
)

// Config holds run-execution settings.
type Config struct {
	// WorkerGroup is the consumer group shared by all worker pools.
	WorkerGroup string
	// MaxWorkers caps the pool size regardless of workflow width.
	MaxWorkers int
	// MaxAttempts bounds task retries for failed nodes.
	MaxAttempts int
	// RunTimeout bounds one run end to end.
	RunTimeout time.Duration
	// ShutdownGrace bounds how long workers get to observe the stop signal.
	ShutdownGrace time.Duration
	// HealthCheckInterval drives the worker pool health monitor.
	HealthCheckInterval time.Duration
}

// Coordinator runs workflows: width calculation, pool sizing, orchestration
// and lifecycle tracking.
type Coordinator struct {
	broker    ports.MessageBroker
	executor  ports.AgentExecutor
	store     ports.RunStore
	metrics   ports.MetricsCollector
	validator *orchestrator.Validator
	logger    *zap.Logger
	cfg       Config

	// Active runs, for cancellation.
	runs sync.Map // map[string]*runHandle
}

type runHandle struct {
	cancel context.CancelFunc
}

// New creates a coordinator.
func New(
	broker ports.MessageBroker,
	executor ports.AgentExecutor,
	store ports.RunStore,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	cfg Config,
) *Coordinator {
	if cfg.WorkerGroup == "" {
		cfg.WorkerGroup = "weft-workers"
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	return &Coordinator{
		broker:    broker,
		executor:  executor,
		store:     store,
		metrics:   metrics,
		validator: orchestrator.NewValidator(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes a workflow synchronously and returns the terminal-node output
// map. Outputs is empty unless the run completed.
func (c *Coordinator) Run(ctx context.Context, w *domain.Workflow) (*domain.RunResult, error) {
	runID, width, err := c.prepare(ctx, w)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, runID, width, w)
}

// Submit validates and starts a workflow run in the background, returning
// the run ID and computed width immediately.
func (c *Coordinator) Submit(ctx context.Context, w *domain.Workflow) (string, int, error) {
	runID, width, err := c.prepare(ctx, w)
	if err != nil {
		return "", 0, err
	}

	go func() {
		if _, err := c.execute(context.Background(), runID, width, w); err != nil {
			c.logger.Error("background run failed",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}()

	return runID, width, nil
}

// prepare validates the workflow, computes its width and persists the
// submitted snapshot. Input errors surface here, before any task publish.
func (c *Coordinator) prepare(ctx context.Context, w *domain.Workflow) (string, int, error) {
	if err := c.validator.Validate(w); err != nil {
		c.metrics.RecordRunSubmitted("rejected")
		return "", 0, fmt.Errorf("validation failed: %w", err)
	}

	width, err := planner.Width(w.Nodes, w.Edges)
	if err != nil {
		c.metrics.RecordRunSubmitted("rejected")
		return "", 0, fmt.Errorf("width calculation failed: %w", err)
	}
	if c.cfg.MaxWorkers > 0 && width > c.cfg.MaxWorkers {
		c.logger.Warn("workflow width exceeds worker cap",
			zap.Int("width", width),
			zap.Int("max_workers", c.cfg.MaxWorkers))
		width = c.cfg.MaxWorkers
	}

	runID := uuid.New().String()
	state := &domain.RunState{
		RunID:       runID,
		Workflow:    w,
		Width:       width,
		Status:      domain.RunStatusSubmitted,
		SubmittedAt: time.Now(),
	}
	if err := c.store.SaveRun(ctx, state); err != nil {
		return "", 0, fmt.Errorf("failed to save run state: %w", err)
	}

	c.metrics.RecordRunSubmitted(string(domain.RunStatusSubmitted))
	c.metrics.RecordWorkflowWidth(width)
	c.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("workflow", w.Name),
		zap.Int("nodes", len(w.Nodes)),
		zap.Int("width", width))
	return runID, width, nil
}

// execute drives one prepared run: start the pool, run the orchestrator,
// stop the pool, persist the outcome.
func (c *Coordinator) execute(ctx context.Context, runID string, width int, w *domain.Workflow) (*domain.RunResult, error) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if c.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	c.runs.Store(runID, &runHandle{cancel: cancel})
	defer c.runs.Delete(runID)

	started := time.Now()
	c.updateStatus(runID, func(s *domain.RunState) {
		s.Status = domain.RunStatusRunning
		s.StartedAt = &started
	})

	pool := workers.NewPool(
		width,
		c.cfg.WorkerGroup,
		c.broker,
		c.executor,
		c.metrics,
		c.logger,
		c.cfg.HealthCheckInterval,
	)
	if err := pool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	orch := orchestrator.New(c.broker, c.metrics, c.validator, c.logger, c.cfg.MaxAttempts)
	result, err := orch.Execute(runCtx, runID, w)

	// Grace period for in-flight polls, then force the pool down.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.cfg.ShutdownGrace)
	if poolErr := pool.Shutdown(shutdownCtx); poolErr != nil {
		c.logger.Error("worker pool shutdown error",
			zap.String("run_id", runID),
			zap.Error(poolErr))
	}
	shutdownCancel()

	if err != nil {
		c.updateStatus(runID, func(s *domain.RunState) {
			s.Status = domain.RunStatusFailed
			s.Error = err.Error()
			now := time.Now()
			s.CompletedAt = &now
		})
		c.metrics.RecordRunCompleted(string(domain.RunStatusFailed), time.Since(started).Seconds())
		return nil, err
	}

	completedAt := time.Now()
	c.updateStatus(runID, func(s *domain.RunState) {
		s.Status = result.Status
		s.Outputs = result.Outputs
		s.NodeStates = result.NodeStates
		s.Error = result.Error
		s.CompletedAt = &completedAt
	})
	c.metrics.RecordRunCompleted(string(result.Status), completedAt.Sub(started).Seconds())
	return result, nil
}

// Status returns the persisted snapshot of a run.
func (c *Coordinator) Status(ctx context.Context, runID string) (*domain.RunState, error) {
	return c.store.GetRun(ctx, runID)
}

// List returns all persisted run snapshots.
func (c *Coordinator) List(ctx context.Context) ([]*domain.RunState, error) {
	return c.store.ListRuns(ctx)
}

// Cancel aborts an active run. In-flight agent calls cannot be preempted;
// they run to completion but their results no longer advance the run.
func (c *Coordinator) Cancel(ctx context.Context, runID string) error {
	val, ok := c.runs.Load(runID)
	if !ok {
		state, err := c.store.GetRun(ctx, runID)
		if err != nil {
			return domain.ErrRunNotFound
		}
		if state.Status.Terminal() {
			return fmt.Errorf("%w: %s", domain.ErrRunNotCancelable, state.Status)
		}
		return domain.ErrRunNotFound
	}

	val.(*runHandle).cancel()
	c.logger.Info("run cancelled", zap.String("run_id", runID))
	return nil
}

// Shutdown cancels all active runs.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.logger.Info("shutting down coordinator")
	c.runs.Range(func(key, value any) bool {
		value.(*runHandle).cancel()
		return true
	})
	return nil
}

// updateStatus applies a mutation to the stored snapshot, tolerating a
// missing record.
func (c *Coordinator) updateStatus(runID string, mutate func(*domain.RunState)) {
	ctx := context.Background()
	state, err := c.store.GetRun(ctx, runID)
	if err != nil {
		c.logger.Error("failed to load run state",
			zap.String("run_id", runID),
			zap.Error(err))
		return
	}
	mutate(state)
	if err := c.store.SaveRun(ctx, state); err != nil {
		c.logger.Error("failed to save run state",
			zap.String("run_id", runID),
			zap.Error(err))
	}
}
