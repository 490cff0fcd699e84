package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/domain"
	"github.com/weftlabs/weft/internal/ports"
)

// WorkerStatus represents worker status.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// Pool manages a fixed-size set of worker goroutines sharing one consumer
// group on the tasks stream.
type Pool struct {
	size     int
	group    string
	broker   ports.MessageBroker
	executor ports.AgentExecutor
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	health   *HealthMonitor

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker is a single task-stream consumer.
type worker struct {
	id      string
	pool    *Pool
	mu      sync.RWMutex
	status  WorkerStatus
	lastJob time.Time
}

// NewPool creates a worker pool of the given size. The pool is sized per run
// from the workflow's width.
func NewPool(
	size int,
	group string,
	broker ports.MessageBroker,
	executor ports.AgentExecutor,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:     size,
		group:    group,
		broker:   broker,
		executor: executor,
		metrics:  metrics,
		logger:   logger,
		workers:  make([]*worker, size),
		ctx:      ctx,
		cancel:   cancel,
	}
	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)
	return pool
}

// Start launches the workers and the health monitor.
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool",
		zap.Int("size", p.size),
		zap.String("group", p.group))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()
	return nil
}

// Shutdown signals every worker to stop and waits for in-flight polls to
// drain, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown timeout")
	}
}

// GetStatus returns the status of all workers.
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

func (w *worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	if s == WorkerStatusBusy {
		w.lastJob = time.Now()
	}
	w.mu.Unlock()
}

// run is the worker's poll loop. Executor errors become failed events and
// never crash the loop; only a broken subscription ends it early.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	defer w.setStatus(WorkerStatusStopped)

	stream, err := w.pool.broker.SubscribeTasks(ctx, w.pool.group, w.id)
	if err != nil {
		w.pool.logger.Error("failed to subscribe to tasks",
			zap.String("worker_id", w.id),
			zap.Error(err))
		return
	}
	defer stream.Close()

	w.pool.logger.Info("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
			return
		default:
		}

		delivery, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
				return
			}
			w.pool.logger.Error("failed to poll tasks",
				zap.String("worker_id", w.id),
				zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		w.handleTask(ctx, delivery)
	}
}

// handleTask executes one task: started event, executor call, completed or
// failed event, then the offset ack. The ack happens only after the terminal
// event published so a crash between execute and publish re-delivers the
// task instead of losing it.
func (w *worker) handleTask(ctx context.Context, delivery *ports.TaskDelivery) {
	task := delivery.Task
	w.setStatus(WorkerStatusBusy)
	defer w.setStatus(WorkerStatusIdle)

	w.pool.logger.Info("executing task",
		zap.String("worker_id", w.id),
		zap.String("run_id", task.RunID),
		zap.String("node_id", task.NodeID),
		zap.String("agent_id", task.AgentID),
		zap.Int("attempt", task.Attempt))

	w.publishEvent(ctx, &task, domain.EventNodeStarted, nil, "")

	start := time.Now()
	output, execErr := w.execute(ctx, &task)
	duration := time.Since(start)

	var published bool
	if execErr != nil {
		w.pool.logger.Warn("task execution failed",
			zap.String("worker_id", w.id),
			zap.String("run_id", task.RunID),
			zap.String("node_id", task.NodeID),
			zap.Duration("duration", duration),
			zap.Error(execErr))
		published = w.publishEvent(ctx, &task, domain.EventNodeFailed, nil, execErr.Error())
		w.pool.metrics.RecordNodeExecuted(string(domain.NodeStatusFailed), duration.Seconds())
	} else {
		w.pool.logger.Info("task execution completed",
			zap.String("worker_id", w.id),
			zap.String("run_id", task.RunID),
			zap.String("node_id", task.NodeID),
			zap.Duration("duration", duration))
		published = w.publishEvent(ctx, &task, domain.EventNodeCompleted, output, "")
		w.pool.metrics.RecordNodeExecuted(string(domain.NodeStatusCompleted), duration.Seconds())
	}

	// An unpublished terminal event leaves the task unacked for redelivery.
	if !published {
		return
	}
	if err := delivery.Ack(ctx); err != nil {
		w.pool.logger.Error("failed to ack task",
			zap.String("worker_id", w.id),
			zap.String("run_id", task.RunID),
			zap.String("node_id", task.NodeID),
			zap.Error(err))
	}
}

// execute invokes the black-box agent executor, converting panics into
// errors so a misbehaving agent cannot take the worker down.
func (w *worker) execute(ctx context.Context, task *domain.TaskMessage) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("agent %s panicked: %v", task.AgentID, r)
		}
	}()
	return w.pool.executor.Execute(ctx, task.AgentID, task.Inputs)
}

func (w *worker) publishEvent(ctx context.Context, task *domain.TaskMessage, eventType domain.EventType, output any, errMsg string) bool {
	event := &domain.EventMessage{
		RunID:     task.RunID,
		NodeID:    task.NodeID,
		Type:      eventType,
		Attempt:   task.Attempt,
		Output:    output,
		Error:     errMsg,
		Timestamp: time.Now(),
	}

	if err := w.pool.broker.PublishEvent(ctx, event); err != nil {
		w.pool.logger.Error("failed to publish event",
			zap.String("worker_id", w.id),
			zap.String("run_id", task.RunID),
			zap.String("node_id", task.NodeID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
		return false
	}
	return true
}
