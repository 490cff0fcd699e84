package workers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/domain"
	"github.com/weftlabs/weft/pkg/adapters/broker/memory"
	"github.com/weftlabs/weft/pkg/adapters/metrics/noop"
)

const testPoll = 10 * time.Millisecond

// stubExecutor runs a canned function per agent ID.
type stubExecutor struct {
	fn func(agentID string, inputs []domain.TaskInput) (any, error)
}

func (e *stubExecutor) Execute(ctx context.Context, agentID string, inputs []domain.TaskInput) (any, error) {
	return e.fn(agentID, inputs)
}

func newTestPool(b *memory.Broker, size int, fn func(agentID string, inputs []domain.TaskInput) (any, error)) *Pool {
	return NewPool(size, "test-workers", b, &stubExecutor{fn: fn}, noop.NewCollector(), zap.NewNop(), time.Minute)
}

// collectEvents drains the events stream until want events for runID arrived
// or the context expires.
func collectEvents(ctx context.Context, t *testing.T, b *memory.Broker, runID string, want int) []domain.EventMessage {
	t.Helper()
	stream, err := b.SubscribeEvents(ctx, "collector."+runID, "c0")
	require.NoError(t, err)
	defer stream.Close()

	var events []domain.EventMessage
	for len(events) < want {
		delivery, err := stream.Next(ctx)
		require.NoError(t, err, "events stream ended before %d events arrived", want)
		if delivery == nil {
			continue
		}
		_ = delivery.Ack(ctx)
		if delivery.Event.RunID == runID {
			events = append(events, delivery.Event)
		}
	}
	return events
}

func TestWorkerPublishesStartedThenCompleted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b := memory.NewBroker(testPoll)
	defer b.Close()

	pool := newTestPool(b, 1, func(agentID string, inputs []domain.TaskInput) (any, error) {
		return "result for " + agentID, nil
	})
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	require.NoError(t, b.PublishTask(ctx, &domain.TaskMessage{
		RunID:   "r1",
		NodeID:  "n1",
		AgentID: "agent-a",
		Attempt: 1,
	}))

	events := collectEvents(ctx, t, b, "r1", 2)
	assert.Equal(t, domain.EventNodeStarted, events[0].Type)
	assert.Equal(t, "n1", events[0].NodeID)
	assert.Equal(t, 1, events[0].Attempt)

	assert.Equal(t, domain.EventNodeCompleted, events[1].Type)
	assert.Equal(t, "n1", events[1].NodeID)
	assert.Equal(t, "result for agent-a", events[1].Output)
}

func TestWorkerReportsExecutorErrorAndSurvives(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b := memory.NewBroker(testPoll)
	defer b.Close()

	pool := newTestPool(b, 1, func(agentID string, inputs []domain.TaskInput) (any, error) {
		if agentID == "bad" {
			return nil, fmt.Errorf("model refused")
		}
		return "ok", nil
	})
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	require.NoError(t, b.PublishTask(ctx, &domain.TaskMessage{RunID: "r1", NodeID: "n1", AgentID: "bad", Attempt: 1}))
	require.NoError(t, b.PublishTask(ctx, &domain.TaskMessage{RunID: "r1", NodeID: "n2", AgentID: "good", Attempt: 1}))

	events := collectEvents(ctx, t, b, "r1", 4)

	byNode := map[string][]domain.EventMessage{}
	for _, e := range events {
		byNode[e.NodeID] = append(byNode[e.NodeID], e)
	}

	require.Len(t, byNode["n1"], 2)
	assert.Equal(t, domain.EventNodeFailed, byNode["n1"][1].Type)
	assert.Contains(t, byNode["n1"][1].Error, "model refused")

	// The worker keeps consuming after a failure.
	require.Len(t, byNode["n2"], 2)
	assert.Equal(t, domain.EventNodeCompleted, byNode["n2"][1].Type)
	assert.Equal(t, "ok", byNode["n2"][1].Output)
}

func TestWorkerRecoversFromAgentPanic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b := memory.NewBroker(testPoll)
	defer b.Close()

	pool := newTestPool(b, 1, func(agentID string, inputs []domain.TaskInput) (any, error) {
		if agentID == "boom" {
			panic("nil map write")
		}
		return "ok", nil
	})
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	require.NoError(t, b.PublishTask(ctx, &domain.TaskMessage{RunID: "r1", NodeID: "n1", AgentID: "boom", Attempt: 1}))
	require.NoError(t, b.PublishTask(ctx, &domain.TaskMessage{RunID: "r1", NodeID: "n2", AgentID: "calm", Attempt: 1}))

	events := collectEvents(ctx, t, b, "r1", 4)

	var failed *domain.EventMessage
	for i, e := range events {
		if e.Type == domain.EventNodeFailed {
			failed = &events[i]
		}
	}
	require.NotNil(t, failed, "panic must surface as a failed event")
	assert.Equal(t, "n1", failed.NodeID)
	assert.Contains(t, failed.Error, "panicked")
	assert.Contains(t, failed.Error, "nil map write")
}

func TestPoolShutdownStopsWorkers(t *testing.T) {
	b := memory.NewBroker(testPoll)
	defer b.Close()

	pool := newTestPool(b, 3, func(agentID string, inputs []domain.TaskInput) (any, error) {
		return "ok", nil
	})
	require.NoError(t, pool.Start())

	status := pool.GetStatus()
	require.Len(t, status, 3)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(shutdownCtx))

	for id, s := range pool.GetStatus() {
		assert.Equal(t, WorkerStatusStopped, s, "worker %s", id)
	}
}

func TestPoolStatusSummary(t *testing.T) {
	b := memory.NewBroker(testPoll)
	defer b.Close()

	pool := newTestPool(b, 2, func(agentID string, inputs []domain.TaskInput) (any, error) {
		return "ok", nil
	})
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	status := pool.health.GetStatus()
	assert.Equal(t, 2, status.TotalWorkers)
	assert.True(t, status.Healthy)
	assert.True(t, pool.health.IsHealthy())
}
