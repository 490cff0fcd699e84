package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/domain"
)

const testPoll = 20 * time.Millisecond

func TestPublishThenSubscribeReplaysBacklog(t *testing.T) {
	b := NewBroker(testPoll)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.PublishTask(ctx, &domain.TaskMessage{RunID: "r1", NodeID: "a"}))
	require.NoError(t, b.PublishTask(ctx, &domain.TaskMessage{RunID: "r1", NodeID: "b"}))

	stream, err := b.SubscribeTasks(ctx, "workers", "w0")
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "a", first.Task.NodeID)
	require.NoError(t, first.Ack(ctx))

	second, err := stream.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "b", second.Task.NodeID)
}

func TestNextReturnsNilOnPollTimeout(t *testing.T) {
	b := NewBroker(testPoll)
	defer b.Close()
	ctx := context.Background()

	stream, err := b.SubscribeEvents(ctx, "g", "c")
	require.NoError(t, err)
	defer stream.Close()

	delivery, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, delivery)
}

func TestGroupConsumersShareDeliveries(t *testing.T) {
	b := NewBroker(testPoll)
	defer b.Close()
	ctx := context.Background()

	s1, err := b.SubscribeTasks(ctx, "workers", "w0")
	require.NoError(t, err)
	defer s1.Close()
	s2, err := b.SubscribeTasks(ctx, "workers", "w1")
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, b.PublishTask(ctx, &domain.TaskMessage{RunID: "r1", NodeID: "only"}))

	seen := 0
	d1, err := s1.Next(ctx)
	require.NoError(t, err)
	if d1 != nil {
		seen++
	}
	d2, err := s2.Next(ctx)
	require.NoError(t, err)
	if d2 != nil {
		seen++
	}
	assert.Equal(t, 1, seen, "a task is delivered to exactly one consumer of the group")
}

func TestSeparateGroupsEachSeeEverything(t *testing.T) {
	b := NewBroker(testPoll)
	defer b.Close()
	ctx := context.Background()

	s1, err := b.SubscribeEvents(ctx, "orchestrator.r1", "o")
	require.NoError(t, err)
	defer s1.Close()
	s2, err := b.SubscribeEvents(ctx, "ws.abc", "ws")
	require.NoError(t, err)
	defer s2.Close()

	evt := &domain.EventMessage{RunID: "r1", NodeID: "a", Type: domain.EventNodeCompleted}
	require.NoError(t, b.PublishEvent(ctx, evt))

	d1, err := s1.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, d1)
	assert.Equal(t, "a", d1.Event.NodeID)

	d2, err := s2.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, d2)
	assert.Equal(t, "a", d2.Event.NodeID)
}

func TestClosedBrokerRejectsPublish(t *testing.T) {
	b := NewBroker(testPoll)
	ctx := context.Background()

	require.NoError(t, b.Close())
	assert.Error(t, b.PublishTask(ctx, &domain.TaskMessage{RunID: "r1", NodeID: "a"}))
	assert.Error(t, b.PublishEvent(ctx, &domain.EventMessage{RunID: "r1", NodeID: "a"}))

	_, err := b.SubscribeTasks(ctx, "g", "c")
	assert.Error(t, err)
}

func TestNextHonorsContextCancellation(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()

	stream, err := b.SubscribeTasks(context.Background(), "g", "c")
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
