package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/domain"
	"github.com/weftlabs/weft/internal/ports"
)

const publishAttempts = 3

// Broker implements ports.MessageBroker on Redis Streams.
//
// Tasks live in one stream consumed by a group shared across all workers;
// Redis load-balances entries over the group's consumers. Events live in a
// second stream with one group per orchestrator so every orchestrator sees
// every event. Both streams deliver at least once; entries are removed from
// a consumer's pending list only on XACK.
type Broker struct {
	client       *redis.Client
	logger       *zap.Logger
	tasksStream  string
	eventsStream string
	pollInterval time.Duration
	readCount    int64
}

// Config holds broker stream configuration.
type Config struct {
	TasksStream  string
	EventsStream string
	PollInterval time.Duration
	ReadCount    int64
}

// NewBroker creates a Redis Streams broker on an existing client.
func NewBroker(client *redis.Client, cfg Config, logger *zap.Logger) *Broker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = 10
	}
	return &Broker{
		client:       client,
		logger:       logger,
		tasksStream:  cfg.TasksStream,
		eventsStream: cfg.EventsStream,
		pollInterval: cfg.PollInterval,
		readCount:    cfg.ReadCount,
	}
}

// PublishTask appends a task to the tasks stream, keyed run_id|node_id.
func (b *Broker) PublishTask(ctx context.Context, task *domain.TaskMessage) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := b.add(ctx, b.tasksStream, task.Key(), data); err != nil {
		return err
	}

	b.logger.Debug("task published",
		zap.String("run_id", task.RunID),
		zap.String("node_id", task.NodeID),
		zap.Int("attempt", task.Attempt))
	return nil
}

// PublishEvent appends an event to the events stream, keyed by run_id.
func (b *Broker) PublishEvent(ctx context.Context, event *domain.EventMessage) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.add(ctx, b.eventsStream, event.RunID, data); err != nil {
		return err
	}

	b.logger.Debug("event published",
		zap.String("run_id", event.RunID),
		zap.String("node_id", event.NodeID),
		zap.String("type", string(event.Type)))
	return nil
}

// add performs XADD with a short retry; a lost publish stalls the run.
func (b *Broker) add(ctx context.Context, stream, key string, data []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"key":  key,
			"data": string(data),
		},
	}

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if _, lastErr = b.client.XAdd(ctx, args).Result(); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to add to stream %s: %w", stream, lastErr)
}

// SubscribeTasks joins the shared worker group on the tasks stream.
func (b *Broker) SubscribeTasks(ctx context.Context, group, consumer string) (ports.TaskStream, error) {
	if err := b.ensureGroup(ctx, b.tasksStream, group); err != nil {
		return nil, err
	}
	return &taskStream{reader: b.newReader(b.tasksStream, group, consumer)}, nil
}

// SubscribeEvents joins a per-orchestrator group on the events stream.
func (b *Broker) SubscribeEvents(ctx context.Context, group, consumer string) (ports.EventStream, error) {
	if err := b.ensureGroup(ctx, b.eventsStream, group); err != nil {
		return nil, err
	}
	return &eventStream{reader: b.newReader(b.eventsStream, group, consumer)}, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *Broker) Close() error { return nil }

func (b *Broker) ensureGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

func (b *Broker) newReader(stream, group, consumer string) *reader {
	return &reader{
		broker:   b,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

// reader pulls raw entries from one stream on behalf of one consumer,
// buffering the batch XReadGroup returns.
type reader struct {
	broker   *Broker
	stream   string
	group    string
	consumer string
	pending  []redis.XMessage
}

// next returns the next raw entry, blocking for at most the poll interval.
// A nil message with nil error means the poll timed out.
func (r *reader) next(ctx context.Context) (*redis.XMessage, error) {
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		return &msg, nil
	}

	streams, err := r.broker.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    r.broker.readCount,
		Block:    r.broker.pollInterval,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", r.stream, err)
	}

	for _, s := range streams {
		r.pending = append(r.pending, s.Messages...)
	}
	if len(r.pending) == 0 {
		return nil, nil
	}
	msg := r.pending[0]
	r.pending = r.pending[1:]
	return &msg, nil
}

// ackFunc builds the manual-acknowledge closure for one entry.
func (r *reader) ackFunc(id string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := r.broker.client.XAck(ctx, r.stream, r.group, id).Err(); err != nil {
			return fmt.Errorf("failed to acknowledge message %s: %w", id, err)
		}
		return nil
	}
}

func payload(msg *redis.XMessage) ([]byte, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid message format: %s", msg.ID)
	}
	return []byte(data), nil
}

type taskStream struct {
	reader *reader
}

func (s *taskStream) Next(ctx context.Context) (*ports.TaskDelivery, error) {
	msg, err := s.reader.next(ctx)
	if err != nil || msg == nil {
		return nil, err
	}

	data, err := payload(msg)
	if err != nil {
		return nil, err
	}

	var task domain.TaskMessage
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", msg.ID, err)
	}

	return &ports.TaskDelivery{Task: task, Ack: s.reader.ackFunc(msg.ID)}, nil
}

func (s *taskStream) Close() error { return nil }

type eventStream struct {
	reader *reader
}

func (s *eventStream) Next(ctx context.Context) (*ports.EventDelivery, error) {
	msg, err := s.reader.next(ctx)
	if err != nil || msg == nil {
		return nil, err
	}

	data, err := payload(msg)
	if err != nil {
		return nil, err
	}

	var event domain.EventMessage
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", msg.ID, err)
	}

	return &ports.EventDelivery{Event: event, Ack: s.reader.ackFunc(msg.ID)}, nil
}

func (s *eventStream) Close() error { return nil }
