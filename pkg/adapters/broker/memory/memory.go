package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weftlabs/weft/internal/domain"
	"github.com/weftlabs/weft/internal/ports"
)

const groupBuffer = 4096

// Broker implements ports.MessageBroker in memory.
// This is for testing purposes only.
//
// Each consumer group owns one buffered channel. Consumers of the same group
// share the channel, which gives the same load-balancing behavior as a
// shared stream group. Messages published before a group exists are kept in
// a backlog and replayed when the group is created, matching a durable log
// consumed from the beginning.
type Broker struct {
	pollInterval time.Duration

	mu          sync.Mutex
	closed      bool
	taskLog     []*domain.TaskMessage
	eventLog    []*domain.EventMessage
	taskGroups  map[string]chan *domain.TaskMessage
	eventGroups map[string]chan *domain.EventMessage
}

// NewBroker creates a new in-memory broker. pollInterval bounds how long a
// stream's Next blocks when no message is available.
func NewBroker(pollInterval time.Duration) *Broker {
	return &Broker{
		pollInterval: pollInterval,
		taskGroups:   make(map[string]chan *domain.TaskMessage),
		eventGroups:  make(map[string]chan *domain.EventMessage),
	}
}

// PublishTask appends the task to the tasks log and fans it out to every
// task consumer group.
func (b *Broker) PublishTask(ctx context.Context, task *domain.TaskMessage) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("broker is closed")
	}
	t := *task
	b.taskLog = append(b.taskLog, &t)
	channels := make([]chan *domain.TaskMessage, 0, len(b.taskGroups))
	for _, ch := range b.taskGroups {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- &t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// PublishEvent appends the event to the events log and fans it out to every
// event consumer group.
func (b *Broker) PublishEvent(ctx context.Context, event *domain.EventMessage) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("broker is closed")
	}
	e := *event
	b.eventLog = append(b.eventLog, &e)
	channels := make([]chan *domain.EventMessage, 0, len(b.eventGroups))
	for _, ch := range b.eventGroups {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- &e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SubscribeTasks joins (or creates) a task consumer group.
func (b *Broker) SubscribeTasks(ctx context.Context, group, consumer string) (ports.TaskStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	ch, ok := b.taskGroups[group]
	if !ok {
		ch = make(chan *domain.TaskMessage, groupBuffer)
		for _, t := range b.taskLog {
			ch <- t
		}
		b.taskGroups[group] = ch
	}
	return &taskStream{ch: ch, pollInterval: b.pollInterval}, nil
}

// SubscribeEvents joins (or creates) an event consumer group.
func (b *Broker) SubscribeEvents(ctx context.Context, group, consumer string) (ports.EventStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	ch, ok := b.eventGroups[group]
	if !ok {
		ch = make(chan *domain.EventMessage, groupBuffer)
		for _, e := range b.eventLog {
			ch <- e
		}
		b.eventGroups[group] = ch
	}
	return &eventStream{ch: ch, pollInterval: b.pollInterval}, nil
}

// Close marks the broker closed. Further publishes and subscriptions fail;
// in-flight streams drain via their poll timeout.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func ack(ctx context.Context) error { return nil }

type taskStream struct {
	ch           chan *domain.TaskMessage
	pollInterval time.Duration
}

func (s *taskStream) Next(ctx context.Context) (*ports.TaskDelivery, error) {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case task := <-s.ch:
		return &ports.TaskDelivery{Task: *task, Ack: ack}, nil
	}
}

func (s *taskStream) Close() error { return nil }

type eventStream struct {
	ch           chan *domain.EventMessage
	pollInterval time.Duration
}

func (s *eventStream) Next(ctx context.Context) (*ports.EventDelivery, error) {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case event := <-s.ch:
		return &ports.EventDelivery{Event: *event, Ack: ack}, nil
	}
}

func (s *eventStream) Close() error { return nil }
