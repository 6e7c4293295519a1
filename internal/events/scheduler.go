package events

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used by the scheduler.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqScheduler enqueues one delivery task per event. The event id doubles as
// the task id so an event is never queued twice.
type AsynqScheduler struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
	Timeout  time.Duration
	Topics   []string
}

// NewDeliveryTask builds the task payload for ev.
func NewDeliveryTask(ev Event) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode delivery task: %w", err)
	}
	return asynq.NewTask(TaskDeliver, payload), nil
}

// ParseDeliveryTask decodes a task built by NewDeliveryTask.
func ParseDeliveryTask(t *asynq.Task) (Event, error) {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return Event{}, fmt.Errorf("decode delivery task: %w", err)
	}
	return ev, nil
}

// Schedule implements DeliveryScheduler.
func (s AsynqScheduler) Schedule(ctx context.Context, ev Event) error {
	if s.Client == nil {
		return nil
	}
	if len(s.Topics) > 0 && !slices.Contains(s.Topics, ev.Topic) {
		return nil
	}
	task, err := NewDeliveryTask(ev)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID.String())}
	if s.Queue != "" {
		opts = append(opts, asynq.Queue(s.Queue))
	}
	if s.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(s.MaxRetry))
	}
	if s.Timeout > 0 {
		opts = append(opts, asynq.Timeout(s.Timeout))
	}
	if _, err := s.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", ev.Topic, err)
	}
	return nil
}
