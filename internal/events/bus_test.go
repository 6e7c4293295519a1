package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/events"
)

type stubStore struct {
	last events.Event
	err  error
}

func (s *stubStore) Insert(_ context.Context, ev events.Event) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	s.last = ev
	return ev, nil
}

type captureScheduler struct {
	events []events.Event
	err    error
}

func (c *captureScheduler) Schedule(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return c.err
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type captureEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	return &asynq.TaskInfo{ID: "x"}, nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bus := events.Bus{
		Store:     store,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
		Now:       func() time.Time { return fixed },
	}

	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, "order-1", map[string]any{"grandTotal": "1230.00"})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, store.last.Topic)
	require.Equal(t, "order-1", store.last.AggregateID)
	require.Equal(t, fixed, ev.OccurredAt)
	require.JSONEq(t, `{"grandTotal":"1230.00"}`, string(store.last.Payload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, scheduler.events[0].ID)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), " ", "a", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderPaid, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderPaid, "a", "{not json")
	require.Error(t, err)

	ev, err := bus.Emit(context.Background(), events.TopicOrderPaid, "a", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(ev.Payload))
}

func TestEmitReturnsEventWhenSchedulerFails(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}, Scheduler: &captureScheduler{err: errors.New("queue down")}}
	ev, err := bus.Emit(context.Background(), events.TopicOrderPaid, "o1", nil)
	require.ErrorContains(t, err, "queue down")
	require.Equal(t, events.TopicOrderPaid, ev.Topic)

	bus = events.Bus{Store: &stubStore{err: errors.New("db down")}}
	_, err = bus.Emit(context.Background(), events.TopicOrderPaid, "o1", nil)
	require.ErrorContains(t, err, "persist event")
}

func TestAsynqSchedulerEnqueuesDeliveryTask(t *testing.T) {
	enq := &captureEnqueuer{}
	s := events.AsynqScheduler{Client: enq, Queue: "webhooks", MaxRetry: 3, Topics: []string{events.TopicOrderCreated}}

	ev := events.Event{Topic: events.TopicOrderCreated, AggregateID: "o1", Payload: json.RawMessage(`{"a":1}`)}
	require.NoError(t, s.Schedule(context.Background(), ev))
	require.NoError(t, s.Schedule(context.Background(), events.Event{Topic: events.TopicSettingsUpdated}))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, events.TaskDeliver, enq.tasks[0].Type())
	require.Len(t, enq.opts[0], 3)

	back, err := events.ParseDeliveryTask(enq.tasks[0])
	require.NoError(t, err)
	require.Equal(t, "o1", back.AggregateID)
	require.JSONEq(t, `{"a":1}`, string(back.Payload))
}
