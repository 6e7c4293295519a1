// Package queue exposes the webhook task queue to operators: depth metrics,
// the archived (dead-letter) tasks and replay.
package queue

import (
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/storefront-checkout/internal/events"
)

// Inspector is the subset of *asynq.Inspector used here.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
	RunAllArchivedTasks(queue string) (int, error)
}

// Stats summarises one queue.
type Stats struct {
	Queue     string        `json:"queue"`
	Size      int           `json:"size"`
	Pending   int           `json:"pending"`
	Active    int           `json:"active"`
	Scheduled int           `json:"scheduled"`
	Retry     int           `json:"retry"`
	Archived  int           `json:"archived"`
	Processed int           `json:"processedToday"`
	Failed    int           `json:"failedToday"`
	Paused    bool          `json:"paused"`
	Latency   time.Duration `json:"latencyNs"`
}

func statsFrom(info *asynq.QueueInfo) Stats {
	return Stats{
		Queue:     info.Queue,
		Size:      info.Size,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
		Paused:    info.Paused,
		Latency:   info.Latency,
	}
}

// DeadTask is an archived delivery with the event it carried.
type DeadTask struct {
	ID           string    `json:"id"`
	EventID      string    `json:"eventId,omitempty"`
	Topic        string    `json:"topic,omitempty"`
	AggregateID  string    `json:"aggregateId,omitempty"`
	Retried      int       `json:"retried"`
	MaxRetry     int       `json:"maxRetry"`
	LastError    string    `json:"lastError,omitempty"`
	LastFailedAt time.Time `json:"lastFailedAt"`
}

func deadTaskFrom(info *asynq.TaskInfo) DeadTask {
	out := DeadTask{
		ID:           info.ID,
		Retried:      info.Retried,
		MaxRetry:     info.MaxRetry,
		LastError:    info.LastErr,
		LastFailedAt: info.LastFailedAt,
	}
	if ev, err := events.ParseDeliveryTask(asynq.NewTask(info.Type, info.Payload)); err == nil {
		out.EventID = ev.ID.String()
		out.Topic = ev.Topic
		out.AggregateID = ev.AggregateID
	}
	return out
}
