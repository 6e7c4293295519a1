package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/obs"
)

// TaskHandler processes events.TaskDeliver tasks.
type TaskHandler struct {
	Sender *Sender
	Log    zerolog.Logger
}

// ProcessTask implements asynq.Handler. Rejected deliveries are not retried.
func (h TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ev, err := events.ParseDeliveryTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	start := time.Now()
	status, err := h.Sender.Send(ctx, ev)
	result := "delivered"
	switch {
	case err == nil:
	case errors.Is(err, ErrRejected):
		result = "rejected"
	default:
		result = "failed"
	}
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if obs.WebhookAttemptLatency != nil {
		obs.WebhookAttemptLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
	evt := h.Log.Info()
	if err != nil {
		evt = h.Log.Warn().Err(err)
	}
	evt.Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Int("status", status).
		Str("result", result).
		Msg("webhook delivery")
	if errors.Is(err, ErrRejected) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
