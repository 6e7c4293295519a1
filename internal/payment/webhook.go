package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
)

const maxWebhookBody = 64 << 10

// Settler marks orders paid.
type Settler interface {
	MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) (order.Order, error)
}

// StripeWebhook handles Stripe event callbacks.
type StripeWebhook struct {
	Secret    string
	Orders    Settler
	Replay    *redis.Client
	ReplayTTL time.Duration
	Log       zerolog.Logger
}

// Handle verifies the Stripe-Signature header and settles succeeded intents.
func (h StripeWebhook) Handle(w http.ResponseWriter, r *http.Request) {
	result := "error"
	defer func() {
		if obs.PaymentWebhookTotal != nil {
			obs.PaymentWebhookTotal.WithLabelValues("stripe", result).Inc()
		}
	}()
	if h.Secret == "" || h.Orders == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		result = "invalid_signature"
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if h.Replay != nil && h.ReplayTTL > 0 {
		ok, err := h.Replay.SetNX(r.Context(), "wh:stripe:"+event.ID, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusServiceUnavailable, "REPLAY_STORE_ERROR", "replay store unavailable", nil)
			return
		}
		if !ok {
			result = "replay"
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	switch string(event.Type) {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_EVENT", "malformed payment intent", nil)
			return
		}
		orderID, err := uuid.Parse(pi.Metadata["order_id"])
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order identifier", nil)
			return
		}
		if _, err := h.Orders.MarkPaid(r.Context(), orderID, pi.ID); err != nil {
			h.Log.Error().Err(err).Str("order_id", orderID.String()).Str("intent_id", pi.ID).Msg("settle order")
			h.forgetReplay(r.Context(), event.ID)
			common.WriteError(w, err, func(err error) *common.AppError {
				if errors.Is(err, order.ErrNotFound) || errors.Is(err, order.ErrInvalidTransition) {
					return order.MapError(err)
				}
				return nil
			})
			return
		}
		result = "paid"
	case "payment_intent.payment_failed":
		h.Log.Warn().Str("event_id", event.ID).Msg("payment intent failed")
		result = "failed"
	default:
		result = "ignored"
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h StripeWebhook) forgetReplay(ctx context.Context, eventID string) {
	if h.Replay != nil {
		_ = h.Replay.Del(ctx, "wh:stripe:"+eventID).Err()
	}
}
