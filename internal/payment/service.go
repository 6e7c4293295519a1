package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
	"github.com/noah-isme/storefront-checkout/internal/settings"
)

var (
	ErrMethodInactive  = errors.New("payment: payment method is disabled")
	ErrOrderNotPending = errors.New("payment: order is not awaiting payment")
	ErrNotConfigured   = errors.New("payment: provider not configured")
)

type Orders interface {
	Get(ctx context.Context, customerID string, id uuid.UUID) (order.Order, error)
	AttachPayment(ctx context.Context, id uuid.UUID, ref string) error
}

type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Service coordinates payment intents for orders.
type Service struct {
	Orders   Orders
	Settings SettingsReader
	Provider Provider
	Log      zerolog.Logger
}

// CreateIntent opens a payment intent for a pending order owned by customerID.
func (s *Service) CreateIntent(ctx context.Context, customerID string, orderID uuid.UUID) (IntentResponse, error) {
	if s == nil || s.Provider == nil {
		return IntentResponse{}, ErrNotConfigured
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateIntent")
	defer span.End()

	start := time.Now()
	providerName := s.Provider.Name()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerName),
			attribute.String("order.id", orderID.String()),
			attribute.Float64("payment.intent.duration_ms", obs.DurationMillis(time.Since(start))),
			attribute.String("payment.intent.result", result),
		)
		if obs.PaymentIntentTotal != nil {
			obs.PaymentIntentTotal.WithLabelValues(providerName, result).Inc()
		}
	}()

	st, err := s.Settings.Get(ctx)
	if err != nil {
		return IntentResponse{}, err
	}
	if providerName == "stripe" && !st.PaymentMethods.StripeActive {
		result = "disabled"
		return IntentResponse{}, ErrMethodInactive
	}
	o, err := s.Orders.Get(ctx, customerID, orderID)
	if err != nil {
		return IntentResponse{}, err
	}
	if o.Status != order.StatusPendingPayment {
		result = "rejected"
		return IntentResponse{}, ErrOrderNotPending
	}
	resp, err := s.Provider.CreateIntent(ctx, IntentRequest{
		OrderID:    o.ID.String(),
		CustomerID: customerID,
		Amount:     pricing.MinorUnits(o.Pricing.GrandTotal),
		Currency:   strings.ToLower(o.Currency),
	})
	if err != nil {
		span.RecordError(err)
		return IntentResponse{}, err
	}
	if err := s.Orders.AttachPayment(ctx, o.ID, resp.IntentID); err != nil {
		return IntentResponse{}, err
	}
	result = "success"
	s.Log.Info().
		Str("order_id", o.ID.String()).
		Str("provider", providerName).
		Str("intent_id", resp.IntentID).
		Int64("amount", resp.Amount).
		Msg("payment intent created")
	return resp, nil
}
