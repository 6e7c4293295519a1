package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/events"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Service exposes order reads and status changes.
type Service struct {
	Store  Store
	Events Emitter
	Log    zerolog.Logger
}

// Get returns an order owned by customerID. Orders of other customers are
// reported as missing.
func (s *Service) Get(ctx context.Context, customerID string, id uuid.UUID) (Order, error) {
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.CustomerID != customerID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// List returns one page of the customer's orders, newest first.
func (s *Service) List(ctx context.Context, customerID string, page common.Pagination) ([]Order, common.Pagination, error) {
	orders, total, err := s.Store.ListByCustomer(ctx, customerID, page.PerPage, page.Offset())
	if err != nil {
		return nil, page, err
	}
	page.TotalItems = total
	return orders, page, nil
}

// Cancel cancels a pending order of customerID.
func (s *Service) Cancel(ctx context.Context, customerID string, id uuid.UUID) (Order, error) {
	if _, err := s.Get(ctx, customerID, id); err != nil {
		return Order{}, err
	}
	o, err := s.Store.Transition(ctx, id, StatusPendingPayment, StatusCanceled, "")
	if err != nil {
		return Order{}, err
	}
	s.Log.Info().Str("order_id", id.String()).Msg("order canceled")
	return o, nil
}

// MarkPaid records a successful payment and emits order.paid. Repeated
// notifications for an order already paid with the same reference succeed.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) (Order, error) {
	o, err := s.Store.Transition(ctx, id, StatusPendingPayment, StatusPaid, paymentRef)
	if errors.Is(err, ErrInvalidTransition) {
		current, getErr := s.Store.Get(ctx, id)
		if getErr != nil {
			return Order{}, getErr
		}
		if current.Status == StatusPaid && current.PaymentRef == paymentRef {
			return current, nil
		}
		return Order{}, err
	}
	if err != nil {
		return Order{}, err
	}
	if s.Events != nil {
		payload := map[string]any{
			"orderId":    o.ID,
			"customerId": o.CustomerID,
			"grandTotal": o.GrandTotal,
			"currency":   o.Currency,
			"paymentRef": paymentRef,
		}
		if _, err := s.Events.Emit(ctx, events.TopicOrderPaid, o.ID.String(), payload); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID.String()).Msg("emit order.paid")
		}
	}
	return o, nil
}

// AttachPayment stores the provider reference of a pending payment.
func (s *Service) AttachPayment(ctx context.Context, id uuid.UUID, ref string) error {
	return s.Store.SetPaymentRef(ctx, id, ref)
}
