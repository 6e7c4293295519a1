// Package order persists confirmed checkouts and exposes the customer's
// order history.
package order

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusCanceled       Status = "CANCELED"
)

// Item is a purchased line frozen at confirmation time.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

// Order is a confirmed checkout.
type Order struct {
	ID             uuid.UUID         `json:"id"`
	CustomerID     string            `json:"customerId"`
	CartID         string            `json:"cartId"`
	Status         Status            `json:"status"`
	Items          []Item            `json:"items,omitempty"`
	Pricing        pricing.Breakdown `json:"pricing"`
	GrandTotal     string            `json:"grandTotal"`
	Currency       string            `json:"currency"`
	CouponCode     string            `json:"couponCode,omitempty"`
	ShippingMethod string            `json:"shippingMethod"`
	ShippingInfo   json.RawMessage   `json:"shippingInfo,omitempty"`
	PaymentRef     string            `json:"paymentRef,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// CanTransition reports whether an order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPendingPayment && (next == StatusPaid || next == StatusCanceled)
}
