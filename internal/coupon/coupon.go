// Package coupon implements percentage coupons redeemable once per customer.
package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/security"
)

var (
	ErrNotFound          = errors.New("coupon: not found")
	ErrDuplicateCode     = errors.New("coupon: code already exists")
	ErrCouponExpired     = errors.New("coupon: expired")
	ErrCouponInactive    = errors.New("coupon: inactive")
	ErrCouponAlreadyUsed = errors.New("coupon: already used by customer")
	ErrCouponUsageLimit  = errors.New("coupon: usage limit reached")
)

// Status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Coupon is a percentage discount on the items total.
type Coupon struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Discount   float64   `json:"discount"`
	ExpiresAt  time.Time `json:"expiresAt"`
	UsageLimit int       `json:"usageLimit"`
	UsedCount  int       `json:"usedCount"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Check reports why the coupon cannot be used by a customer at now.
// usedByCustomer tells whether that customer already redeemed it.
func (c Coupon) Check(now time.Time, usedByCustomer bool) error {
	switch {
	case c.Status != StatusActive:
		return ErrCouponInactive
	case !now.Before(c.ExpiresAt):
		return ErrCouponExpired
	case usedByCustomer:
		return ErrCouponAlreadyUsed
	case c.UsedCount >= c.UsageLimit:
		return ErrCouponUsageLimit
	default:
		return nil
	}
}

// NormalizeCode strips markup and whitespace and upper-cases a code typed by
// a customer.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(security.PlainText(code), " ", ""))
}
