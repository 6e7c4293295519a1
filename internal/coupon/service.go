package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/db"
)

// Service validates and manages coupons.
type Service struct {
	Store Store
	Now   func() time.Time
}

// CreateInput is the admin payload for a new coupon.
type CreateInput struct {
	Code       string    `json:"code" validate:"required,min=3,max=30,alphanum,uppercase"`
	Discount   float64   `json:"discount" validate:"gte=0,lte=100"`
	ExpiresAt  time.Time `json:"expiresAt" validate:"required"`
	UsageLimit int       `json:"usageLimit" validate:"gte=1"`
	Status     string    `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Validate loads the coupon for a customer-typed code and checks that
// customerID may still use it.
func (s *Service) Validate(ctx context.Context, code, customerID string) (Coupon, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Coupon{}, ErrNotFound
	}
	c, err := s.Store.GetByCode(ctx, normalized)
	if err != nil {
		return Coupon{}, err
	}
	used, err := s.Store.HasRedeemed(ctx, c.ID, customerID)
	if err != nil {
		return Coupon{}, err
	}
	if err := c.Check(s.now(), used); err != nil {
		return Coupon{}, err
	}
	return c, nil
}

// Redeem records that customerID used the coupon on orderID. Pass the open
// order transaction as q so both commit together.
func (s *Service) Redeem(ctx context.Context, q db.DBTX, couponID uuid.UUID, customerID string, orderID uuid.UUID) error {
	return s.Store.Redeem(ctx, q, couponID, customerID, orderID)
}

// Create stores a new coupon.
func (s *Service) Create(ctx context.Context, in CreateInput) (Coupon, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := common.ValidateStruct(in); err != nil {
		return Coupon{}, err
	}
	if !in.ExpiresAt.After(s.now()) {
		return Coupon{}, common.ValidationError("expiresAt must be in the future", nil)
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	c, err := s.Store.Create(ctx, Coupon{
		ID:         uuid.New(),
		Code:       in.Code,
		Discount:   in.Discount,
		ExpiresAt:  in.ExpiresAt.UTC(),
		UsageLimit: in.UsageLimit,
		Status:     status,
	})
	if err != nil {
		return Coupon{}, fmt.Errorf("create coupon %s: %w", in.Code, err)
	}
	return c, nil
}

// List returns one page of coupons, newest first.
func (s *Service) List(ctx context.Context, page common.Pagination) ([]Coupon, int, error) {
	return s.Store.List(ctx, page.PerPage, page.Offset())
}

// Delete removes a coupon.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.Store.Delete(ctx, id)
}

// RevokeUsage lets customerID use the coupon again.
func (s *Service) RevokeUsage(ctx context.Context, id uuid.UUID, customerID string) error {
	return s.Store.RevokeUsage(ctx, id, customerID)
}
