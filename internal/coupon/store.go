package coupon

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// Store persists coupons and their redemptions.
type Store interface {
	GetByCode(ctx context.Context, code string) (Coupon, error)
	HasRedeemed(ctx context.Context, couponID uuid.UUID, customerID string) (bool, error)
	Create(ctx context.Context, c Coupon) (Coupon, error)
	List(ctx context.Context, limit, offset int) ([]Coupon, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RevokeUsage(ctx context.Context, id uuid.UUID, customerID string) error
	// Redeem records the redemption on q, usually an open transaction.
	Redeem(ctx context.Context, q db.DBTX, couponID uuid.UUID, customerID string, orderID uuid.UUID) error
}

// PGStore implements Store with pgx.
type PGStore struct {
	DB db.DBTX
}

const couponColumns = `id, code, discount, expires_at, usage_limit, used_count, status, created_at`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Discount, &c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.Status, &c.CreatedAt)
	return c, err
}

// GetByCode implements Store.
func (s PGStore) GetByCode(ctx context.Context, code string) (Coupon, error) {
	c, err := scanCoupon(s.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	if err != nil {
		return Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// HasRedeemed implements Store.
func (s PGStore) HasRedeemed(ctx context.Context, couponID uuid.UUID, customerID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupon_redemptions WHERE coupon_id = $1 AND customer_id = $2)`,
		couponID, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check redemption: %w", err)
	}
	return exists, nil
}

// Create implements Store.
func (s PGStore) Create(ctx context.Context, c Coupon) (Coupon, error) {
	out, err := scanCoupon(s.DB.QueryRow(ctx,
		`INSERT INTO coupons (id, code, discount, expires_at, usage_limit, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+couponColumns,
		c.ID, c.Code, c.Discount, c.ExpiresAt, c.UsageLimit, c.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Coupon{}, ErrDuplicateCode
		}
		return Coupon{}, fmt.Errorf("create coupon: %w", err)
	}
	return out, nil
}

// List implements Store.
func (s PGStore) List(ctx context.Context, limit, offset int) ([]Coupon, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()
	out := make([]Coupon, 0, limit)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Delete implements Store.
func (s PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeUsage implements Store.
func (s PGStore) RevokeUsage(ctx context.Context, id uuid.UUID, customerID string) error {
	tag, err := s.DB.Exec(ctx, `WITH gone AS (
  DELETE FROM coupon_redemptions WHERE coupon_id = $1 AND customer_id = $2 RETURNING coupon_id
)
UPDATE coupons SET used_count = greatest(used_count - 1, 0) WHERE id IN (SELECT coupon_id FROM gone)`, id, customerID)
	if err != nil {
		return fmt.Errorf("revoke coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Redeem implements Store. The usage counter only moves while the coupon is
// still active, unexpired and under its limit.
func (s PGStore) Redeem(ctx context.Context, q db.DBTX, couponID uuid.UUID, customerID string, orderID uuid.UUID) error {
	if q == nil {
		q = s.DB
	}
	tag, err := q.Exec(ctx,
		`INSERT INTO coupon_redemptions (coupon_id, customer_id, order_id) VALUES ($1, $2, $3)
ON CONFLICT (coupon_id, customer_id) DO NOTHING`, couponID, customerID, orderID)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCouponAlreadyUsed
	}
	tag, err = q.Exec(ctx,
		`UPDATE coupons SET used_count = used_count + 1
WHERE id = $1 AND status = 'active' AND expires_at > now() AND used_count < usage_limit`, couponID)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCouponUsageLimit
	}
	return nil
}
