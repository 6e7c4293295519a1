package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-checkout/internal/db"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// Store persists orders.
type Store interface {
	// Insert writes the order and its items on q, usually an open transaction.
	Insert(ctx context.Context, q db.DBTX, o Order) (Order, error)
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, int, error)
	// Transition moves the order from one status to another and sets paymentRef
	// when it is not empty.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, paymentRef string) (Order, error)
	SetPaymentRef(ctx context.Context, id uuid.UUID, ref string) error
}

// PGStore implements Store with pgx.
type PGStore struct {
	DB db.DBTX
}

const orderColumns = `id, customer_id, cart_id, status, items_total, discount, shipping_cost, tax_amount,
grand_total, currency, coalesce(coupon_code, ''), shipping_method, shipping_info, coalesce(payment_ref, ''),
created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
		info   []byte
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CartID, &status,
		&o.Pricing.ItemsTotal, &o.Pricing.Discount, &o.Pricing.ShippingCost, &o.Pricing.TaxAmount,
		&o.Pricing.GrandTotal, &o.Currency, &o.CouponCode, &o.ShippingMethod, &info, &o.PaymentRef,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.ShippingInfo = info
	o.GrandTotal = pricing.FormatAmount(o.Pricing.GrandTotal)
	return o, nil
}

// Insert implements Store.
func (s PGStore) Insert(ctx context.Context, q db.DBTX, o Order) (Order, error) {
	if q == nil {
		q = s.DB
	}
	var coupon *string
	if o.CouponCode != "" {
		coupon = &o.CouponCode
	}
	err := q.QueryRow(ctx, `INSERT INTO orders
  (id, customer_id, cart_id, status, items_total, discount, shipping_cost, tax_amount, grand_total,
   currency, coupon_code, shipping_method, shipping_info)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING created_at, updated_at`,
		o.ID, o.CustomerID, o.CartID, string(o.Status),
		o.Pricing.ItemsTotal, o.Pricing.Discount, o.Pricing.ShippingCost, o.Pricing.TaxAmount, o.Pricing.GrandTotal,
		o.Currency, coupon, o.ShippingMethod, []byte(o.ShippingInfo)).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	for i, it := range o.Items {
		if _, err := q.Exec(ctx, `INSERT INTO order_items (order_id, line_no, product_id, name, unit_price, quantity)
VALUES ($1, $2, $3, $4, $5, $6)`, o.ID, i+1, it.ProductID, it.Name, it.UnitPrice, it.Quantity); err != nil {
			return Order{}, fmt.Errorf("insert order item %d: %w", i+1, err)
		}
	}
	o.GrandTotal = pricing.FormatAmount(o.Pricing.GrandTotal)
	return o, nil
}

// Get implements Store.
func (s PGStore) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT product_id, name, unit_price, quantity FROM order_items WHERE order_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// ListByCustomer implements Store.
func (s PGStore) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1
ORDER BY created_at DESC LIMIT $2 OFFSET $3`, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	out := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// Transition implements Store.
func (s PGStore) Transition(ctx context.Context, id uuid.UUID, from, to Status, paymentRef string) (Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `UPDATE orders
SET status = $3, payment_ref = coalesce(nullif($4, ''), payment_ref), updated_at = now()
WHERE id = $1 AND status = $2
RETURNING `+orderColumns, id, string(from), string(to), paymentRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrInvalidTransition
	}
	if err != nil {
		return Order{}, fmt.Errorf("transition order: %w", err)
	}
	return o, nil
}

// SetPaymentRef implements Store.
func (s PGStore) SetPaymentRef(ctx context.Context, id uuid.UUID, ref string) error {
	if _, err := s.DB.Exec(ctx, `UPDATE orders SET payment_ref = $2, updated_at = now() WHERE id = $1`, id, ref); err != nil {
		return fmt.Errorf("set payment ref: %w", err)
	}
	return nil
}
