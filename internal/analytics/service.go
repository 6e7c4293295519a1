// Package analytics aggregates confirmed orders into sales reports for
// administrators.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/cache"
	"github.com/noah-isme/storefront-checkout/internal/db"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// ErrInvalidRange is returned when from is not before to.
var ErrInvalidRange = errors.New("analytics: from must be before to")

// DailySales sums the orders created on one UTC day. Canceled orders are
// counted in AllOrders only.
type DailySales struct {
	Day        time.Time `json:"day"`
	AllOrders  int       `json:"allOrders"`
	PaidOrders int       `json:"paidOrders"`
	Revenue    float64   `json:"revenue"`
	Discounts  float64   `json:"discounts"`
	Shipping   float64   `json:"shipping"`
	Tax        float64   `json:"tax"`
}

// MethodShare counts non-canceled orders per shipping method.
type MethodShare struct {
	Method       string  `json:"method"`
	Orders       int     `json:"orders"`
	ShippingPaid float64 `json:"shippingPaid"`
}

// Querier reads the aggregates.
type Querier interface {
	SalesByDay(ctx context.Context, from, to time.Time) ([]DailySales, error)
	ShippingMethods(ctx context.Context, from, to time.Time) ([]MethodShare, error)
}

// PGQuerier implements Querier over the orders table.
type PGQuerier struct {
	DB db.DBTX
}

const salesByDaySQL = `SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
       count(*),
       count(*) FILTER (WHERE status = 'PAID'),
       coalesce(sum(grand_total) FILTER (WHERE status <> 'CANCELED'), 0),
       coalesce(sum(discount) FILTER (WHERE status <> 'CANCELED'), 0),
       coalesce(sum(shipping_cost) FILTER (WHERE status <> 'CANCELED'), 0),
       coalesce(sum(tax_amount) FILTER (WHERE status <> 'CANCELED'), 0)
FROM orders
WHERE created_at >= $1 AND created_at < $2
GROUP BY day
ORDER BY day`

const shippingMethodsSQL = `SELECT shipping_method, count(*), coalesce(sum(shipping_cost), 0)
FROM orders
WHERE created_at >= $1 AND created_at < $2 AND status <> 'CANCELED'
GROUP BY shipping_method
ORDER BY count(*) DESC, shipping_method`

// SalesByDay implements Querier.
func (q PGQuerier) SalesByDay(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows, err := q.DB.Query(ctx, salesByDaySQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily sales: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DailySales, error) {
		var d DailySales
		err := row.Scan(&d.Day, &d.AllOrders, &d.PaidOrders, &d.Revenue, &d.Discounts, &d.Shipping, &d.Tax)
		d.Day = d.Day.UTC()
		return d, err
	})
}

// ShippingMethods implements Querier.
func (q PGQuerier) ShippingMethods(ctx context.Context, from, to time.Time) ([]MethodShare, error) {
	rows, err := q.DB.Query(ctx, shippingMethodsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("query shipping methods: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MethodShare, error) {
		var m MethodShare
		err := row.Scan(&m.Method, &m.Orders, &m.ShippingPaid)
		return m, err
	})
}

// Service caches report queries in Redis.
type Service struct {
	Q            Querier
	Cache        *cache.JSON
	DefaultRange int
	Log          zerolog.Logger
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// SalesRange returns daily totals for [from, to). Amounts are rounded to
// two decimals.
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	var out []DailySales
	key := cacheKey("sales", from, to)
	if s.cached(ctx, key, &out) {
		return out, nil
	}
	out, err := s.Q.SalesByDay(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Revenue = pricing.Round2(out[i].Revenue)
		out[i].Discounts = pricing.Round2(out[i].Discounts)
		out[i].Shipping = pricing.Round2(out[i].Shipping)
		out[i].Tax = pricing.Round2(out[i].Tax)
	}
	s.store(ctx, key, out)
	return out, nil
}

// ShippingMix returns how orders in [from, to) split across shipping methods.
func (s *Service) ShippingMix(ctx context.Context, from, to time.Time) ([]MethodShare, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	var out []MethodShare
	key := cacheKey("shipping", from, to)
	if s.cached(ctx, key, &out) {
		return out, nil
	}
	out, err := s.Q.ShippingMethods(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ShippingPaid = pricing.Round2(out[i].ShippingPaid)
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	hit, err := s.Cache.Get(ctx, key, dst)
	if err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("report cache read failed")
		return false
	}
	return hit
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if err := s.Cache.Set(ctx, key, v); err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
}

func cacheKey(report string, from, to time.Time) string {
	return report + ":" + from.UTC().Format(time.RFC3339) + ":" + to.UTC().Format(time.RFC3339)
}
