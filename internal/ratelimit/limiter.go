// Package ratelimit throttles requests per key with Redis-backed counters.
package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision reports the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter decides whether a request for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// NewRedisStore returns a ulule limiter store sharing the application's Redis client.
func NewRedisStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
}

// FixedWindow adapts a ulule limiter to Limiter.
type FixedWindow struct {
	Limiter *limiter.Limiter
}

// NewFixedWindow allows max requests per window on store.
func NewFixedWindow(store limiter.Store, window time.Duration, max int64) FixedWindow {
	return FixedWindow{Limiter: limiter.New(store, limiter.Rate{Period: window, Limit: max})}
}

// Allow implements Limiter.
func (f FixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	lctx, err := f.Limiter.Get(ctx, key)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     int(lctx.Limit),
		Remaining: int(lctx.Remaining),
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}
