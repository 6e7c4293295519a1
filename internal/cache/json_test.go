package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/cache"
)

type payload struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewJSON(client, "test:", time.Minute)
	ctx := context.Background()

	var got payload
	ok, err := c.Get(ctx, "a", &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", payload{Name: "mug", Price: 12.5}))
	require.True(t, mr.Exists("test:a"))

	ok, err = c.Get(ctx, "a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload{Name: "mug", Price: 12.5}, got)

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, "a", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJSONNilClient(t *testing.T) {
	c := cache.NewJSON(nil, "x:", time.Minute)
	ok, err := c.Get(context.Background(), "a", &payload{})
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Set(context.Background(), "a", payload{}))
	require.NoError(t, c.Delete(context.Background(), "a"))
}
