// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

var draining atomic.Bool

// SetReady flips readiness. The API marks itself not ready once shutdown starts
// so load balancers stop routing before connections close.
func SetReady(ready bool) { draining.Store(!ready) }

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// Postgres pings the pool.
func Postgres(pool *pgxpool.Pool) Probe {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

// Redis pings the client.
func Redis(client *redis.Client) Probe {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

// Handler exposes the health endpoints.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration
}

// Live reports that the process is serving.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and answers 503 when any fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	results := h.run(ctx)
	status := http.StatusOK
	for _, v := range results {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}
	common.JSON(w, status, results)
}

func (h Handler) run(ctx context.Context) map[string]string {
	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(names))
	)
	for _, name := range names {
		probe := h.Probes[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := "ok"
			if err := probe(ctx); err != nil {
				out = err.Error()
			}
			mu.Lock()
			results[name] = out
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 800 * time.Millisecond
	}
	return h.Timeout
}
