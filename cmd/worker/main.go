package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/app"
	"github.com/noah-isme/storefront-checkout/internal/config"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/health"
	"github.com/noah-isme/storefront-checkout/internal/notify"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/queue"
	"github.com/noah-isme/storefront-checkout/internal/resilience"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.Component(obs.NewLogger(cfg.LogFormat, cfg.LogLevel), "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.OpenWorker(ctx, cfg, logger, "storefront-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()

	if cfg.WebhookURL == "" {
		logger.Warn().Msg("WEBHOOK_URL not set; queued deliveries will fail until it is configured")
	}

	connOpt, err := app.TaskRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("task redis options")
	}

	inspector := asynq.NewInspector(connOpt)
	defer func() { _ = inspector.Close() }()
	deps.Metrics.MustRegister(queue.NewDepthCollector("storefront", inspector, logger, cfg.WorkerQueue))

	sender := &notify.Sender{
		URL:    cfg.WebhookURL,
		Secret: cfg.WebhookSecret,
		HTTP: resilience.HTTPClient{
			Client: notify.NewHTTPClient(cfg.WebhookRequestTimeout),
			Breaker: resilience.NewBreaker(cfg.WebhookBreakerMinReq, cfg.WebhookBreakerRatio, cfg.WebhookBreakerOpenFor).
				WithTarget("webhook").
				WithLogger(logger),
			Target:      "webhook-delivery",
			MaxAttempts: cfg.WebhookAttempts,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     cfg.WebhookRequestTimeout,
			// Longer waits are left to the asynq retry schedule.
			MaxRetryAfter: cfg.WebhookRequestTimeout,
		},
		Replay:    notify.RedisReplayProtector{Client: deps.Redis},
		ReplayTTL: cfg.WebhookReplayTTL,
	}

	mux := asynq.NewServeMux()
	mux.Handle(events.TaskDeliver, notify.TaskHandler{Sender: sender, Log: obs.Component(logger, "notify")})

	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{cfg.WorkerQueue: 1},
		Logger:      taskLogger{log: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error().Err(err).
				Str("task", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("task failed")
		}),
		ShutdownTimeout: time.Duration(2*max(cfg.WebhookAttempts, 1)) * cfg.WebhookRequestTimeout,
	})

	opsSrv := serveOps(cfg.WorkerMetricsAddr, deps, logger)

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	health.SetReady(true)
	logger.Info().Str("queue", cfg.WorkerQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("worker shutting down")
	srv.Shutdown()

	if opsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("ops server shutdown")
		}
	}
	logger.Info().Msg("worker shutdown complete")
}

// serveOps exposes metrics and probes for the worker on addr.
func serveOps(addr string, deps *app.Dependencies, logger zerolog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	probes := health.Handler{
		Probes:  map[string]health.Probe{"redis": health.Redis(deps.Redis)},
		Timeout: 2 * time.Second,
	}
	r := chi.NewRouter()
	r.Handle("/metrics", obs.MetricsHandler(deps.Metrics))
	r.Get("/health/live", probes.Live)
	r.Get("/health/ready", probes.Ready)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("ops server")
		}
	}()
	return srv
}
