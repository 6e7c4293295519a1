// Package app opens the infrastructure shared by the API, the worker and the
// operator tooling.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/config"
	"github.com/noah-isme/storefront-checkout/internal/db"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/resilience"
)

const metricsNamespace = "storefront"

// Dependencies holds the connections a process needs.
type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Tasks  *asynq.Client
	// Inspector reads queue state for the admin endpoints.
	Inspector *asynq.Inspector
	Metrics   *prometheus.Registry

	shutdownTracer func(context.Context) error
}

// Open connects Postgres and Redis, applies migrations when DB_AUTO_MIGRATE is
// set, and installs tracing and metrics. service names the process in traces
// and in the Postgres application_name.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, service string) (*Dependencies, error) {
	d, err := openBase(ctx, cfg, log, service)
	if err != nil {
		return nil, err
	}

	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			d.Close()
			return nil, err
		}
		log.Info().Msg("database migrations applied")
	}

	d.DB, err = openPool(ctx, cfg.DatabaseURL, service)
	if err != nil {
		d.Close()
		return nil, err
	}
	connOpt, err := TaskRedisOpt(cfg.RedisURL)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Tasks = asynq.NewClient(connOpt)
	d.Inspector = asynq.NewInspector(connOpt)
	return d, nil
}

// OpenWorker installs tracing and metrics and connects Redis only. Task
// handlers never touch Postgres.
func OpenWorker(ctx context.Context, cfg *config.Config, log zerolog.Logger, service string) (*Dependencies, error) {
	return openBase(ctx, cfg, log, service)
}

func openBase(ctx context.Context, cfg *config.Config, log zerolog.Logger, service string) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Log: log, Metrics: obs.NewRegistry()}
	obs.MustRegisterDomainMetrics(metricsNamespace, d.Metrics)
	resilience.RegisterMetrics(metricsNamespace, d.Metrics)

	shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       cfg.OTELEnabled,
		ServiceName:   service,
		Endpoint:      cfg.OTELEndpoint,
		SamplingRatio: cfg.OTELSampleRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		log.Error().Err(err).Msg("initialise tracing")
		shutdown = func(context.Context) error { return nil }
	}
	d.shutdownTracer = shutdown

	d.Redis, err = openRedis(ctx, cfg.RedisURL)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Close releases every connection opened by Open.
func (d *Dependencies) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if d.Inspector != nil {
		if err := d.Inspector.Close(); err != nil {
			d.Log.Error().Err(err).Msg("close queue inspector")
		}
	}
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil {
			d.Log.Error().Err(err).Msg("close task client")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Log.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.shutdownTracer != nil {
		if err := d.shutdownTracer(ctx); err != nil {
			d.Log.Error().Err(err).Msg("shutdown tracer")
		}
	}
}

// EventBus wires the domain event bus: Postgres persistence, asynq delivery
// when a webhook is configured, and a log line per event.
func (d *Dependencies) EventBus() *events.Bus {
	bus := &events.Bus{
		Store:     events.PGStore{DB: d.DB},
		Notifiers: []events.Notifier{events.LogNotifier{Log: obs.Component(d.Log, "events")}},
	}
	if d.Config.WebhookURL != "" {
		bus.Scheduler = events.AsynqScheduler{
			Client:   d.Tasks,
			Queue:    d.Config.WorkerQueue,
			MaxRetry: d.Config.WebhookMaxRetry,
			Timeout:  time.Duration(2*max(d.Config.WebhookAttempts, 1)) * d.Config.WebhookRequestTimeout,
			Topics:   events.DefaultTopics(),
		}
	}
	return bus
}

// TaskRedisOpt converts REDIS_URL into asynq connection options.
func TaskRedisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	return opt, nil
}

func openPool(ctx context.Context, databaseURL, service string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = service

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(errors.New("ping redis"), err)
	}
	return client, nil
}
