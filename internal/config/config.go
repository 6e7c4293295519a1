package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	LogLevel           string
	LogFormat          string
	DBAutoMigrate      bool
	CORSAllowedOrigins []string

	CartTTL          time.Duration
	CheckoutStateTTL time.Duration
	SettingsCacheTTL time.Duration
	IdempotencyTTL   time.Duration
	LockTTL          time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int64
	BodyLimitBytes  int64

	CurrencyCode    string
	StripeSecretKey string
	StripeBaseURL   string
	// StripeWebhookSecret verifies Stripe-Signature headers on /payments/stripe/webhook.
	StripeWebhookSecret string

	WebhookURL            string
	WebhookSecret         string
	WebhookRequestTimeout time.Duration
	WebhookMaxRetry       int
	// WebhookAttempts bounds in-process retries of one delivery before asynq
	// reschedules the task.
	WebhookAttempts       int
	WebhookBreakerMinReq  int
	WebhookBreakerRatio   float64
	WebhookBreakerOpenFor time.Duration
	WebhookReplayTTL      time.Duration

	WorkerConcurrency int
	WorkerQueue       string
	WorkerMetricsAddr string

	OTELEnabled     bool
	OTELEndpoint    string
	OTELSampleRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CartTTL:          parseDuration(k.String("CART_TTL"), "168h"),
		CheckoutStateTTL: parseDuration(k.String("CHECKOUT_STATE_TTL"), "24h"),
		SettingsCacheTTL: parseDuration(k.String("SETTINGS_CACHE_TTL"), "5m"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "5s"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    int64(parseInt(k.String("RATE_LIMIT_MAX"), 120)),
		BodyLimitBytes:  int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),

		CurrencyCode:    strings.ToLower(valueOrDefault(k.String("CURRENCY_CODE"), "mad")),
		StripeSecretKey: strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripeBaseURL:   strings.TrimSpace(k.String("STRIPE_BASE_URL")),

		StripeWebhookSecret: strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),

		WebhookURL:            strings.TrimSpace(k.String("WEBHOOK_URL")),
		WebhookSecret:         k.String("WEBHOOK_SECRET"),
		WebhookRequestTimeout: parseDuration(k.String("WEBHOOK_REQUEST_TIMEOUT"), "5s"),
		WebhookMaxRetry:       parseInt(k.String("WEBHOOK_MAX_RETRY"), 8),
		WebhookAttempts:       parseInt(k.String("WEBHOOK_ATTEMPTS"), 3),
		WebhookBreakerMinReq:  parseInt(k.String("WEBHOOK_BREAKER_MIN_REQUESTS"), 5),
		WebhookBreakerRatio:   parseFloat(k.String("WEBHOOK_BREAKER_FAILURE_RATIO"), 0.5),
		WebhookBreakerOpenFor: parseDuration(k.String("WEBHOOK_BREAKER_OPEN_FOR"), "30s"),
		WebhookReplayTTL:      parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		WorkerQueue:       valueOrDefault(k.String("WORKER_QUEUE"), "webhooks"),
		WorkerMetricsAddr: strings.TrimSpace(valueOrDefault(k.String("WORKER_METRICS_ADDR"), ":9091")),

		OTELEnabled:     parseBool(k.String("OTEL_ENABLED")),
		OTELEndpoint:    strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRatio: parseFloat(k.String("OTEL_SAMPLE_RATIO"), 1),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.WebhookURL != "" && cfg.WebhookSecret == "" {
		return nil, errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// StripeEnabled reports whether card payments can be created.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
