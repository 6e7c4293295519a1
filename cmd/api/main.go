package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/storefront-checkout/internal/analytics"
	"github.com/noah-isme/storefront-checkout/internal/app"
	"github.com/noah-isme/storefront-checkout/internal/audit"
	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/cache"
	"github.com/noah-isme/storefront-checkout/internal/cart"
	"github.com/noah-isme/storefront-checkout/internal/checkout"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/config"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/customer"
	"github.com/noah-isme/storefront-checkout/internal/health"
	"github.com/noah-isme/storefront-checkout/internal/lock"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/queue"
	"github.com/noah-isme/storefront-checkout/internal/ratelimit"
	"github.com/noah-isme/storefront-checkout/internal/settings"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger, "storefront-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth")
	}

	rdb := deps.Redis
	locker := lock.Locker{R: rdb, RetryBackoff: 25 * time.Millisecond}
	bus := deps.EventBus()

	settingsSvc := &settings.Service{
		Store:  settings.PGStore{DB: deps.DB},
		Cache:  cache.NewJSON(rdb, "settings:", cfg.SettingsCacheTTL),
		Lock:   locker,
		Events: bus,
		Log:    obs.Component(logger, "settings"),
	}
	cartSvc := &cart.Service{
		Store:   cache.NewJSON(rdb, "cart:", cfg.CartTTL),
		Lock:    locker,
		LockTTL: cfg.LockTTL,
	}
	couponSvc := &coupon.Service{Store: coupon.PGStore{DB: deps.DB}}
	customerSvc := &customer.Service{Store: customer.PGStore{DB: deps.DB}}
	orderStore := order.PGStore{DB: deps.DB}
	orderSvc := &order.Service{Store: orderStore, Events: bus, Log: obs.Component(logger, "order")}
	checkoutSvc := &checkout.Service{
		Carts:    cartSvc,
		Settings: settingsSvc,
		Coupons:  couponSvc,
		Profiles: customerSvc,
		Orders:   orderStore,
		State:    checkout.StateStore{Cache: cache.NewJSON(rdb, "checkout:", cfg.CheckoutStateTTL)},
		DB:       deps.DB,
		Lock:     locker,
		Events:   bus,
		Currency: cfg.CurrencyCode,
		Log:      obs.Component(logger, "checkout"),
	}

	var provider payment.Provider
	if cfg.StripeEnabled() {
		stripeProvider, err := payment.NewStripeProvider(payment.StripeConfig{
			APIKey:  cfg.StripeSecretKey,
			BaseURL: cfg.StripeBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise stripe")
		}
		provider = stripeProvider
	} else {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, card payments disabled")
	}
	paymentSvc := &payment.Service{
		Orders:   orderSvc,
		Settings: settingsSvc,
		Provider: provider,
		Log:      obs.Component(logger, "payment"),
	}

	auditSvc := &audit.Service{Store: audit.PGStore{DB: deps.DB}, Log: obs.Component(logger, "audit")}

	limiterStore, err := ratelimit.NewRedisStore(rdb, "ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}

	handler := newRouter(routerDeps{
		Config:   cfg,
		Logger:   logger,
		Metrics:  obs.NewHTTPMetrics("storefront", deps.Metrics),
		Registry: deps.Metrics,
		Auth:     auth.Middleware{Verifier: verifier, AccessCookie: "access_token"},
		Idem:     common.Idem{R: rdb, TTL: cfg.IdempotencyTTL},
		APILimit: ratelimit.NewFixedWindow(limiterStore, cfg.RateLimitWindow, cfg.RateLimitMax),
		ConfirmLimit: ratelimit.SlidingWindow{
			Client: rdb,
			Prefix: "ratelimit:confirm:",
			Window: time.Minute,
			Max:    10,
		},
		Health: health.Handler{Probes: map[string]health.Probe{
			"db":    health.Postgres(deps.DB),
			"redis": health.Redis(rdb),
		}},
		Settings: &settings.Handler{Svc: settingsSvc},
		Carts:    &cart.Handler{Svc: cartSvc},
		Coupons:  &coupon.Handler{Svc: couponSvc},
		Profiles: &customer.Handler{Svc: customerSvc},
		Checkout: &checkout.Handler{Svc: checkoutSvc},
		Orders:   &order.Handler{Svc: orderSvc},
		Payments: &payment.Handler{Svc: paymentSvc},
		StripeWebhook: payment.StripeWebhook{
			Secret:    cfg.StripeWebhookSecret,
			Orders:    orderSvc,
			Replay:    rdb,
			ReplayTTL: 24 * time.Hour,
			Log:       obs.Component(logger, "stripe-webhook"),
		},
		Audit:    audit.Recorder{Service: auditSvc},
		AuditLog: &audit.Handler{Svc: auditSvc},
		Reports: &analytics.Handler{Svc: &analytics.Service{
			Q:            analytics.PGQuerier{DB: deps.DB},
			Cache:        cache.NewJSON(rdb, "report:", 5*time.Minute),
			DefaultRange: 30,
			Log:          obs.Component(logger, "analytics"),
		}},
		Queue: &queue.AdminHandler{Inspector: deps.Inspector, Queue: cfg.WorkerQueue, Logger: obs.Component(logger, "queue")},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}
