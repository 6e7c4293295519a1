package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/analytics"
	"github.com/noah-isme/storefront-checkout/internal/audit"
	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/cart"
	"github.com/noah-isme/storefront-checkout/internal/checkout"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/config"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/customer"
	"github.com/noah-isme/storefront-checkout/internal/health"
	httpmw "github.com/noah-isme/storefront-checkout/internal/http/middleware"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/queue"
	"github.com/noah-isme/storefront-checkout/internal/ratelimit"
	"github.com/noah-isme/storefront-checkout/internal/security"
	"github.com/noah-isme/storefront-checkout/internal/settings"
)

type routerDeps struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Metrics  *obs.HTTPMetrics
	Registry *prometheus.Registry

	Auth         auth.Middleware
	Idem         common.Idem
	APILimit     ratelimit.Limiter
	ConfirmLimit ratelimit.Limiter
	Health       health.Handler

	Settings      *settings.Handler
	Carts         *cart.Handler
	Coupons       *coupon.Handler
	Profiles      *customer.Handler
	Checkout      *checkout.Handler
	Orders        *order.Handler
	Payments      *payment.Handler
	StripeWebhook payment.StripeWebhook
	Audit         audit.Recorder
	AuditLog      *audit.Handler
	Reports       *analytics.Handler
	Queue         *queue.AdminHandler
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config
	onLimitErr := func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter unavailable") }

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction(), HSTSMaxAge: 31536000}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.Registry != nil {
		r.Handle("/metrics", obs.MetricsHandler(d.Registry))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Use(ratelimit.Handler{Limiter: d.APILimit, Key: ratelimit.ByClientIP, Scope: "api", OnError: onLimitErr}.Middleware)

		v.Get("/settings", d.Settings.Get)

		// Stripe signs the raw body, so the webhook sits outside the JSON guard.
		v.Post("/payments/stripe/webhook", d.StripeWebhook.Handle)

		v.Group(func(authR chi.Router) {
			authR.Use(d.Auth.RequireAuth)
			authR.Use(httpmw.RequireJSON)

			authR.Route("/carts", func(c chi.Router) {
				c.Get("/{id}", d.Carts.Get)
				c.Group(func(g chi.Router) {
					g.Use(d.Idem.Middleware)
					g.Post("/", d.Carts.Create)
					g.Post("/{id}/items", d.Carts.AddItem)
					g.Patch("/{id}/items/{productId}", d.Carts.UpdateItem)
					g.Delete("/{id}/items/{productId}", d.Carts.RemoveItem)
					g.Delete("/{id}", d.Carts.Clear)
				})
			})

			authR.Get("/customers/me/shipping-address", d.Profiles.Get)
			authR.Put("/customers/me/shipping-address", d.Profiles.Put)

			authR.Route("/checkout/{cartId}", func(c chi.Router) {
				c.Get("/quote", d.Checkout.Quote)
				c.Put("/shipping", d.Checkout.SaveShipping)
				c.Post("/prefill", d.Checkout.Prefill)
				c.Post("/coupon", d.Checkout.ApplyCoupon)
				c.Delete("/coupon", d.Checkout.RemoveCoupon)
				c.With(
					ratelimit.Handler{Limiter: d.ConfirmLimit, Key: ratelimit.ByCustomer, Scope: "confirm", OnError: onLimitErr}.Middleware,
					d.Idem.Middleware,
				).Post("/confirm", d.Checkout.Confirm)
			})

			authR.Get("/orders", d.Orders.List)
			authR.Get("/orders/{id}", d.Orders.Get)
			authR.Post("/orders/{id}/cancel", d.Orders.Cancel)

			authR.With(d.Idem.Middleware).Post("/payments/{orderId}/intent", d.Payments.Intent)

			authR.Route("/admin", func(admin chi.Router) {
				admin.Use(auth.RequireRole(auth.RoleAdmin))
				settingsAudit := d.Audit.Middleware("settings", "")
				couponAudit := d.Audit.Middleware("coupons", "id")
				admin.With(settingsAudit).Put("/settings", d.Settings.Replace)
				admin.With(settingsAudit).Patch("/settings", d.Settings.Patch)
				admin.Get("/coupons", d.Coupons.List)
				admin.With(couponAudit).Post("/coupons", d.Coupons.Create)
				admin.With(couponAudit).Delete("/coupons/{id}", d.Coupons.Delete)
				admin.With(couponAudit).Delete("/coupons/{id}/usages/{customerId}", d.Coupons.RevokeUsage)
				admin.Get("/audit", d.AuditLog.List)
				admin.Get("/reports/sales", d.Reports.Sales)
				admin.Get("/reports/shipping-methods", d.Reports.ShippingMix)
				admin.Get("/queue", d.Queue.Stats)
				admin.Get("/queue/dead", d.Queue.ListDead)
				admin.With(d.Audit.Middleware("queue", "")).Post("/queue/dead/replay", d.Queue.Replay)
			})
		})
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
