package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutQuotesTotal counts priced checkout quotes by shipping method.
	CheckoutQuotesTotal *prometheus.CounterVec
	// CheckoutFreeShippingTotal counts quotes where the free shipping override applied.
	CheckoutFreeShippingTotal prometheus.Counter
	// OrdersCreatedTotal counts confirmed orders by whether a coupon was redeemed.
	OrdersCreatedTotal *prometheus.CounterVec
	// PaymentIntentTotal counts payment intent creation attempts.
	PaymentIntentTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal tracks outbound event webhook outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookAttemptLatency records delivery attempt latency in milliseconds.
	WebhookAttemptLatency *prometheus.HistogramVec
	// RateLimitedTotal counts requests rejected by a rate limiter, by scope.
	RateLimitedTotal *prometheus.CounterVec
	// DBQueryDuration records Postgres query latency.
	DBQueryDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
			return register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			}, labels))
		}
		CheckoutQuotesTotal = counterVec("checkout_quotes_total", "Count of checkout quotes by shipping method.", "method")
		CheckoutFreeShippingTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_free_shipping_total",
			Help:      "Count of checkout quotes priced with free shipping.",
		}))
		OrdersCreatedTotal = counterVec("orders_created_total", "Count of confirmed orders.", "coupon")
		PaymentIntentTotal = counterVec("payment_intent_total", "Count of payment intent processing outcomes.", "provider", "result")
		PaymentWebhookTotal = counterVec("payment_webhook_total", "Count of processed payment webhooks by outcome.", "provider", "result")
		WebhookDeliveriesTotal = counterVec("webhook_deliveries_total", "Count of webhook delivery outcomes.", "result")
		WebhookAttemptLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_attempt_duration_ms",
			Help:      "Latency for webhook delivery attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"}))
		RateLimitedTotal = counterVec("rate_limited_total", "Count of requests rejected by rate limiting.", "scope")
		DBQueryDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_ms",
			Help:      "Postgres query latency in milliseconds, by statement verb.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"operation"}))
	})
}

// ObserveQuote records a priced checkout quote.
func ObserveQuote(method string, freeShipping bool) {
	if CheckoutQuotesTotal != nil {
		if method == "" {
			method = "none"
		}
		CheckoutQuotesTotal.WithLabelValues(method).Inc()
	}
	if freeShipping && CheckoutFreeShippingTotal != nil {
		CheckoutFreeShippingTotal.Inc()
	}
}

// ObserveOrderCreated records a confirmed order.
func ObserveOrderCreated(withCoupon bool) {
	if OrdersCreatedTotal == nil {
		return
	}
	label := "none"
	if withCoupon {
		label = "applied"
	}
	OrdersCreatedTotal.WithLabelValues(label).Inc()
}
