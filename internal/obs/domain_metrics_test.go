package obs_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/storefront-checkout/internal/obs"
)

func TestDomainMetricsHelpers(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("storefront", registry)

	obs.ObserveQuote("standard", false)
	obs.ObserveQuote("standard", true)
	obs.ObserveQuote("", false)
	obs.ObserveOrderCreated(true)

	if got := testutil.ToFloat64(obs.CheckoutQuotesTotal.WithLabelValues("standard")); got != 2 {
		t.Fatalf("expected 2 standard quotes, got %v", got)
	}
	if got := testutil.ToFloat64(obs.CheckoutQuotesTotal.WithLabelValues("none")); got != 1 {
		t.Fatalf("expected 1 quote without method, got %v", got)
	}
	if got := testutil.ToFloat64(obs.CheckoutFreeShippingTotal); got != 1 {
		t.Fatalf("expected 1 free shipping quote, got %v", got)
	}
	if got := testutil.ToFloat64(obs.OrdersCreatedTotal.WithLabelValues("applied")); got != 1 {
		t.Fatalf("expected 1 order with coupon, got %v", got)
	}
}
