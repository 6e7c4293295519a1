package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeConfig configures the StripeProvider.
type StripeConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// Intents replaces the Stripe client, mainly in tests.
	Intents stripePaymentIntentAPI
}

// StripeProvider implements Provider with Stripe PaymentIntents.
type StripeProvider struct {
	intents stripePaymentIntentAPI
}

// NewStripeProvider constructs a Stripe provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.Intents != nil {
		return &StripeProvider{intents: cfg.Intents}, nil
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("stripe: api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		backendCfg.URL = stripe.String(base)
	}
	sc := client.New(apiKey, stripe.NewBackendsWithConfig(backendCfg))
	return &StripeProvider{intents: sc.PaymentIntents}, nil
}

// Name implements Provider.
func (p *StripeProvider) Name() string { return "stripe" }

// CreateIntent implements Provider. The order id doubles as the idempotency
// key so retries never open a second intent for the same order.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error) {
	if p == nil || p.intents == nil {
		return IntentResponse{}, errors.New("stripe: provider is not configured")
	}
	if req.Amount <= 0 {
		return IntentResponse{}, errors.New("stripe: amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("order-" + req.OrderID)
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("customer_id", req.CustomerID)

	pi, err := p.intents.New(params)
	if err != nil {
		return IntentResponse{}, err
	}
	return IntentResponse{
		Provider:     p.Name(),
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}
