// Package payment opens payment intents for pending orders and settles them
// from provider webhooks.
package payment

import "context"

// IntentRequest captures the information required to open a payment intent with a provider.
type IntentRequest struct {
	OrderID    string
	CustomerID string
	// Amount is expressed in minor units.
	Amount   int64
	Currency string
}

// IntentResponse represents the minimal information returned by a provider when creating an intent.
type IntentResponse struct {
	Provider     string `json:"provider"`
	IntentID     string `json:"intentId"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Provider abstracts the operations required from an upstream payment provider.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
}
