// Package settings holds the store-wide configuration that drives checkout
// pricing: shipping method costs and toggles, the free shipping threshold, VAT
// and the payment methods offered to customers.
package settings

import (
	"time"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// ShippingConfig mirrors the shipping_config object of the store settings.
type ShippingConfig struct {
	StandardShippingEnabled  bool    `json:"standard_shipping_enabled" yaml:"standard_shipping_enabled"`
	ExpressShippingEnabled   bool    `json:"express_shipping_enabled" yaml:"express_shipping_enabled"`
	OvernightShippingEnabled bool    `json:"overnight_shipping_enabled" yaml:"overnight_shipping_enabled"`
	FreeShippingEnabled      bool    `json:"free_shipping_enabled" yaml:"free_shipping_enabled"`
	FreeShippingThreshold    float64 `json:"free_shipping_threshold" yaml:"free_shipping_threshold" validate:"finite,gte=0"`
	DefaultShippingCost      float64 `json:"default_shipping_cost" yaml:"default_shipping_cost" validate:"finite,gte=0"`
	ExpressShippingCost      float64 `json:"express_shipping_cost" yaml:"express_shipping_cost" validate:"finite,gte=0"`
	OvernightShippingCost    float64 `json:"overnight_shipping_cost" yaml:"overnight_shipping_cost" validate:"finite,gte=0"`
}

// VatConfig mirrors the vat_config object.
type VatConfig struct {
	IsActive   bool    `json:"isActive" yaml:"isActive"`
	Percentage float64 `json:"percentage" yaml:"percentage" validate:"finite,gte=0,lte=100"`
}

// PaymentMethods toggles the payment providers shown at checkout.
type PaymentMethods struct {
	PaypalActive bool `json:"paypal_active" yaml:"paypal_active"`
	StripeActive bool `json:"stripe_active" yaml:"stripe_active"`
}

// Settings is the singleton store configuration document.
type Settings struct {
	ShippingConfig ShippingConfig `json:"shipping_config" yaml:"shipping_config"`
	VatConfig      VatConfig      `json:"vat_config" yaml:"vat_config"`
	PaymentMethods PaymentMethods `json:"payment_methods" yaml:"payment_methods"`
	UpdatedAt      time.Time      `json:"updatedAt" yaml:"-"`
}

// Defaults returns the settings used until an administrator saves their own.
func Defaults() Settings {
	return Settings{
		ShippingConfig: ShippingConfig{
			StandardShippingEnabled:  true,
			ExpressShippingEnabled:   true,
			OvernightShippingEnabled: true,
			FreeShippingEnabled:      false,
			FreeShippingThreshold:    0,
			DefaultShippingCost:      30,
			ExpressShippingCost:      45,
			OvernightShippingCost:    65,
		},
		VatConfig:      VatConfig{IsActive: true, Percentage: 20},
		PaymentMethods: PaymentMethods{PaypalActive: true, StripeActive: true},
	}
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	return common.ValidateStruct(s)
}

// Shipping converts the shipping section into the calculator's view.
func (s Settings) Shipping() pricing.ShippingConfig {
	c := s.ShippingConfig
	return pricing.ShippingConfig{
		FreeShippingEnabled:   c.FreeShippingEnabled,
		FreeShippingThreshold: c.FreeShippingThreshold,
		Costs: pricing.MethodCosts{
			Standard:  c.DefaultShippingCost,
			Express:   c.ExpressShippingCost,
			Overnight: c.OvernightShippingCost,
		},
		Enabled: pricing.MethodToggles{
			Standard:  c.StandardShippingEnabled,
			Express:   c.ExpressShippingEnabled,
			Overnight: c.OvernightShippingEnabled,
		},
	}
}

// Vat converts the VAT section into the calculator's view.
func (s Settings) Vat() pricing.VatConfig {
	return pricing.VatConfig{IsActive: s.VatConfig.IsActive, Percentage: s.VatConfig.Percentage}
}

// Pricing returns both calculator views at once.
func (s Settings) Pricing() (pricing.ShippingConfig, pricing.VatConfig) {
	return s.Shipping(), s.Vat()
}
