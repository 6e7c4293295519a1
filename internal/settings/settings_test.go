package settings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

func TestDefaultsMatchCalculatorFallbacks(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	require.Equal(t, pricing.DefaultShippingConfig(), d.Shipping())
	require.Equal(t, pricing.VatConfig{IsActive: true, Percentage: 20}, d.Vat())
	require.True(t, d.PaymentMethods.StripeActive)
}

func TestValidateRanges(t *testing.T) {
	s := Defaults()
	s.VatConfig.Percentage = 120
	s.ShippingConfig.ExpressShippingCost = -1
	err := s.Validate()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, map[string]string{
		"VatConfig.Percentage":               "lte",
		"ShippingConfig.ExpressShippingCost": "gte",
	}, appErr.Details)
}

func TestPathsGetSet(t *testing.T) {
	require.Len(t, Paths(), 12)
	require.Contains(t, Paths(), "shipping_config.free_shipping_threshold")

	s := Defaults()
	require.NoError(t, s.Set("shipping_config.free_shipping_threshold", "1500"))
	require.NoError(t, s.Set("shipping_config.free_shipping_enabled", "true"))
	require.NoError(t, s.Set("payment_methods.stripe_active", "false"))
	require.Equal(t, 1500.0, s.ShippingConfig.FreeShippingThreshold)
	require.True(t, s.ShippingConfig.FreeShippingEnabled)
	require.False(t, s.PaymentMethods.StripeActive)

	v, err := s.Get("shipping_config.free_shipping_threshold")
	require.NoError(t, err)
	require.Equal(t, "1500", v)

	require.ErrorIs(t, s.Set("shipping_config.drone_cost", "1"), ErrUnknownPath)
	_, err = s.Get("theme.primary_color")
	require.ErrorIs(t, err, ErrUnknownPath)
	require.ErrorIs(t, s.Set("vat_config.percentage", "twenty"), ErrInvalidValue)
	require.ErrorIs(t, s.Set("vat_config.isActive", "maybe"), ErrInvalidValue)
}

func TestNonFiniteNumbersRejected(t *testing.T) {
	s := Defaults()
	for _, raw := range []string{"Inf", "+Inf", "-inf", "NaN"} {
		require.ErrorIs(t, s.Set("shipping_config.free_shipping_threshold", raw), ErrInvalidValue, raw)
	}
	require.Equal(t, Defaults().ShippingConfig.FreeShippingThreshold, s.ShippingConfig.FreeShippingThreshold)

	s.ShippingConfig.ExpressShippingCost = math.Inf(1)
	var appErr *common.AppError
	require.ErrorAs(t, s.Validate(), &appErr)
	require.Equal(t, map[string]string{"ShippingConfig.ExpressShippingCost": "finite"}, appErr.Details)

	_, err := ImportYAML([]byte("shipping_config:\n  overnight_shipping_cost: .inf\n"))
	require.ErrorAs(t, err, &appErr)
}

func TestEveryPathRoundTrips(t *testing.T) {
	s := Defaults()
	for _, p := range Paths() {
		v, err := s.Get(p)
		require.NoError(t, err, p)
		require.NoError(t, s.Set(p, v), p)
	}
	require.Equal(t, Defaults(), s)
}

func TestApplyIsDeterministic(t *testing.T) {
	s := Defaults()
	err := s.Apply(map[string]string{
		"vat_config.percentage": "bad",
		"a.unknown":             "1",
	})
	require.ErrorIs(t, err, ErrUnknownPath)
}

func TestYAMLRoundTrip(t *testing.T) {
	s := Defaults()
	s.ShippingConfig.FreeShippingEnabled = true
	s.ShippingConfig.FreeShippingThreshold = 1500
	data, err := ExportYAML(s)
	require.NoError(t, err)
	require.Contains(t, string(data), "free_shipping_threshold: 1500")

	back, err := ImportYAML(data)
	require.NoError(t, err)
	require.Equal(t, s, back)

	partial, err := ImportYAML([]byte("vat_config:\n  percentage: 10\n"))
	require.NoError(t, err)
	require.Equal(t, 10.0, partial.VatConfig.Percentage)
	require.True(t, partial.VatConfig.IsActive)
	require.Equal(t, 30.0, partial.ShippingConfig.DefaultShippingCost)

	_, err = ImportYAML([]byte("vat_config:\n  percentage: 150\n"))
	require.Error(t, err)
	_, err = ImportYAML([]byte("theme:\n  color: red\n"))
	require.Error(t, err)
}
