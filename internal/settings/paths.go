package settings

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownPath is returned when a dotted settings path has no setter.
var ErrUnknownPath = errors.New("settings: unknown path")

// ErrInvalidValue is returned when a raw value cannot be parsed for its path.
var ErrInvalidValue = errors.New("settings: invalid value")

type field struct {
	get func(*Settings) string
	set func(*Settings, string) error
}

func boolField(ptr func(*Settings) *bool) field {
	return field{
		get: func(s *Settings) string { return strconv.FormatBool(*ptr(s)) },
		set: func(s *Settings, raw string) error {
			v, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, raw)
			}
			*ptr(s) = v
			return nil
		},
	}
}

func numberField(ptr func(*Settings) *float64) field {
	return field{
		get: func(s *Settings) string { return strconv.FormatFloat(*ptr(s), 'f', -1, 64) },
		set: func(s *Settings, raw string) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %q is not a finite number", ErrInvalidValue, raw)
			}
			*ptr(s) = v
			return nil
		},
	}
}

var fields = map[string]field{
	"shipping_config.standard_shipping_enabled":  boolField(func(s *Settings) *bool { return &s.ShippingConfig.StandardShippingEnabled }),
	"shipping_config.express_shipping_enabled":   boolField(func(s *Settings) *bool { return &s.ShippingConfig.ExpressShippingEnabled }),
	"shipping_config.overnight_shipping_enabled": boolField(func(s *Settings) *bool { return &s.ShippingConfig.OvernightShippingEnabled }),
	"shipping_config.free_shipping_enabled":      boolField(func(s *Settings) *bool { return &s.ShippingConfig.FreeShippingEnabled }),
	"shipping_config.free_shipping_threshold":    numberField(func(s *Settings) *float64 { return &s.ShippingConfig.FreeShippingThreshold }),
	"shipping_config.default_shipping_cost":      numberField(func(s *Settings) *float64 { return &s.ShippingConfig.DefaultShippingCost }),
	"shipping_config.express_shipping_cost":      numberField(func(s *Settings) *float64 { return &s.ShippingConfig.ExpressShippingCost }),
	"shipping_config.overnight_shipping_cost":    numberField(func(s *Settings) *float64 { return &s.ShippingConfig.OvernightShippingCost }),
	"vat_config.isActive":                        boolField(func(s *Settings) *bool { return &s.VatConfig.IsActive }),
	"vat_config.percentage":                      numberField(func(s *Settings) *float64 { return &s.VatConfig.Percentage }),
	"payment_methods.paypal_active":              boolField(func(s *Settings) *bool { return &s.PaymentMethods.PaypalActive }),
	"payment_methods.stripe_active":              boolField(func(s *Settings) *bool { return &s.PaymentMethods.StripeActive }),
}

// Paths lists every settable leaf path in sorted order.
func Paths() []string {
	out := make([]string, 0, len(fields))
	for p := range fields {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Get renders the value stored at path.
func (s *Settings) Get(path string) (string, error) {
	f, ok := fields[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	return f.get(s), nil
}

// Set parses raw and stores it at path. The settings are not validated; call
// Validate once every change is applied.
func (s *Settings) Set(path, raw string) error {
	f, ok := fields[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	return f.set(s, raw)
}

// Apply sets every path in changes, stopping at the first failure. Paths are
// applied in sorted order so the reported failure is deterministic.
func (s *Settings) Apply(changes map[string]string) error {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.Set(k, changes[k]); err != nil {
			return err
		}
	}
	return nil
}
