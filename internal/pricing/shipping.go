package pricing

// Method identifies a shipping method offered at checkout.
type Method string

const (
	MethodStandard  Method = "standard"
	MethodExpress   Method = "express"
	MethodOvernight Method = "overnight"
)

// Methods lists shipping methods in priority order.
var Methods = []Method{MethodStandard, MethodExpress, MethodOvernight}

// Valid reports whether m is one of the known shipping methods.
func (m Method) Valid() bool {
	switch m {
	case MethodStandard, MethodExpress, MethodOvernight:
		return true
	default:
		return false
	}
}

// MethodCosts holds the flat cost configured for each method.
type MethodCosts struct {
	Standard  float64
	Express   float64
	Overnight float64
}

// MethodToggles holds the enabled flag configured for each method.
type MethodToggles struct {
	Standard  bool
	Express   bool
	Overnight bool
}

// ShippingConfig is the shipping part of the store settings as seen by the calculator.
type ShippingConfig struct {
	FreeShippingEnabled   bool
	FreeShippingThreshold float64
	Costs                 MethodCosts
	Enabled               MethodToggles
}

// DefaultShippingConfig returns the fallbacks used while store settings are unavailable.
func DefaultShippingConfig() ShippingConfig {
	return ShippingConfig{
		FreeShippingEnabled:   false,
		FreeShippingThreshold: 0,
		Costs:                 MethodCosts{Standard: 30, Express: 45, Overnight: 65},
		Enabled:               MethodToggles{Standard: true, Express: true, Overnight: true},
	}
}

// Cost returns the configured cost of m; unknown methods cost nothing.
func (c ShippingConfig) Cost(m Method) float64 {
	switch m {
	case MethodStandard:
		return c.Costs.Standard
	case MethodExpress:
		return c.Costs.Express
	case MethodOvernight:
		return c.Costs.Overnight
	default:
		return 0
	}
}

// IsEnabled reports whether m is switched on in the store settings.
func (c ShippingConfig) IsEnabled(m Method) bool {
	switch m {
	case MethodStandard:
		return c.Enabled.Standard
	case MethodExpress:
		return c.Enabled.Express
	case MethodOvernight:
		return c.Enabled.Overnight
	default:
		return false
	}
}

// FreeShippingActive reports whether the free shipping override applies to itemsTotal.
func FreeShippingActive(itemsTotal float64, cfg ShippingConfig) bool {
	return cfg.FreeShippingEnabled && itemsTotal >= cfg.FreeShippingThreshold
}

// ShippingCost selects the shipping cost for the chosen method. The free
// shipping override wins over any method.
func ShippingCost(itemsTotal float64, method Method, cfg ShippingConfig) float64 {
	if FreeShippingActive(itemsTotal, cfg) {
		return 0
	}
	return cfg.Cost(method)
}

// InitialMethod returns the first enabled method, or "" when none is enabled.
func InitialMethod(cfg ShippingConfig) Method {
	for _, m := range Methods {
		if cfg.IsEnabled(m) {
			return m
		}
	}
	return ""
}

// MethodOption describes a method as presented on the shipping screen.
type MethodOption struct {
	Method     Method  `json:"method"`
	Cost       float64 `json:"cost"`
	Free       bool    `json:"free"`
	Selectable bool    `json:"selectable"`
}

// MethodOptions lists enabled methods in priority order. Once free shipping is
// active every option is quoted at zero and only the first enabled method
// stays selectable.
func MethodOptions(itemsTotal float64, cfg ShippingConfig) []MethodOption {
	free := FreeShippingActive(itemsTotal, cfg)
	initial := InitialMethod(cfg)
	out := make([]MethodOption, 0, len(Methods))
	for _, m := range Methods {
		if !cfg.IsEnabled(m) {
			continue
		}
		opt := MethodOption{Method: m, Cost: cfg.Cost(m), Free: free, Selectable: true}
		if free {
			opt.Cost = 0
			opt.Selectable = m == initial
		}
		out = append(out, opt)
	}
	return out
}
