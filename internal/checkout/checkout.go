// Package checkout turns a cart into an order: it quotes prices with the
// pricing calculator, stores the shopper's shipping selection and coupon in
// Redis, and confirms the order in a single database transaction.
package checkout

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/customer"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

var (
	ErrEmptyCart         = errors.New("checkout: cart is empty")
	ErrShippingRequired  = errors.New("checkout: shipping information required")
	ErrUnknownMethod     = errors.New("checkout: unknown shipping method")
	ErrMethodDisabled    = errors.New("checkout: shipping method disabled")
	ErrNoShippingMethods = errors.New("checkout: no shipping method enabled")
)

// ShippingInfo is the shipping record kept in checkout state and copied onto
// the order.
type ShippingInfo struct {
	Address        string         `json:"address"`
	City           string         `json:"city"`
	PostalCode     string         `json:"postalCode"`
	PhoneNo        string         `json:"phoneNo"`
	TaxPrice       float64        `json:"taxPrice"`
	ShippingPrice  float64        `json:"shippingPrice"`
	ShippingMethod pricing.Method `json:"shippingMethod"`
	Country        string         `json:"country"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
}

// ShippingInput is the shopper-submitted shipping form.
type ShippingInput struct {
	Address        string   `json:"address" validate:"required,max=200"`
	City           string   `json:"city" validate:"required,max=100"`
	PostalCode     string   `json:"postalCode" validate:"required,max=20"`
	PhoneNo        string   `json:"phoneNo" validate:"required,max=32"`
	ShippingMethod string   `json:"shippingMethod" validate:"max=20"`
	Country        string   `json:"country" validate:"max=100"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	SaveToProfile  bool     `json:"saveToProfile"`
}

// AppliedCoupon is the coupon attached to a checkout.
type AppliedCoupon struct {
	ID      uuid.UUID `json:"id"`
	Code    string    `json:"code"`
	Percent float64   `json:"percent"`
}

// State is the per-customer, per-cart checkout progress.
type State struct {
	Shipping  *ShippingInfo  `json:"shipping,omitempty"`
	Coupon    *AppliedCoupon `json:"coupon,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Quote is the priced view of a checkout.
type Quote struct {
	CartID        string                 `json:"cartId"`
	Method        pricing.Method         `json:"method"`
	InitialMethod pricing.Method         `json:"initialMethod"`
	Options       []pricing.MethodOption `json:"options"`
	Pricing       pricing.Breakdown      `json:"pricing"`
	GrandTotal    string                 `json:"grandTotal"`
	Shipping      *ShippingInfo          `json:"shipping,omitempty"`
	Coupon        *AppliedCoupon         `json:"coupon,omitempty"`
}

func shippingFromAddress(a customer.Address, method pricing.Method) ShippingInfo {
	return ShippingInfo{
		Address:        a.Street,
		City:           a.City,
		PostalCode:     a.PostalCode,
		PhoneNo:        a.PhoneNo,
		ShippingMethod: method,
		Country:        a.Country,
		Latitude:       a.Latitude,
		Longitude:      a.Longitude,
	}
}

func (in ShippingInput) address() customer.Address {
	a := customer.Address{
		Street:     in.Address,
		City:       in.City,
		PostalCode: in.PostalCode,
		PhoneNo:    in.PhoneNo,
		Country:    in.Country,
	}
	if in.Latitude != nil && in.Longitude != nil {
		a.Latitude, a.Longitude = *in.Latitude, *in.Longitude
	}
	return a.Normalize()
}

// previewMethod picks the method a quote is priced with. An empty request
// falls back to the first enabled method; disabled methods are refused.
func previewMethod(requested string, cfg pricing.ShippingConfig) (pricing.Method, error) {
	if requested == "" {
		if m := pricing.InitialMethod(cfg); m != "" {
			return m, nil
		}
		return "", ErrNoShippingMethods
	}
	m := pricing.Method(requested)
	if !m.Valid() {
		return "", ErrUnknownMethod
	}
	if !cfg.IsEnabled(m) {
		return "", ErrMethodDisabled
	}
	return m, nil
}

// resolveMethod picks the method a shipping selection is stored with. Once
// free shipping applies only the first enabled method can be selected, the
// same one MethodOptions marks selectable.
func resolveMethod(requested string, itemsTotal float64, cfg pricing.ShippingConfig) (pricing.Method, error) {
	m, err := previewMethod(requested, cfg)
	if err != nil {
		return "", err
	}
	if pricing.FreeShippingActive(itemsTotal, cfg) && m != pricing.InitialMethod(cfg) {
		return "", ErrMethodDisabled
	}
	return m, nil
}

// confirmMethod re-checks a saved method against the current cart and
// settings. A saved method that free shipping has made unselectable moves to
// the first enabled method, which ships for free as well.
func confirmMethod(saved pricing.Method, itemsTotal float64, cfg pricing.ShippingConfig) (pricing.Method, error) {
	m, err := resolveMethod(string(saved), itemsTotal, cfg)
	if errors.Is(err, ErrMethodDisabled) && pricing.FreeShippingActive(itemsTotal, cfg) {
		return resolveMethod("", itemsTotal, cfg)
	}
	return m, err
}
