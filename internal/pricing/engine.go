package pricing

import (
	"errors"
	"fmt"
)

// ErrInvalidItem is returned when a line carries a negative quantity or a price
// that is negative or not a finite number.
var ErrInvalidItem = errors.New("pricing: invalid item")

// Item describes a cart line used for pricing. UnitPrice is the discounted
// price when the product is on sale, else its list price.
type Item struct {
	ProductID string
	UnitPrice float64
	Quantity  int
}

// VatConfig is the VAT part of the store settings.
type VatConfig struct {
	IsActive   bool
	Percentage float64
}

// Input groups everything needed to price a checkout.
type Input struct {
	Items         []Item
	Method        Method
	Shipping      ShippingConfig
	Vat           VatConfig
	CouponPercent float64
	CouponApplied bool
}

// Breakdown is the derived price projection of a checkout.
type Breakdown struct {
	ItemsTotal   float64 `json:"itemsTotal"`
	Discount     float64 `json:"discount"`
	ShippingCost float64 `json:"shippingCost"`
	TaxAmount    float64 `json:"taxAmount"`
	GrandTotal   float64 `json:"grandTotal"`
	FreeShipping bool    `json:"freeShipping"`
}

// GrandTotalString renders the grand total with exactly two decimals.
func (b Breakdown) GrandTotalString() string {
	return FormatAmount(b.GrandTotal)
}

// ItemsTotal sums unit price times quantity over items without rounding.
func ItemsTotal(items []Item) float64 {
	var total float64
	for _, it := range items {
		total += it.UnitPrice * float64(it.Quantity)
	}
	return total
}

// ValidateItems rejects negative quantities and non-finite or negative prices.
func ValidateItems(items []Item) error {
	for i, it := range items {
		if it.Quantity < 0 {
			return fmt.Errorf("%w: line %d has negative quantity", ErrInvalidItem, i)
		}
		if !finite(it.UnitPrice) || it.UnitPrice < 0 {
			return fmt.Errorf("%w: line %d has invalid price", ErrInvalidItem, i)
		}
	}
	return nil
}

// Tax returns the VAT owed on itemsTotal, rounded to two decimals.
func Tax(itemsTotal float64, vat VatConfig) float64 {
	if !vat.IsActive {
		return 0
	}
	return Round2(itemsTotal * vat.Percentage / 100)
}

// CouponDiscount returns the percentage discount on itemsTotal, rounded to two
// decimals and never larger than itemsTotal.
func CouponDiscount(itemsTotal, percent float64) float64 {
	if percent <= 0 || itemsTotal <= 0 {
		return 0
	}
	d := Round2(itemsTotal * percent / 100)
	if d > itemsTotal {
		return itemsTotal
	}
	return d
}

// Total assembles the grand total, rounding the sum once.
func Total(itemsTotal, discount, shipping, tax float64) float64 {
	return Round2(itemsTotal - discount + shipping + tax)
}

// Calculate prices a checkout. Tax is computed on the undiscounted items total.
func Calculate(in Input) (Breakdown, error) {
	if err := ValidateItems(in.Items); err != nil {
		return Breakdown{}, err
	}
	items := ItemsTotal(in.Items)
	if !finite(items) {
		return Breakdown{}, fmt.Errorf("%w: items total overflows", ErrInvalidItem)
	}
	var discount float64
	if in.CouponApplied {
		discount = CouponDiscount(items, in.CouponPercent)
	}
	shipping := ShippingCost(items, in.Method, in.Shipping)
	tax := Tax(items, in.Vat)
	return Breakdown{
		ItemsTotal:   items,
		Discount:     discount,
		ShippingCost: shipping,
		TaxAmount:    tax,
		GrandTotal:   Total(items, discount, shipping, tax),
		FreeShipping: FreeShippingActive(items, in.Shipping),
	}, nil
}
