// Package cart keeps shopping carts in Redis. Each cart is a JSON document
// owned by one customer and refreshed on every write.
package cart

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

var (
	ErrNotFound     = errors.New("cart: not found")
	ErrForbidden    = errors.New("cart: owned by another customer")
	ErrInvalidLine  = errors.New("cart: invalid line")
	ErrLineNotFound = errors.New("cart: line not found")
)

// Line is one product in a cart.
type Line struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	DiscountPrice float64 `json:"discountPrice,omitempty"`
	Quantity      int     `json:"quantity"`
}

// UnitPrice is the sale price when one is set, else the list price.
func (l Line) UnitPrice() float64 {
	if l.DiscountPrice > 0 {
		return l.DiscountPrice
	}
	return l.Price
}

func (l Line) validate() error {
	if strings.TrimSpace(l.ProductID) == "" {
		return fmt.Errorf("%w: productId is required", ErrInvalidLine)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidLine)
	}
	for _, p := range []float64{l.Price, l.DiscountPrice} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return fmt.Errorf("%w: prices must be finite and not negative", ErrInvalidLine)
		}
	}
	return nil
}

// Cart is the stored cart document.
type Cart struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Lines      []Line    `json:"lines"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PricingItems converts the lines into calculator items.
func (c Cart) PricingItems() []pricing.Item {
	out := make([]pricing.Item, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, pricing.Item{ProductID: l.ProductID, UnitPrice: l.UnitPrice(), Quantity: l.Quantity})
	}
	return out
}

// ItemsTotal returns the unrounded merchandise total.
func (c Cart) ItemsTotal() float64 {
	return pricing.ItemsTotal(c.PricingItems())
}

// Quantity returns the number of units across all lines.
func (c Cart) Quantity() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) indexOf(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
