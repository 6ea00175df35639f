package domain

import (
	"github.com/shopspring/decimal"
)

// MerchandiseKind tags what a cart line holds. Resolved once when the cart
// snapshot is loaded so downstream logic matches on the tag instead of
// probing fields.
type MerchandiseKind string

const (
	// MerchandiseProductVariant is a purchasable product variant.
	MerchandiseProductVariant MerchandiseKind = "product_variant"

	// MerchandiseOther covers anything without a resolvable product
	// reference (custom lines, platform internals). Never discounted.
	MerchandiseOther MerchandiseKind = "other"
)

// Merchandise describes what a cart line holds.
type Merchandise struct {
	Kind        MerchandiseKind `json:"kind"`
	VariantID   string          `json:"variantId,omitempty"`
	ProductID   string          `json:"productId,omitempty"`
	Collections []string        `json:"collections,omitempty"`
}

// CartLine is one merchandise entry in a cart being priced. Read-only to the
// evaluator; never mutated.
type CartLine struct {
	ID          string          `json:"id"`
	Quantity    int             `json:"quantity"`
	Cost        decimal.Decimal `json:"cost"`
	Merchandise Merchandise     `json:"merchandise"`
}

// Cart is the snapshot of a shopping cart handed in by the pricing context.
type Cart struct {
	ID       string     `json:"id,omitempty"`
	Currency string     `json:"currency,omitempty"`
	Lines    []CartLine `json:"lines"`
}

// Subtotal is the quantity-weighted sum of line unit costs.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Cost.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// TotalQuantity is the sum of line quantities.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}
