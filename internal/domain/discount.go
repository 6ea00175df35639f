// Package domain defines the core types and interfaces for Tierkit.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ScopeKind identifies which eligibility rule a scope carries.
type ScopeKind string

const (
	// ScopeNone matches no line. Produced by the parser when a stored
	// configuration carries no usable scope (fail open to no-discount).
	ScopeNone ScopeKind = "none"

	// ScopeAll matches every line not in the exclusion list.
	ScopeAll ScopeKind = "all"

	// ScopeProducts matches lines whose product id is listed.
	ScopeProducts ScopeKind = "products"

	// ScopeCollections matches lines whose product belongs to a listed collection.
	ScopeCollections ScopeKind = "collections"
)

// Scope is the product/collection eligibility rule of a discount configuration.
// The exclusion list is authoritative for every kind: an excluded product is
// never in scope, regardless of how it matched.
type Scope struct {
	Kind          ScopeKind `json:"kind"`
	ProductIDs    []string  `json:"productIds,omitempty"`
	CollectionIDs []string  `json:"collectionIds,omitempty"`
	Exclude       []string  `json:"excludeProductIds,omitempty"`
}

// PriceRuleType identifies how a tier prices the discounted line.
type PriceRuleType string

const (
	PricePercentage PriceRuleType = "percentage"
	PriceAmountOff  PriceRuleType = "amount_off"
	PriceExactPrice PriceRuleType = "exact_price"
)

// PriceRule is the pricing half of a tier.
type PriceRule struct {
	Type  PriceRuleType   `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Tier is one quantity breakpoint of a discount configuration.
// A tier may additionally name a gift variant; a cart line holding that
// variant is a gift line and is always fully discounted.
type Tier struct {
	MinQuantity   int       `json:"minQuantity"`
	PriceRule     PriceRule `json:"priceRule"`
	GiftVariantID string    `json:"giftVariantId,omitempty"`
	GiftQuantity  int       `json:"giftQuantity,omitempty"`
}

var oneHundred = decimal.NewFromInt(100)

// Valid reports whether the tier may participate in selection.
// Invalid tiers are skipped, never an error: a merchant typo must not
// abort checkout pricing.
func (t *Tier) Valid() bool {
	if t.MinQuantity <= 0 {
		return false
	}
	switch t.PriceRule.Type {
	case PricePercentage:
		return !t.PriceRule.Value.IsNegative() && t.PriceRule.Value.LessThanOrEqual(oneHundred)
	case PriceAmountOff, PriceExactPrice:
		return !t.PriceRule.Value.IsNegative()
	default:
		return false
	}
}

// DiscountConfiguration is the canonical, parsed form of a merchant's stored
// rule set. It is immutable for the duration of an evaluation and safe to
// share across concurrent evaluations.
type DiscountConfiguration struct {
	Scope Scope  `json:"scope"`
	Tiers []Tier `json:"tiers"`

	// OrderPercentage is preserved for forward compatibility; the line
	// evaluator does not read it.
	OrderPercentage float64 `json:"orderPercentage"`

	// Condition is an optional CEL expression gating the whole evaluation
	// (e.g. "cart_subtotal >= 50.0"). Empty means unconditional.
	Condition string `json:"condition,omitempty"`
}

// DiscountClass tags which evaluation passes a discount participates in.
type DiscountClass string

const (
	DiscountClassProduct  DiscountClass = "PRODUCT"
	DiscountClassOrder    DiscountClass = "ORDER"
	DiscountClassShipping DiscountClass = "SHIPPING"
)

// Metafield carries the raw merchant-authored configuration blob.
type Metafield struct {
	Value string `json:"value"`
}

// DiscountContext is the discount record handed to the evaluator by the
// cart-pricing context: enabled classes plus the configuration metafield.
type DiscountContext struct {
	Classes   []DiscountClass `json:"discountClasses"`
	Metafield Metafield       `json:"metafield"`
}

// HasClass reports whether the class tag is enabled for this pass.
// Tags are matched case-insensitively; platforms disagree on casing.
func (d *DiscountContext) HasClass(class DiscountClass) bool {
	for _, c := range d.Classes {
		if strings.EqualFold(string(c), string(class)) {
			return true
		}
	}
	return false
}

// DiscountRecord is a stored merchant configuration, keyed by shop and
// product. Metafield holds the authored JSON verbatim; it is parsed into a
// DiscountConfiguration at evaluation time.
type DiscountRecord struct {
	ShopID    string    `json:"shopId"`
	ProductID string    `json:"productId"`
	Title     string    `json:"title"`
	Metafield string    `json:"metafield"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
