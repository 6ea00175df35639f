package engine

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/pricevault/tierkit/internal/domain"
)

// rawMetafield mirrors the merchant-authored configuration blob, including
// the legacy flat fields still present in older stored records.
type rawMetafield struct {
	OrderPercentage float64           `json:"orderPercentage"`
	Scope           *rawScope         `json:"scope"`
	ProductIDs      []string          `json:"productIds"`
	CollectionIDs   []string          `json:"collectionIds"`
	Tiers           []rawTier         `json:"tiers"`
	DiscountLogic   *rawDiscountLogic `json:"discountLogic"`
	Condition       string            `json:"condition"`
}

type rawScope struct {
	All               bool     `json:"all"`
	ProductIDs        []string `json:"productIds"`
	CollectionIDs     []string `json:"collectionIds"`
	ExcludeProductIDs []string `json:"excludeProductIds"`
}

type rawDiscountLogic struct {
	Tiers []rawTier `json:"tiers"`
}

type rawTier struct {
	Quantity      int              `json:"quantity"`
	PriceType     string           `json:"priceType"`
	PriceValue    *decimal.Decimal `json:"priceValue"`
	GiftVariantID string           `json:"giftVariantId"`
	GiftQuantity  int              `json:"giftQuantity"`
}

// DefaultConfiguration returns the all-empty configuration: no scope, no
// tiers. Evaluating anything against it yields no candidates.
func DefaultConfiguration() domain.DiscountConfiguration {
	return domain.DiscountConfiguration{
		Scope: domain.Scope{Kind: domain.ScopeNone},
		Tiers: []domain.Tier{},
	}
}

// ParseConfiguration normalizes a raw metafield blob into the canonical
// configuration. It is a total function: malformed JSON or missing fields
// degrade to the all-empty default rather than failing, so a bad merchant
// configuration silently disables discounting instead of aborting checkout
// pricing.
func ParseConfiguration(raw string) domain.DiscountConfiguration {
	var m rawMetafield
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return DefaultConfiguration()
	}

	return domain.DiscountConfiguration{
		Scope:           resolveScope(&m),
		Tiers:           resolveTiers(&m),
		OrderPercentage: m.OrderPercentage,
		Condition:       m.Condition,
	}
}

// resolveScope applies the two-step shape resolution: the scope sub-object is
// preferred; the legacy flat productIds/collectionIds fields are consulted
// only when the corresponding scoped lists are empty.
func resolveScope(m *rawMetafield) domain.Scope {
	var productIDs, collectionIDs, exclude []string
	all := false

	if m.Scope != nil {
		all = m.Scope.All
		productIDs = m.Scope.ProductIDs
		collectionIDs = m.Scope.CollectionIDs
		exclude = m.Scope.ExcludeProductIDs
	}
	if len(productIDs) == 0 {
		productIDs = m.ProductIDs
	}
	if len(collectionIDs) == 0 {
		collectionIDs = m.CollectionIDs
	}

	scope := domain.Scope{
		Kind:          domain.ScopeNone,
		ProductIDs:    productIDs,
		CollectionIDs: collectionIDs,
		Exclude:       exclude,
	}

	// Exactly one kind is active: all wins over product lists, product
	// lists win over collection lists.
	switch {
	case all:
		scope.Kind = domain.ScopeAll
	case len(productIDs) > 0:
		scope.Kind = domain.ScopeProducts
	case len(collectionIDs) > 0:
		scope.Kind = domain.ScopeCollections
	}

	return scope
}

// resolveTiers prefers discountLogic.tiers over the legacy flat tiers field.
// A present-but-empty discountLogic.tiers array is authoritative: the merchant
// emptied the tier list, and a stale legacy list must not resurrect it.
func resolveTiers(m *rawMetafield) []domain.Tier {
	raw := m.Tiers
	if m.DiscountLogic != nil && m.DiscountLogic.Tiers != nil {
		raw = m.DiscountLogic.Tiers
	}

	tiers := make([]domain.Tier, 0, len(raw))
	for _, t := range raw {
		value := decimal.Zero
		if t.PriceValue != nil {
			value = *t.PriceValue
		}

		giftQuantity := t.GiftQuantity
		if t.GiftVariantID != "" && giftQuantity <= 0 {
			giftQuantity = 1
		}

		tiers = append(tiers, domain.Tier{
			MinQuantity: t.Quantity,
			PriceRule: domain.PriceRule{
				Type:  domain.PriceRuleType(t.PriceType),
				Value: value,
			},
			GiftVariantID: t.GiftVariantID,
			GiftQuantity:  giftQuantity,
		})
	}

	return tiers
}
