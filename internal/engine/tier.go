package engine

import (
	"github.com/pricevault/tierkit/internal/domain"
)

// SelectTier picks the winning tier for a line quantity: among valid tiers
// whose MinQuantity is at or below the quantity, the one with the largest
// MinQuantity wins (the most specific breakpoint, not the first declared).
// Equal thresholds resolve to the first in input order.
// Returns nil when no tier qualifies; never fails on malformed input.
func SelectTier(quantity int, tiers []domain.Tier) *domain.Tier {
	var best *domain.Tier
	for i := range tiers {
		t := &tiers[i]
		if !t.Valid() || t.MinQuantity > quantity {
			continue
		}
		if best == nil || t.MinQuantity > best.MinQuantity {
			best = t
		}
	}
	return best
}

// MatchGiftTier reports whether the line is itself a free-gift line: some
// tier's GiftVariantID equals the line's variant id. The first match in tier
// order wins. Gift lines bypass scope and quantity checks entirely and are
// always fully discounted.
func MatchGiftTier(line domain.CartLine, tiers []domain.Tier) *domain.Tier {
	variantID := line.Merchandise.VariantID
	if variantID == "" {
		return nil
	}
	for i := range tiers {
		if tiers[i].GiftVariantID != "" && tiers[i].GiftVariantID == variantID {
			return &tiers[i]
		}
	}
	return nil
}
