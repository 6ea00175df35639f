package engine

import (
	"testing"

	"github.com/pricevault/tierkit/internal/domain"
)

func TestSelectTierLargestThresholdWins(t *testing.T) {
	tiers := []domain.Tier{pctTier(1, "10"), amountTier(3, "5"), pctTier(5, "25")}

	got := SelectTier(3, tiers)
	if got == nil {
		t.Fatal("expected a tier for quantity 3")
	}
	if got.MinQuantity != 3 {
		t.Errorf("expected minQuantity 3 tier, got %d", got.MinQuantity)
	}
	if got.PriceRule.Type != domain.PriceAmountOff {
		t.Errorf("expected amount_off tier, got %s", got.PriceRule.Type)
	}
}

func TestSelectTierOrderIndependent(t *testing.T) {
	// Declaration order must not matter when thresholds differ.
	tiers := []domain.Tier{pctTier(5, "25"), pctTier(1, "10")}

	got := SelectTier(10, tiers)
	if got == nil || got.MinQuantity != 5 {
		t.Errorf("expected minQuantity 5 tier regardless of order, got %+v", got)
	}
}

func TestSelectTierBelowAllThresholds(t *testing.T) {
	tiers := []domain.Tier{pctTier(5, "10"), pctTier(10, "20")}

	if got := SelectTier(4, tiers); got != nil {
		t.Errorf("expected nil below all thresholds, got %+v", got)
	}
}

func TestSelectTierNoTiers(t *testing.T) {
	if got := SelectTier(100, nil); got != nil {
		t.Errorf("expected nil with no tiers, got %+v", got)
	}
}

func TestSelectTierSkipsInvalid(t *testing.T) {
	tiers := []domain.Tier{
		pctTier(0, "10"),    // non-positive threshold
		pctTier(2, "150"),   // percentage above 100
		amountTier(2, "-1"), // negative amount
		{MinQuantity: 2, PriceRule: domain.PriceRule{Type: "bogus", Value: dec("5")}},
		pctTier(1, "10"),
	}

	got := SelectTier(3, tiers)
	if got == nil {
		t.Fatal("expected the one valid tier to win")
	}
	if got.MinQuantity != 1 || !got.PriceRule.Value.Equal(dec("10")) {
		t.Errorf("expected the valid 10%% tier, got %+v", got)
	}
}

func TestSelectTierEqualThresholdFirstWins(t *testing.T) {
	tiers := []domain.Tier{pctTier(3, "10"), pctTier(3, "20")}

	for i := 0; i < 20; i++ {
		got := SelectTier(5, tiers)
		if got == nil || !got.PriceRule.Value.Equal(dec("10")) {
			t.Fatalf("expected first declared tier on equal threshold, got %+v", got)
		}
	}
}

func TestMatchGiftTier(t *testing.T) {
	tiers := []domain.Tier{
		pctTier(1, "10"),
		{MinQuantity: 3, GiftVariantID: "variant-gift", GiftQuantity: 1,
			PriceRule: domain.PriceRule{Type: domain.PricePercentage, Value: dec("10")}},
	}

	gift := productLine("gift", "p-gift", 1, "0")
	if got := MatchGiftTier(gift, tiers); got == nil {
		t.Error("expected gift tier match by variant id")
	}

	plain := productLine("l1", "p1", 1, "10")
	if got := MatchGiftTier(plain, tiers); got != nil {
		t.Errorf("expected no gift match for ordinary line, got %+v", got)
	}
}

func TestMatchGiftTierEmptyVariantNeverMatches(t *testing.T) {
	tiers := []domain.Tier{pctTier(1, "10")}

	line := productLine("l1", "p1", 1, "10")
	line.Merchandise.VariantID = ""

	if got := MatchGiftTier(line, tiers); got != nil {
		t.Errorf("expected no match when line has no variant id, got %+v", got)
	}
}
