package engine

import (
	"encoding/json"
	"testing"

	"github.com/pricevault/tierkit/internal/domain"
)

func TestParseMalformedJSON(t *testing.T) {
	cases := []string{
		`{not valid json`,
		``,
		`42`,
		`"a string"`,
		`[1,2,3]`,
	}

	for _, raw := range cases {
		cfg := ParseConfiguration(raw)
		if cfg.Scope.Kind != domain.ScopeNone {
			t.Errorf("raw %q: expected scope kind none, got %s", raw, cfg.Scope.Kind)
		}
		if len(cfg.Tiers) != 0 {
			t.Errorf("raw %q: expected 0 tiers, got %d", raw, len(cfg.Tiers))
		}
		if cfg.OrderPercentage != 0 {
			t.Errorf("raw %q: expected orderPercentage 0, got %f", raw, cfg.OrderPercentage)
		}
	}
}

func TestParseScopePrefersScopeObject(t *testing.T) {
	raw := `{
		"scope": {"productIds": ["gid://product/1"], "excludeProductIds": ["gid://product/9"]},
		"productIds": ["gid://product/legacy"]
	}`

	cfg := ParseConfiguration(raw)

	if cfg.Scope.Kind != domain.ScopeProducts {
		t.Fatalf("expected scope kind products, got %s", cfg.Scope.Kind)
	}
	if len(cfg.Scope.ProductIDs) != 1 || cfg.Scope.ProductIDs[0] != "gid://product/1" {
		t.Errorf("expected scoped product ids to win, got %v", cfg.Scope.ProductIDs)
	}
	if len(cfg.Scope.Exclude) != 1 || cfg.Scope.Exclude[0] != "gid://product/9" {
		t.Errorf("expected exclusion list preserved, got %v", cfg.Scope.Exclude)
	}
}

func TestParseScopeLegacyFallback(t *testing.T) {
	t.Run("FlatProductIds", func(t *testing.T) {
		cfg := ParseConfiguration(`{"productIds": ["p1", "p2"]}`)
		if cfg.Scope.Kind != domain.ScopeProducts {
			t.Fatalf("expected scope kind products, got %s", cfg.Scope.Kind)
		}
		if len(cfg.Scope.ProductIDs) != 2 {
			t.Errorf("expected 2 legacy product ids, got %v", cfg.Scope.ProductIDs)
		}
	})

	t.Run("FlatCollectionIds", func(t *testing.T) {
		cfg := ParseConfiguration(`{"collectionIds": ["c1"]}`)
		if cfg.Scope.Kind != domain.ScopeCollections {
			t.Fatalf("expected scope kind collections, got %s", cfg.Scope.Kind)
		}
	})

	t.Run("EmptyScopeListsFallThrough", func(t *testing.T) {
		cfg := ParseConfiguration(`{"scope": {"productIds": []}, "productIds": ["p1"]}`)
		if cfg.Scope.Kind != domain.ScopeProducts {
			t.Fatalf("expected legacy fallback when scoped list empty, got %s", cfg.Scope.Kind)
		}
		if cfg.Scope.ProductIDs[0] != "p1" {
			t.Errorf("expected legacy product id, got %v", cfg.Scope.ProductIDs)
		}
	})
}

func TestParseScopeAllWinsOverLists(t *testing.T) {
	cfg := ParseConfiguration(`{"scope": {"all": true, "productIds": ["p1"]}}`)
	if cfg.Scope.Kind != domain.ScopeAll {
		t.Errorf("expected scope kind all, got %s", cfg.Scope.Kind)
	}
}

func TestParseTiers(t *testing.T) {
	t.Run("DiscountLogicPreferred", func(t *testing.T) {
		raw := `{
			"discountLogic": {"tiers": [{"quantity": 5, "priceType": "percentage", "priceValue": 20}]},
			"tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 99}]
		}`
		cfg := ParseConfiguration(raw)
		if len(cfg.Tiers) != 1 {
			t.Fatalf("expected 1 tier, got %d", len(cfg.Tiers))
		}
		if cfg.Tiers[0].MinQuantity != 5 {
			t.Errorf("expected discountLogic tier to win, got minQuantity %d", cfg.Tiers[0].MinQuantity)
		}
	})

	t.Run("EmptyDiscountLogicTiersAuthoritative", func(t *testing.T) {
		raw := `{
			"scope": {"all": true},
			"discountLogic": {"tiers": []},
			"tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 10}]
		}`
		cfg := ParseConfiguration(raw)
		if len(cfg.Tiers) != 0 {
			t.Fatalf("expected no tiers when discountLogic.tiers is present and empty, got %d", len(cfg.Tiers))
		}
	})

	t.Run("MissingDiscountLogicTiersFallsBack", func(t *testing.T) {
		cfg := ParseConfiguration(`{
			"discountLogic": {},
			"tiers": [{"quantity": 2, "priceType": "percentage", "priceValue": 15}]
		}`)
		if len(cfg.Tiers) != 1 {
			t.Fatalf("expected legacy tiers when discountLogic has no tiers field, got %d", len(cfg.Tiers))
		}
	})

	t.Run("LegacyTiersFallback", func(t *testing.T) {
		cfg := ParseConfiguration(`{"tiers": [{"quantity": 3, "priceType": "amount_off", "priceValue": 5}]}`)
		if len(cfg.Tiers) != 1 {
			t.Fatalf("expected 1 tier, got %d", len(cfg.Tiers))
		}
		if cfg.Tiers[0].PriceRule.Type != domain.PriceAmountOff {
			t.Errorf("expected amount_off, got %s", cfg.Tiers[0].PriceRule.Type)
		}
		if !cfg.Tiers[0].PriceRule.Value.Equal(dec("5")) {
			t.Errorf("expected value 5, got %s", cfg.Tiers[0].PriceRule.Value)
		}
	})

	t.Run("GiftQuantityDefaultsToOne", func(t *testing.T) {
		cfg := ParseConfiguration(`{"tiers": [{"quantity": 2, "priceType": "percentage", "priceValue": 10, "giftVariantId": "v1"}]}`)
		if cfg.Tiers[0].GiftQuantity != 1 {
			t.Errorf("expected default gift quantity 1, got %d", cfg.Tiers[0].GiftQuantity)
		}
	})

	t.Run("NoGiftNoDefault", func(t *testing.T) {
		cfg := ParseConfiguration(`{"tiers": [{"quantity": 2, "priceType": "percentage", "priceValue": 10}]}`)
		if cfg.Tiers[0].GiftQuantity != 0 {
			t.Errorf("expected gift quantity 0 without gift variant, got %d", cfg.Tiers[0].GiftQuantity)
		}
	})
}

func TestParseOrderPercentagePreserved(t *testing.T) {
	cfg := ParseConfiguration(`{"orderPercentage": 12.5}`)
	if cfg.OrderPercentage != 12.5 {
		t.Errorf("expected orderPercentage 12.5, got %f", cfg.OrderPercentage)
	}
}

func TestParseCondition(t *testing.T) {
	cfg := ParseConfiguration(`{"condition": "cart_subtotal >= 50.0"}`)
	if cfg.Condition != "cart_subtotal >= 50.0" {
		t.Errorf("expected condition preserved, got %q", cfg.Condition)
	}
}

// Canonical round-trip: marshaling a parsed configuration and parsing the
// result back must preserve every field scope resolution and tier selection
// depend on.
func TestCanonicalRoundTrip(t *testing.T) {
	raw := `{
		"orderPercentage": 5,
		"scope": {"collectionIds": ["c1", "c2"], "excludeProductIds": ["p9"]},
		"discountLogic": {"tiers": [
			{"quantity": 1, "priceType": "percentage", "priceValue": 10},
			{"quantity": 3, "priceType": "amount_off", "priceValue": 5, "giftVariantId": "v7", "giftQuantity": 2}
		]}
	}`

	cfg := ParseConfiguration(raw)

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back domain.DiscountConfiguration
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if back.Scope.Kind != cfg.Scope.Kind {
		t.Errorf("scope kind not preserved: %s != %s", back.Scope.Kind, cfg.Scope.Kind)
	}
	if len(back.Scope.CollectionIDs) != 2 || len(back.Scope.Exclude) != 1 {
		t.Errorf("scope lists not preserved: %+v", back.Scope)
	}
	if len(back.Tiers) != 2 {
		t.Fatalf("tiers not preserved: got %d", len(back.Tiers))
	}
	for i := range cfg.Tiers {
		if back.Tiers[i].MinQuantity != cfg.Tiers[i].MinQuantity {
			t.Errorf("tier %d minQuantity not preserved", i)
		}
		if back.Tiers[i].PriceRule.Type != cfg.Tiers[i].PriceRule.Type {
			t.Errorf("tier %d price type not preserved", i)
		}
		if !back.Tiers[i].PriceRule.Value.Equal(cfg.Tiers[i].PriceRule.Value) {
			t.Errorf("tier %d price value not preserved", i)
		}
		if back.Tiers[i].GiftVariantID != cfg.Tiers[i].GiftVariantID {
			t.Errorf("tier %d gift variant not preserved", i)
		}
	}
}
