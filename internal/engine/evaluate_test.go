package engine

import (
	"errors"
	"testing"

	"github.com/pricevault/tierkit/internal/domain"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	return ev
}

func productClasses() []domain.DiscountClass {
	return []domain.DiscountClass{domain.DiscountClassProduct}
}

func singleOperation(t *testing.T, batch *domain.OperationBatch) *domain.ProductDiscountsAdd {
	t.Helper()
	if len(batch.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(batch.Operations))
	}
	op := batch.Operations[0].ProductDiscountsAdd
	if op == nil {
		t.Fatal("expected productDiscountsAdd operation")
	}
	if op.SelectionStrategy != domain.SelectionStrategyAll {
		t.Errorf("expected selection strategy ALL, got %s", op.SelectionStrategy)
	}
	return op
}

func TestEvaluateEmptyCart(t *testing.T) {
	ev := newTestEvaluator(t)

	_, err := ev.Evaluate(testCart(), &domain.DiscountContext{Classes: productClasses()})
	if !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}

	_, err = ev.Evaluate(nil, &domain.DiscountContext{Classes: productClasses()})
	if !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart for nil cart, got %v", err)
	}
}

func TestEvaluateClassGating(t *testing.T) {
	ev := newTestEvaluator(t)
	cart := testCart(productLine("l1", "p1", 3, "30"))
	metafield := `{"scope": {"all": true}, "tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 10}]}`

	t.Run("OrderOnly", func(t *testing.T) {
		batch, err := ev.Evaluate(cart, &domain.DiscountContext{
			Classes:   []domain.DiscountClass{domain.DiscountClassOrder},
			Metafield: domain.Metafield{Value: metafield},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(batch.Operations) != 0 {
			t.Errorf("expected no operations without the product class, got %d", len(batch.Operations))
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		batch, err := ev.Evaluate(cart, &domain.DiscountContext{
			Classes:   []domain.DiscountClass{"product"},
			Metafield: domain.Metafield{Value: metafield},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if batch.CandidateCount() != 1 {
			t.Errorf("expected lowercase class to gate open, got %d candidates", batch.CandidateCount())
		}
	})
}

func TestEvaluateTierSelection(t *testing.T) {
	ev := newTestEvaluator(t)
	cart := testCart(productLine("l1", "p1", 3, "30"))
	metafield := `{"scope": {"all": true}, "tiers": [
		{"quantity": 1, "priceType": "percentage", "priceValue": 10},
		{"quantity": 3, "priceType": "amount_off", "priceValue": 5}
	]}`

	batch, err := ev.Evaluate(cart, &domain.DiscountContext{
		Classes:   productClasses(),
		Metafield: domain.Metafield{Value: metafield},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	op := singleOperation(t, batch)
	if len(op.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(op.Candidates))
	}

	cand := op.Candidates[0]
	if cand.Value.FixedAmount == nil {
		t.Fatal("expected fixedAmount value for the quantity-3 tier")
	}
	if !cand.Value.FixedAmount.Amount.Equal(dec("5")) {
		t.Errorf("expected amount 5, got %s", cand.Value.FixedAmount.Amount)
	}
	if cand.Message != "£5.00 OFF PRODUCT" {
		t.Errorf("unexpected message %q", cand.Message)
	}
	if !cand.TargetsLine("l1") {
		t.Error("expected candidate to target line l1")
	}
}

func TestEvaluateScopeFilters(t *testing.T) {
	ev := newTestEvaluator(t)
	metafield := `{"scope": {"productIds": ["p1"]}, "tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 10}]}`

	cart := testCart(productLine("l1", "p2", 5, "50"))
	batch, err := ev.Evaluate(cart, &domain.DiscountContext{
		Classes:   productClasses(),
		Metafield: domain.Metafield{Value: metafield},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.CandidateCount() != 0 {
		t.Errorf("expected no candidates for out-of-scope product, got %d", batch.CandidateCount())
	}
}

func TestEvaluateGiftLine(t *testing.T) {
	ev := newTestEvaluator(t)

	// Scope excludes the gift's product entirely and its quantity is below
	// every threshold; the gift must still be fully discounted.
	metafield := `{"scope": {"productIds": ["p1"]}, "tiers": [
		{"quantity": 10, "priceType": "percentage", "priceValue": 10, "giftVariantId": "variant-gift"}
	]}`

	gift := productLine("gift", "p-gift", 1, "15")
	cart := testCart(productLine("l1", "p1", 2, "20"), gift)

	batch, err := ev.Evaluate(cart, &domain.DiscountContext{
		Classes:   productClasses(),
		Metafield: domain.Metafield{Value: metafield},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	op := singleOperation(t, batch)
	if len(op.Candidates) != 1 {
		t.Fatalf("expected only the gift candidate, got %d", len(op.Candidates))
	}

	cand := op.Candidates[0]
	if cand.Message != GiftMessage {
		t.Errorf("expected %q, got %q", GiftMessage, cand.Message)
	}
	if cand.Value.Percentage == nil || !cand.Value.Percentage.Value.Equal(dec("100")) {
		t.Errorf("expected 100%% value for gift, got %+v", cand.Value)
	}
	if !cand.TargetsLine("gift") {
		t.Error("expected candidate to target the gift line")
	}
	if !HasGift(batch) {
		t.Error("expected batch to report a gift")
	}
}

func TestEvaluateZeroValueRules(t *testing.T) {
	ev := newTestEvaluator(t)
	cart := testCart(productLine("l1", "p1", 2, "20"))

	t.Run("ZeroPercentageSkipped", func(t *testing.T) {
		metafield := `{"scope": {"all": true}, "tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 0}]}`
		batch, err := ev.Evaluate(cart, &domain.DiscountContext{
			Classes:   productClasses(),
			Metafield: domain.Metafield{Value: metafield},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if batch.CandidateCount() != 0 {
			t.Errorf("expected zero percentage to emit nothing, got %d", batch.CandidateCount())
		}
	})

	t.Run("ZeroAmountSkipped", func(t *testing.T) {
		metafield := `{"scope": {"all": true}, "tiers": [{"quantity": 1, "priceType": "amount_off", "priceValue": 0}]}`
		batch, err := ev.Evaluate(cart, &domain.DiscountContext{
			Classes:   productClasses(),
			Metafield: domain.Metafield{Value: metafield},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if batch.CandidateCount() != 0 {
			t.Errorf("expected zero amount to emit nothing, got %d", batch.CandidateCount())
		}
	})

	t.Run("ZeroExactPriceEmits", func(t *testing.T) {
		metafield := `{"scope": {"all": true}, "tiers": [{"quantity": 1, "priceType": "exact_price", "priceValue": 0}]}`
		batch, err := ev.Evaluate(cart, &domain.DiscountContext{
			Classes:   productClasses(),
			Metafield: domain.Metafield{Value: metafield},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		op := singleOperation(t, batch)
		if len(op.Candidates) != 1 {
			t.Fatalf("expected exact price candidate, got %d", len(op.Candidates))
		}
		cand := op.Candidates[0]
		if cand.Message != "SET EXACT PRICE" {
			t.Errorf("unexpected message %q", cand.Message)
		}
		if cand.Value.FixedPrice == nil || !cand.Value.FixedPrice.Amount.IsZero() {
			t.Errorf("expected zero fixedPrice, got %+v", cand.Value)
		}
	})
}

func TestEvaluatePercentageMessage(t *testing.T) {
	ev := newTestEvaluator(t)
	cart := testCart(productLine("l1", "p1", 2, "20"))
	metafield := `{"scope": {"all": true}, "tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 12.5}]}`

	batch, err := ev.Evaluate(cart, &domain.DiscountContext{
		Classes:   productClasses(),
		Metafield: domain.Metafield{Value: metafield},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	op := singleOperation(t, batch)
	if op.Candidates[0].Message != "12.5% OFF PRODUCT" {
		t.Errorf("unexpected message %q", op.Candidates[0].Message)
	}
}

func TestEvaluateMalformedConfiguration(t *testing.T) {
	ev := newTestEvaluator(t)
	cart := testCart(productLine("l1", "p1", 3, "30"))

	batch, err := ev.Evaluate(cart, &domain.DiscountContext{
		Classes:   productClasses(),
		Metafield: domain.Metafield{Value: `{not valid json`},
	})
	if err != nil {
		t.Fatalf("expected malformed configuration to degrade, got error: %v", err)
	}
	if batch.CandidateCount() != 0 {
		t.Errorf("expected no candidates from malformed configuration, got %d", batch.CandidateCount())
	}
}

func TestEvaluateConditionGate(t *testing.T) {
	ev := newTestEvaluator(t)
	cart := testCart(productLine("l1", "p1", 2, "20"))

	t.Run("Met", func(t *testing.T) {
		metafield := `{"scope": {"all": true}, "condition": "cart_subtotal >= 10.0", "tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 10}]}`
		batch, err := ev.Evaluate(cart, &domain.DiscountContext{
			Classes:   productClasses(),
			Metafield: domain.Metafield{Value: metafield},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if batch.CandidateCount() != 1 {
			t.Errorf("expected 1 candidate with condition met, got %d", batch.CandidateCount())
		}
	})

	t.Run("NotMet", func(t *testing.T) {
		metafield := `{"scope": {"all": true}, "condition": "cart_subtotal >= 100.0", "tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 10}]}`
		batch, err := ev.Evaluate(cart, &domain.DiscountContext{
			Classes:   productClasses(),
			Metafield: domain.Metafield{Value: metafield},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if batch.CandidateCount() != 0 {
			t.Errorf("expected no candidates with condition not met, got %d", batch.CandidateCount())
		}
	})
}

func TestEvaluateMixedCart(t *testing.T) {
	ev := newTestEvaluator(t)
	metafield := `{"scope": {"all": true, "excludeProductIds": ["p3"]}, "tiers": [
		{"quantity": 2, "priceType": "percentage", "priceValue": 10, "giftVariantId": "variant-gift"}
	]}`

	other := domain.CartLine{
		ID: "l-other", Quantity: 1, Cost: dec("5"),
		Merchandise: domain.Merchandise{Kind: domain.MerchandiseOther},
	}
	cart := testCart(
		productLine("l1", "p1", 2, "20"), // discounted
		productLine("l2", "p2", 1, "10"), // below threshold
		productLine("l3", "p3", 4, "40"), // excluded
		productLine("gift", "p-gift", 1, "15"),
		other,
	)

	batch, err := ev.Evaluate(cart, &domain.DiscountContext{
		Classes:   productClasses(),
		Metafield: domain.Metafield{Value: metafield},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	op := singleOperation(t, batch)
	if len(op.Candidates) != 2 {
		t.Fatalf("expected tier candidate plus gift candidate, got %d", len(op.Candidates))
	}

	var sawTier, sawGift bool
	for _, c := range op.Candidates {
		switch {
		case c.TargetsLine("l1"):
			sawTier = true
			if c.Message != "10% OFF PRODUCT" {
				t.Errorf("unexpected tier message %q", c.Message)
			}
		case c.TargetsLine("gift"):
			sawGift = true
			if c.Message != GiftMessage {
				t.Errorf("unexpected gift message %q", c.Message)
			}
		default:
			t.Errorf("unexpected candidate targeting %+v", c.Targets)
		}
	}
	if !sawTier || !sawGift {
		t.Errorf("expected both tier and gift candidates, got tier=%v gift=%v", sawTier, sawGift)
	}
}

func TestBuildRecord(t *testing.T) {
	ev := newTestEvaluator(t)
	cart := testCart(productLine("l1", "p1", 3, "30"))
	metafield := `{"scope": {"all": true}, "tiers": [{"quantity": 1, "priceType": "percentage", "priceValue": 10}]}`

	batch, err := ev.Evaluate(cart, &domain.DiscountContext{
		Classes:   productClasses(),
		Metafield: domain.Metafield{Value: metafield},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record := BuildRecord(&RecordInput{
		ShopID:      "shop-1",
		CartID:      cart.ID,
		ProductID:   "p1",
		Batch:       batch,
		TiersLoaded: 1,
		LinesInCart: len(cart.Lines),
	})

	if record.ID == "" {
		t.Error("expected generated record id")
	}
	if record.Status != domain.StatusApplied {
		t.Errorf("expected status APPLIED, got %s", record.Status)
	}
	if record.CandidateCount != 1 {
		t.Errorf("expected candidate count 1, got %d", record.CandidateCount)
	}
	if record.GiftCount != 0 {
		t.Errorf("expected gift count 0, got %d", record.GiftCount)
	}
	if record.Metadata.EngineVersion != EngineVersion {
		t.Errorf("expected engine version stamped, got %q", record.Metadata.EngineVersion)
	}

	empty := BuildRecord(&RecordInput{
		ShopID: "shop-1",
		CartID: cart.ID,
		Batch:  &domain.OperationBatch{},
	})
	if empty.Status != domain.StatusSkipped {
		t.Errorf("expected status SKIPPED for empty batch, got %s", empty.Status)
	}
}
