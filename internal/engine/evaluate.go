// Package engine implements the tiered cart-line discount evaluator.
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pricevault/tierkit/internal/domain"
)

// EngineVersion is stamped into evaluation records.
const EngineVersion = "tierkit-1.0"

// ErrEmptyCart signals a caller contract violation: evaluation requires at
// least one cart line. This is the only error the evaluator surfaces; every
// configuration problem degrades to "no discount" instead.
var ErrEmptyCart = errors.New("cart has no lines")

// Gift lines are always fully discounted.
var giftPercentage = decimal.NewFromInt(100)

// Evaluator runs the per-line discount decision for one cart against one
// discount configuration. Stateless between calls apart from the compiled
// condition cache; safe for concurrent use.
type Evaluator struct {
	conditions *conditionCache
}

// NewEvaluator creates an evaluator with a fresh condition environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := newConditionEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition environment: %w", err)
	}
	return &Evaluator{conditions: newConditionCache(env)}, nil
}

// Evaluate parses the discount context's metafield and evaluates the cart
// against it. The cart must contain at least one line.
func (e *Evaluator) Evaluate(cart *domain.Cart, discount *domain.DiscountContext) (*domain.OperationBatch, error) {
	if cart == nil || len(cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	cfg := ParseConfiguration(discount.Metafield.Value)
	return e.EvaluateParsed(cart, discount.Classes, &cfg)
}

// EvaluateParsed evaluates a cart against an already-parsed configuration.
// Used directly when the canonical configuration came from the cache.
func (e *Evaluator) EvaluateParsed(cart *domain.Cart, classes []domain.DiscountClass, cfg *domain.DiscountConfiguration) (*domain.OperationBatch, error) {
	if cart == nil || len(cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	batch := &domain.OperationBatch{Operations: []domain.Operation{}}

	// Class gating: the configuration is inert during evaluation passes
	// that do not include product-level discounting.
	ctx := domain.DiscountContext{Classes: classes}
	if !ctx.HasClass(domain.DiscountClassProduct) {
		return batch, nil
	}

	if !e.conditions.conditionMet(cfg.Condition, cart) {
		return batch, nil
	}

	candidates := make([]domain.DiscountCandidate, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if line.Merchandise.Kind != domain.MerchandiseProductVariant {
			continue
		}

		// Gift lines bypass scope and tier selection entirely.
		if gift := MatchGiftTier(line, cfg.Tiers); gift != nil {
			candidates = append(candidates, giftCandidate(line))
			continue
		}

		if !InScope(line, cfg.Scope) {
			continue
		}

		tier := SelectTier(line.Quantity, cfg.Tiers)
		if tier == nil {
			continue
		}

		if cand, ok := tierCandidate(line, tier); ok {
			candidates = append(candidates, cand)
		}
	}

	if len(candidates) > 0 {
		batch.Operations = append(batch.Operations, domain.Operation{
			ProductDiscountsAdd: &domain.ProductDiscountsAdd{
				Candidates:        candidates,
				SelectionStrategy: domain.SelectionStrategyAll,
			},
		})
	}

	return batch, nil
}

// GiftMessage is the candidate message for free-gift lines.
const GiftMessage = "FREE GIFT"

func giftCandidate(line domain.CartLine) domain.DiscountCandidate {
	return domain.DiscountCandidate{
		Message: GiftMessage,
		Targets: []domain.CandidateTarget{{CartLine: domain.CartLineTarget{ID: line.ID}}},
		Value: domain.CandidateValue{
			Percentage: &domain.PercentageValue{Value: giftPercentage},
		},
	}
}

// tierCandidate translates a winning tier's price rule into a candidate.
// Zero-valued percentage and amount-off rules are no-ops and emit nothing.
// An exact price always emits, even at zero, since merchants may
// intentionally set price floors.
func tierCandidate(line domain.CartLine, tier *domain.Tier) (domain.DiscountCandidate, bool) {
	target := []domain.CandidateTarget{{CartLine: domain.CartLineTarget{ID: line.ID}}}
	value := tier.PriceRule.Value

	switch tier.PriceRule.Type {
	case domain.PricePercentage:
		if value.IsZero() {
			return domain.DiscountCandidate{}, false
		}
		return domain.DiscountCandidate{
			Message: fmt.Sprintf("%s%% OFF PRODUCT", value.String()),
			Targets: target,
			Value:   domain.CandidateValue{Percentage: &domain.PercentageValue{Value: value}},
		}, true

	case domain.PriceAmountOff:
		if value.IsZero() {
			return domain.DiscountCandidate{}, false
		}
		return domain.DiscountCandidate{
			Message: fmt.Sprintf("£%s OFF PRODUCT", value.StringFixed(2)),
			Targets: target,
			Value:   domain.CandidateValue{FixedAmount: &domain.AmountValue{Amount: value}},
		}, true

	case domain.PriceExactPrice:
		return domain.DiscountCandidate{
			Message: "SET EXACT PRICE",
			Targets: target,
			Value:   domain.CandidateValue{FixedPrice: &domain.AmountValue{Amount: value}},
		}, true

	default:
		return domain.DiscountCandidate{}, false
	}
}
