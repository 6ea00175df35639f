package domain

import (
	"github.com/shopspring/decimal"
)

// SelectionStrategy tells the pricing context how to apply candidates.
type SelectionStrategy string

// SelectionStrategyAll applies every generated candidate; per-line discounts
// are independent, there is no best-of-batch competition.
const SelectionStrategyAll SelectionStrategy = "ALL"

// PercentageValue is a percent-off value expression.
type PercentageValue struct {
	Value decimal.Decimal `json:"value"`
}

// AmountValue is a currency value expression (fixed amount off or fixed price).
type AmountValue struct {
	Amount decimal.Decimal `json:"amount"`
}

// CandidateValue carries exactly one value-expression variant.
type CandidateValue struct {
	Percentage  *PercentageValue `json:"percentage,omitempty"`
	FixedAmount *AmountValue     `json:"fixedAmount,omitempty"`
	FixedPrice  *AmountValue     `json:"fixedPrice,omitempty"`
}

// CandidateTarget names the cart line a candidate applies to.
type CandidateTarget struct {
	CartLine CartLineTarget `json:"cartLine"`
}

// CartLineTarget is the line id wrapper used on the wire.
type CartLineTarget struct {
	ID string `json:"id"`
}

// DiscountCandidate is a proposed discount application to one cart line.
// Candidates are ephemeral: constructed and consumed within one evaluation.
type DiscountCandidate struct {
	Message string            `json:"message"`
	Targets []CandidateTarget `json:"targets"`
	Value   CandidateValue    `json:"value"`
}

// TargetsLine reports whether the candidate applies to the given line id.
func (c *DiscountCandidate) TargetsLine(lineID string) bool {
	for _, t := range c.Targets {
		if t.CartLine.ID == lineID {
			return true
		}
	}
	return false
}

// ProductDiscountsAdd is the "apply discounts to selected lines" operation.
type ProductDiscountsAdd struct {
	Candidates        []DiscountCandidate `json:"candidates"`
	SelectionStrategy SelectionStrategy   `json:"selectionStrategy"`
}

// Operation is one discount operation in a batch.
type Operation struct {
	ProductDiscountsAdd *ProductDiscountsAdd `json:"productDiscountsAdd,omitempty"`
}

// OperationBatch is the evaluator's output: zero or one product-discount
// operation. An empty batch is a normal outcome, not an error.
type OperationBatch struct {
	Operations []Operation `json:"operations"`
}

// CandidateCount returns the total number of candidates across operations.
func (b *OperationBatch) CandidateCount() int {
	n := 0
	for _, op := range b.Operations {
		if op.ProductDiscountsAdd != nil {
			n += len(op.ProductDiscountsAdd.Candidates)
		}
	}
	return n
}
