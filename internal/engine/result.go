package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/pricevault/tierkit/internal/domain"
)

// RecordInput contains everything needed to build an audit record for one
// evaluation call.
type RecordInput struct {
	ShopID      string
	CartID      string
	ProductID   string
	TraceID     string
	Batch       *domain.OperationBatch
	TiersLoaded int
	LinesInCart int
	StartTime   time.Time
}

// BuildRecord assembles the persisted audit record from an evaluation result.
func BuildRecord(input *RecordInput) *domain.EvaluationRecord {
	candidateCount := input.Batch.CandidateCount()

	status := domain.StatusSkipped
	if candidateCount > 0 {
		status = domain.StatusApplied
	}

	return &domain.EvaluationRecord{
		ID:             uuid.New().String(),
		ShopID:         input.ShopID,
		CartID:         input.CartID,
		ProductID:      input.ProductID,
		Status:         status,
		CandidateCount: candidateCount,
		GiftCount:      countGifts(input.Batch),
		Timestamp:      time.Now().UTC(),
		Metadata: domain.EvaluationMetadata{
			TraceID:        input.TraceID,
			TotalMs:        time.Since(input.StartTime).Milliseconds(),
			LinesEvaluated: input.LinesInCart,
			TiersLoaded:    input.TiersLoaded,
			EngineVersion:  EngineVersion,
		},
	}
}

// HasGift reports whether the batch contains a free-gift candidate.
func HasGift(batch *domain.OperationBatch) bool {
	return countGifts(batch) > 0
}

func countGifts(batch *domain.OperationBatch) int {
	n := 0
	for _, op := range batch.Operations {
		if op.ProductDiscountsAdd == nil {
			continue
		}
		for _, c := range op.ProductDiscountsAdd.Candidates {
			if c.Message == GiftMessage {
				n++
			}
		}
	}
	return n
}
