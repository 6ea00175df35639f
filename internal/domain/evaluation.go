package domain

import (
	"time"
)

// Evaluation statuses.
const (
	// StatusApplied means at least one candidate was generated.
	StatusApplied = "APPLIED"

	// StatusSkipped means the evaluation ran to completion with no
	// candidates (out of scope, below thresholds, class gated, bad config).
	StatusSkipped = "SKIPPED"
)

// EvaluationMetadata carries processing information for an evaluation.
type EvaluationMetadata struct {
	TraceID        string `json:"traceId"`
	TotalMs        int64  `json:"totalMs"`
	LinesEvaluated int    `json:"linesEvaluated"`
	TiersLoaded    int    `json:"tiersLoaded"`
	EngineVersion  string `json:"engineVersion"`
}

// EvaluationRecord is the persisted audit trail of one evaluation call.
// Candidates themselves are ephemeral; the record keeps counts and timings so
// merchants can see whether and how often their configuration fires.
type EvaluationRecord struct {
	ID             string             `json:"id"`
	ShopID         string             `json:"shopId"`
	CartID         string             `json:"cartId,omitempty"`
	ProductID      string             `json:"productId,omitempty"`
	Status         string             `json:"status"`
	CandidateCount int                `json:"candidateCount"`
	GiftCount      int                `json:"giftCount"`
	Timestamp      time.Time          `json:"timestamp"`
	Metadata       EvaluationMetadata `json:"metadata"`
}

// EvaluateResponse is the API response for an evaluation call.
type EvaluateResponse struct {
	EvaluationID string         `json:"evaluationId"`
	Status       string         `json:"status"`
	Batch        OperationBatch `json:"batch"`
	Metadata     struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}
