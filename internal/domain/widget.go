package domain

import (
	"encoding/json"
	"time"
)

// Widget templates understood by the storefront renderer.
const (
	WidgetTemplateQuantityBreaks = "quantity-breaks"
	WidgetTemplateBxgy           = "bxgy"
)

// WidgetSettings is the presentation blob for a product's storefront widget:
// colors, typography, tier display text. Unrelated to discount math; the
// evaluator never reads it.
type WidgetSettings struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shopId"`
	ProductID string          `json:"productId"`
	Template  string          `json:"template"`
	Settings  json.RawMessage `json:"settings"`
	Enabled   bool            `json:"enabled"`
	CreatedAt time.Time       `json:"createdAt,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt,omitempty"`
}
