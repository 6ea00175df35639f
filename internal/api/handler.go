package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pricevault/tierkit/internal/domain"
	"github.com/pricevault/tierkit/internal/engine"
	"github.com/pricevault/tierkit/internal/repository"
	"github.com/pricevault/tierkit/internal/stats"
)

// configCacheTTL bounds how stale a cached parsed configuration may get when
// an invalidation event is lost.
const configCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	evaluator *engine.Evaluator
	stats     *stats.Service
	version   string
	mode      domain.AuditMode
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, evaluator *engine.Evaluator, statsSvc *stats.Service, version string, mode domain.AuditMode) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		evaluator: evaluator,
		stats:     statsSvc,
		version:   version,
		mode:      mode,
	}
}

// EvaluateRequest is the request body for POST /evaluate. The caller either
// embeds the discount context inline (the pricing-function path) or names a
// product whose stored configuration should be used.
type EvaluateRequest struct {
	Cart      domain.Cart             `json:"cart"`
	ProductID string                  `json:"productId,omitempty"`
	Discount  *domain.DiscountContext `json:"discount,omitempty"`
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	shopID := GetShopID(ctx)
	traceID := GetTraceID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Cart.Lines) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "cart must contain at least one line",
		})
		return
	}

	// Resolve the configuration: an inline discount context wins; otherwise
	// look up the stored configuration for the named product.
	var cfg *domain.DiscountConfiguration
	var classes []domain.DiscountClass

	switch {
	case req.Discount != nil:
		parsed := engine.ParseConfiguration(req.Discount.Metafield.Value)
		cfg = &parsed
		classes = req.Discount.Classes

	case req.ProductID != "":
		loaded, err := h.loadConfiguration(ctx, shopID, req.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error": "no discount configuration for product",
				})
				return
			}
			slog.Error("failed to load configuration",
				"shop_id", shopID,
				"product_id", req.ProductID,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load discount configuration",
			})
			return
		}
		cfg = loaded
		classes = []domain.DiscountClass{domain.DiscountClassProduct}

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "discount or productId is required",
		})
		return
	}

	batch, err := h.evaluator.EvaluateParsed(&req.Cart, classes, cfg)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	record := engine.BuildRecord(&engine.RecordInput{
		ShopID:      shopID,
		CartID:      req.Cart.ID,
		ProductID:   req.ProductID,
		TraceID:     traceID,
		Batch:       batch,
		TiersLoaded: len(cfg.Tiers),
		LinesInCart: len(req.Cart.Lines),
		StartTime:   start,
	})

	h.persistRecord(ctx, shopID, record)

	if h.stats != nil {
		if _, err := h.stats.RecordEvaluation(ctx, shopID, time.Hour); err != nil {
			slog.Warn("failed to record evaluation counter",
				"shop_id", shopID,
				"error", err,
			)
		}
	}

	resp := domain.EvaluateResponse{
		EvaluationID: record.ID,
		Status:       record.Status,
		Batch:        *batch,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// persistRecord routes the audit record through the bus (async mode, the
// worker saves it) or straight to the repository. A failed save never fails
// the evaluation; pricing results matter more than the audit trail.
func (h *Handler) persistRecord(ctx context.Context, shopID string, record *domain.EvaluationRecord) {
	if h.mode == domain.AuditAsync && h.bus != nil {
		payload, err := json.Marshal(record)
		if err == nil {
			err = h.bus.Publish(ctx, shopID, domain.TopicEvaluationCompleted, payload)
		}
		if err != nil {
			slog.Error("failed to publish evaluation record",
				"evaluation_id", record.ID,
				"error", err,
			)
		}
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveEvaluation(ctx, shopID, record); err != nil {
			slog.Error("failed to save evaluation",
				"evaluation_id", record.ID,
				"error", err,
			)
		}
	}
}

// loadConfiguration resolves the parsed configuration for a product, checking
// the cache before falling back to the stored metafield.
func (h *Handler) loadConfiguration(ctx context.Context, shopID string, productID string) (*domain.DiscountConfiguration, error) {
	if h.cache != nil {
		if cfg, err := h.cache.GetConfiguration(ctx, shopID, productID); err == nil && cfg != nil {
			return cfg, nil
		}
	}

	if h.repo == nil {
		return nil, errors.New("repository not available")
	}

	record, err := h.repo.GetDiscount(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}

	cfg := engine.ParseConfiguration(record.Metafield)

	if h.cache != nil {
		if err := h.cache.SetConfiguration(ctx, shopID, productID, &cfg, configCacheTTL); err != nil {
			slog.Warn("failed to cache configuration",
				"shop_id", shopID,
				"product_id", productID,
				"error", err,
			)
		}
	}

	return &cfg, nil
}

// GetEvaluation retrieves an evaluation audit record by ID.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)
	evalID := chi.URLParam(r, "id")

	if evalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "evaluation id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	eval, err := h.repo.GetEvaluation(ctx, shopID, evalID)
	if err != nil {
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "evaluation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// SaveDiscountRequest is the request body for POST /discounts. The metafield
// is stored verbatim; it is parsed into the canonical configuration at
// evaluation time.
type SaveDiscountRequest struct {
	ProductID string `json:"productId"`
	Title     string `json:"title,omitempty"`
	Metafield string `json:"metafield"`
}

// configUpdatePayload is published on the bus when a configuration changes.
type configUpdatePayload struct {
	ShopID    string `json:"shopId"`
	ProductID string `json:"productId"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// SaveDiscount creates or replaces a product's discount configuration.
func (h *Handler) SaveDiscount(w http.ResponseWriter, r *http.Request) {
	var req SaveDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	h.upsertDiscount(w, r, req, http.StatusCreated)
}

// UpdateDiscount replaces the configuration for the product named in the URL.
func (h *Handler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req SaveDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ProductID != "" && req.ProductID != productID {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "productId in body does not match URL",
		})
		return
	}
	req.ProductID = productID

	h.upsertDiscount(w, r, req, http.StatusOK)
}

func (h *Handler) upsertDiscount(w http.ResponseWriter, r *http.Request, req SaveDiscountRequest, status int) {
	ctx := r.Context()
	shopID := GetShopID(ctx)

	if req.ProductID == "" || req.Metafield == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "productId and metafield are required",
		})
		return
	}

	// Malformed JSON degrades to no-discount at evaluation time, so storing
	// it would silently disable the configuration. Reject it at authoring
	// time instead, where the merchant can still fix it.
	if !json.Valid([]byte(req.Metafield)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "metafield must be valid JSON",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	record := &domain.DiscountRecord{
		ShopID:    shopID,
		ProductID: req.ProductID,
		Title:     req.Title,
		Metafield: req.Metafield,
		Enabled:   true,
	}

	if err := h.repo.SaveDiscount(ctx, shopID, record); err != nil {
		slog.Error("failed to save discount", "product_id", req.ProductID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save discount",
		})
		return
	}

	h.invalidateConfiguration(ctx, shopID, req.ProductID, false)

	slog.Info("discount saved", "shop_id", shopID, "product_id", req.ProductID)
	writeJSON(w, status, map[string]interface{}{
		"discount": record,
	})
}

// ListDiscounts returns all enabled discount configurations for the shop.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	discounts, err := h.repo.ListDiscounts(ctx, shopID)
	if err != nil {
		slog.Error("failed to list discounts", "shop_id", shopID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list discounts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"discounts": discounts,
		"count":     len(discounts),
	})
}

// GetDiscount retrieves a product's discount configuration.
func (h *Handler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)
	productID := chi.URLParam(r, "productId")

	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "product id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	record, err := h.repo.GetDiscount(ctx, shopID, productID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "discount not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// DeleteDiscount disables a product's discount configuration.
func (h *Handler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)
	productID := chi.URLParam(r, "productId")

	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "product id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteDiscount(ctx, shopID, productID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "discount not found",
		})
		return
	}

	h.invalidateConfiguration(ctx, shopID, productID, true)

	slog.Info("discount disabled", "shop_id", shopID, "product_id", productID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "discount disabled",
	})
}

// invalidateConfiguration drops the cached parsed configuration and notifies
// subscribers. The direct cache delete covers the sync path; the event covers
// workers holding their own caches.
func (h *Handler) invalidateConfiguration(ctx context.Context, shopID string, productID string, deleted bool) {
	if h.cache != nil {
		if err := h.cache.Delete(ctx, shopID, "cfg:"+productID); err != nil {
			slog.Warn("failed to invalidate cached configuration",
				"shop_id", shopID,
				"product_id", productID,
				"error", err,
			)
		}
	}

	if h.bus != nil {
		payload, err := json.Marshal(configUpdatePayload{
			ShopID:    shopID,
			ProductID: productID,
			Deleted:   deleted,
		})
		if err == nil {
			err = h.bus.Publish(ctx, shopID, domain.TopicConfigUpdated, payload)
		}
		if err != nil {
			slog.Warn("failed to publish config update",
				"shop_id", shopID,
				"product_id", productID,
				"error", err,
			)
		}
	}
}

// SaveWidgetRequest is the request body for POST /widgets.
type SaveWidgetRequest struct {
	ProductID string          `json:"productId"`
	Template  string          `json:"template,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

// SaveWidget creates or replaces a product's storefront widget settings.
func (h *Handler) SaveWidget(w http.ResponseWriter, r *http.Request) {
	var req SaveWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	h.upsertWidget(w, r, req, http.StatusCreated)
}

// UpdateWidget replaces the widget settings for the product named in the URL.
func (h *Handler) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req SaveWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ProductID != "" && req.ProductID != productID {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "productId in body does not match URL",
		})
		return
	}
	req.ProductID = productID

	h.upsertWidget(w, r, req, http.StatusOK)
}

func (h *Handler) upsertWidget(w http.ResponseWriter, r *http.Request, req SaveWidgetRequest, status int) {
	ctx := r.Context()
	shopID := GetShopID(ctx)

	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "productId is required",
		})
		return
	}

	template := req.Template
	if template == "" {
		template = domain.WidgetTemplateQuantityBreaks
	}
	if template != domain.WidgetTemplateQuantityBreaks && template != domain.WidgetTemplateBxgy {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown widget template",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	settings := &domain.WidgetSettings{
		ID:        uuid.New().String(),
		ShopID:    shopID,
		ProductID: req.ProductID,
		Template:  template,
		Settings:  req.Settings,
		Enabled:   true,
	}

	if err := h.repo.SaveWidgetSettings(ctx, shopID, settings); err != nil {
		slog.Error("failed to save widget settings", "product_id", req.ProductID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save widget settings",
		})
		return
	}

	slog.Info("widget settings saved", "shop_id", shopID, "product_id", req.ProductID)
	writeJSON(w, status, map[string]interface{}{
		"widget": settings,
	})
}

// ListWidgets returns all enabled widget settings for the shop.
func (h *Handler) ListWidgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	widgets, err := h.repo.ListWidgetSettings(ctx, shopID)
	if err != nil {
		slog.Error("failed to list widget settings", "shop_id", shopID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list widget settings",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"widgets": widgets,
		"count":   len(widgets),
	})
}

// GetWidget retrieves a product's widget settings.
func (h *Handler) GetWidget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)
	productID := chi.URLParam(r, "productId")

	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "product id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	settings, err := h.repo.GetWidgetSettings(ctx, shopID, productID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "widget settings not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// DeleteWidget disables a product's widget settings.
func (h *Handler) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)
	productID := chi.URLParam(r, "productId")

	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "product id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteWidgetSettings(ctx, shopID, productID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "widget settings not found",
		})
		return
	}

	slog.Info("widget settings disabled", "shop_id", shopID, "product_id", productID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "widget settings disabled",
	})
}

// DisplayTier is one row of the storefront widget's tier table.
type DisplayTier struct {
	MinQuantity int    `json:"minQuantity"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	Label       string `json:"label"`
	Gift        bool   `json:"gift,omitempty"`
}

// StorefrontWidget is the combined payload the storefront renderer consumes:
// presentation settings plus the display form of the discount tiers.
type StorefrontWidget struct {
	ProductID string          `json:"productId"`
	Template  string          `json:"template"`
	Settings  json.RawMessage `json:"settings"`
	Tiers     []DisplayTier   `json:"tiers"`
}

// GetStorefrontWidget handles GET /storefront/widget?productId=...
func (h *Handler) GetStorefrontWidget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)
	productID := r.URL.Query().Get("productId")

	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "productId query parameter is required",
		})
		return
	}

	cfg, err := h.loadConfiguration(ctx, shopID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no discount configuration for product",
			})
			return
		}
		slog.Error("failed to load configuration",
			"shop_id", shopID,
			"product_id", productID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load discount configuration",
		})
		return
	}

	payload := StorefrontWidget{
		ProductID: productID,
		Template:  domain.WidgetTemplateQuantityBreaks,
		Settings:  json.RawMessage("{}"),
		Tiers:     displayTiers(cfg.Tiers),
	}

	// Widget settings are optional; a product without them renders with the
	// default template.
	if h.repo != nil {
		if settings, err := h.repo.GetWidgetSettings(ctx, shopID, productID); err == nil {
			payload.Template = settings.Template
			if len(settings.Settings) > 0 {
				payload.Settings = settings.Settings
			}
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

// displayTiers converts valid tiers into their display form, sorted by
// ascending quantity threshold.
func displayTiers(tiers []domain.Tier) []DisplayTier {
	out := make([]DisplayTier, 0, len(tiers))
	for _, t := range tiers {
		if !t.Valid() {
			continue
		}

		d := DisplayTier{
			MinQuantity: t.MinQuantity,
			Type:        string(t.PriceRule.Type),
			Value:       t.PriceRule.Value.String(),
			Gift:        t.GiftVariantID != "",
		}

		switch t.PriceRule.Type {
		case domain.PricePercentage:
			d.Label = t.PriceRule.Value.String() + "% off"
		case domain.PriceAmountOff:
			d.Label = "£" + t.PriceRule.Value.StringFixed(2) + " off"
		case domain.PriceExactPrice:
			d.Label = "£" + t.PriceRule.Value.StringFixed(2) + " each"
		}

		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinQuantity < out[j].MinQuantity
	})

	return out
}

// Stats returns windowed evaluation counts for the shop.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := GetShopID(ctx)

	if h.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "stats not available",
		})
		return
	}

	snap, err := h.stats.GetSnapshot(ctx, shopID)
	if err != nil {
		slog.Error("failed to build stats snapshot", "shop_id", shopID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build stats snapshot",
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check event bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
