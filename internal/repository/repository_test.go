package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/pricevault/tierkit/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "tierkit-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	shopID := "shop-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetDiscount", func(t *testing.T) {
		record := &domain.DiscountRecord{
			ProductID: "prod-001",
			Title:     "Bulk bundle",
			Metafield: `{"scope": {"all": true}, "tiers": [{"quantity": 3, "priceType": "percentage", "priceValue": 10}]}`,
			Enabled:   true,
		}

		if err := repo.SaveDiscount(ctx, shopID, record); err != nil {
			t.Fatalf("SaveDiscount failed: %v", err)
		}

		retrieved, err := repo.GetDiscount(ctx, shopID, "prod-001")
		if err != nil {
			t.Fatalf("GetDiscount failed: %v", err)
		}

		if retrieved.ProductID != record.ProductID {
			t.Errorf("expected ProductID %s, got %s", record.ProductID, retrieved.ProductID)
		}
		if retrieved.Metafield != record.Metafield {
			t.Errorf("expected metafield preserved verbatim, got %q", retrieved.Metafield)
		}
		if retrieved.ShopID != shopID {
			t.Errorf("expected ShopID %s, got %s", shopID, retrieved.ShopID)
		}
		if !retrieved.Enabled {
			t.Error("expected enabled record")
		}
	})

	t.Run("UpsertDiscount", func(t *testing.T) {
		record := &domain.DiscountRecord{
			ProductID: "prod-001",
			Title:     "Bulk bundle v2",
			Metafield: `{"scope": {"all": true}, "tiers": []}`,
			Enabled:   true,
		}

		if err := repo.SaveDiscount(ctx, shopID, record); err != nil {
			t.Fatalf("SaveDiscount (update) failed: %v", err)
		}

		retrieved, err := repo.GetDiscount(ctx, shopID, "prod-001")
		if err != nil {
			t.Fatalf("GetDiscount failed: %v", err)
		}
		if retrieved.Title != "Bulk bundle v2" {
			t.Errorf("expected updated title, got %q", retrieved.Title)
		}
	})

	t.Run("ShopIsolation", func(t *testing.T) {
		otherShop := "shop-002"

		_, err := repo.GetDiscount(ctx, otherShop, "prod-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different shop, got: %v", err)
		}
	})

	t.Run("RequiresShopID", func(t *testing.T) {
		record := &domain.DiscountRecord{ProductID: "prod-test"}

		if err := repo.SaveDiscount(ctx, "", record); err == nil {
			t.Error("expected error for empty shopID")
		}

		if _, err := repo.GetDiscount(ctx, "", "prod-001"); err == nil {
			t.Error("expected error for empty shopID")
		}
	})

	t.Run("ListDiscounts", func(t *testing.T) {
		second := &domain.DiscountRecord{
			ProductID: "prod-002",
			Title:     "Second bundle",
			Metafield: `{"productIds": ["prod-002"]}`,
			Enabled:   true,
		}
		if err := repo.SaveDiscount(ctx, shopID, second); err != nil {
			t.Fatalf("SaveDiscount failed: %v", err)
		}

		records, err := repo.ListDiscounts(ctx, shopID)
		if err != nil {
			t.Fatalf("ListDiscounts failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 discounts, got %d", len(records))
		}
	})

	t.Run("DeleteDiscount", func(t *testing.T) {
		if err := repo.DeleteDiscount(ctx, shopID, "prod-002"); err != nil {
			t.Fatalf("DeleteDiscount failed: %v", err)
		}

		_, err := repo.GetDiscount(ctx, shopID, "prod-002")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}

		if err := repo.DeleteDiscount(ctx, shopID, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound deleting missing record, got: %v", err)
		}
	})

	t.Run("SaveAndGetWidgetSettings", func(t *testing.T) {
		settings := &domain.WidgetSettings{
			ID:        "widget-001",
			ProductID: "prod-001",
			Template:  domain.WidgetTemplateQuantityBreaks,
			Settings:  json.RawMessage(`{"accentColor": "#2a9d8f", "showSavings": true}`),
			Enabled:   true,
		}

		if err := repo.SaveWidgetSettings(ctx, shopID, settings); err != nil {
			t.Fatalf("SaveWidgetSettings failed: %v", err)
		}

		retrieved, err := repo.GetWidgetSettings(ctx, shopID, "prod-001")
		if err != nil {
			t.Fatalf("GetWidgetSettings failed: %v", err)
		}

		if retrieved.Template != domain.WidgetTemplateQuantityBreaks {
			t.Errorf("expected template %s, got %s", domain.WidgetTemplateQuantityBreaks, retrieved.Template)
		}

		var blob map[string]any
		if err := json.Unmarshal(retrieved.Settings, &blob); err != nil {
			t.Fatalf("settings blob not valid JSON: %v", err)
		}
		if blob["accentColor"] != "#2a9d8f" {
			t.Errorf("expected settings blob preserved, got %v", blob)
		}
	})

	t.Run("ListAndDeleteWidgetSettings", func(t *testing.T) {
		all, err := repo.ListWidgetSettings(ctx, shopID)
		if err != nil {
			t.Fatalf("ListWidgetSettings failed: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected 1 widget settings record, got %d", len(all))
		}

		if err := repo.DeleteWidgetSettings(ctx, shopID, "prod-001"); err != nil {
			t.Fatalf("DeleteWidgetSettings failed: %v", err)
		}

		if _, err := repo.GetWidgetSettings(ctx, shopID, "prod-001"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}
	})

	t.Run("SaveAndGetEvaluation", func(t *testing.T) {
		record := &domain.EvaluationRecord{
			ID:             "eval-001",
			CartID:         "cart-001",
			ProductID:      "prod-001",
			Status:         domain.StatusApplied,
			CandidateCount: 2,
			GiftCount:      1,
			Timestamp:      time.Now().UTC(),
			Metadata:       domain.EvaluationMetadata{TraceID: "trace-001", TiersLoaded: 3},
		}

		if err := repo.SaveEvaluation(ctx, shopID, record); err != nil {
			t.Fatalf("SaveEvaluation failed: %v", err)
		}

		retrieved, err := repo.GetEvaluation(ctx, shopID, record.ID)
		if err != nil {
			t.Fatalf("GetEvaluation failed: %v", err)
		}

		if retrieved.Status != domain.StatusApplied {
			t.Errorf("expected Status %s, got %s", domain.StatusApplied, retrieved.Status)
		}
		if retrieved.CandidateCount != 2 || retrieved.GiftCount != 1 {
			t.Errorf("expected counts preserved, got %d/%d", retrieved.CandidateCount, retrieved.GiftCount)
		}
		if retrieved.Metadata.TraceID != "trace-001" {
			t.Errorf("expected metadata preserved, got %+v", retrieved.Metadata)
		}
	})

	t.Run("CountEvaluations", func(t *testing.T) {
		count, err := repo.CountEvaluations(ctx, shopID, time.Now().Add(-1*time.Hour))
		if err != nil {
			t.Fatalf("CountEvaluations failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 evaluation, got %d", count)
		}

		count, err = repo.CountEvaluations(ctx, shopID, time.Now().Add(1*time.Hour))
		if err != nil {
			t.Fatalf("CountEvaluations failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 evaluations in the future, got %d", count)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetDiscount(ctx, shopID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetEvaluation(ctx, shopID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
