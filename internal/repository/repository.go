// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pricevault/tierkit/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDiscount upserts a discount configuration with shop isolation.
func (r *SQLRepository) SaveDiscount(ctx context.Context, shopID string, record *domain.DiscountRecord) error {
	if shopID == "" {
		return fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}
	if record.ProductID == "" {
		return fmt.Errorf("%w: productID is required", ErrInvalidInput)
	}

	enabled := 0
	if record.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO discount_configs (
			shop_id, product_id, title, metafield, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shop_id, product_id) DO UPDATE SET
			title = excluded.title,
			metafield = excluded.metafield,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		shopID, record.ProductID, record.Title,
		record.Metafield, enabled,
		createdAt, now,
	)
	return err
}

// GetDiscount retrieves an enabled discount configuration with shop isolation.
func (r *SQLRepository) GetDiscount(ctx context.Context, shopID string, productID string) (*domain.DiscountRecord, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	query := `
		SELECT shop_id, product_id, title, metafield, enabled, created_at, updated_at
		FROM discount_configs
		WHERE shop_id = ? AND product_id = ? AND enabled = 1
	`

	var record domain.DiscountRecord
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), shopID, productID).Scan(
		&record.ShopID, &record.ProductID, &record.Title,
		&record.Metafield, &enabled,
		&record.CreatedAt, &record.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	record.Enabled = enabled == 1
	return &record, nil
}

// ListDiscounts retrieves all enabled discount configurations for a shop.
func (r *SQLRepository) ListDiscounts(ctx context.Context, shopID string) ([]*domain.DiscountRecord, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	query := `
		SELECT shop_id, product_id, title, metafield, enabled, created_at, updated_at
		FROM discount_configs
		WHERE shop_id = ? AND enabled = 1
		ORDER BY product_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.DiscountRecord
	for rows.Next() {
		var record domain.DiscountRecord
		var enabled int

		if err := rows.Scan(
			&record.ShopID, &record.ProductID, &record.Title,
			&record.Metafield, &enabled,
			&record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, err
		}

		record.Enabled = enabled == 1
		records = append(records, &record)
	}

	return records, rows.Err()
}

// DeleteDiscount soft-deletes a discount configuration by setting enabled = 0.
func (r *SQLRepository) DeleteDiscount(ctx context.Context, shopID string, productID string) error {
	if shopID == "" {
		return fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	query := `
		UPDATE discount_configs
		SET enabled = 0, updated_at = ?
		WHERE shop_id = ? AND product_id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), shopID, productID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveWidgetSettings upserts a product's widget settings with shop isolation.
func (r *SQLRepository) SaveWidgetSettings(ctx context.Context, shopID string, settings *domain.WidgetSettings) error {
	if shopID == "" {
		return fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}
	if settings.ProductID == "" {
		return fmt.Errorf("%w: productID is required", ErrInvalidInput)
	}

	enabled := 0
	if settings.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	createdAt := settings.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	blob := string(settings.Settings)
	if blob == "" {
		blob = "{}"
	}

	query := `
		INSERT INTO widget_settings (
			id, shop_id, product_id, template, settings, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shop_id, product_id) DO UPDATE SET
			id = excluded.id,
			template = excluded.template,
			settings = excluded.settings,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		settings.ID, shopID, settings.ProductID,
		settings.Template, blob, enabled,
		createdAt, now,
	)
	return err
}

// GetWidgetSettings retrieves a product's widget settings with shop isolation.
func (r *SQLRepository) GetWidgetSettings(ctx context.Context, shopID string, productID string) (*domain.WidgetSettings, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, shop_id, product_id, template, settings, enabled, created_at, updated_at
		FROM widget_settings
		WHERE shop_id = ? AND product_id = ? AND enabled = 1
	`

	var settings domain.WidgetSettings
	var blob string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), shopID, productID).Scan(
		&settings.ID, &settings.ShopID, &settings.ProductID,
		&settings.Template, &blob, &enabled,
		&settings.CreatedAt, &settings.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	settings.Settings = json.RawMessage(blob)
	settings.Enabled = enabled == 1
	return &settings, nil
}

// ListWidgetSettings retrieves all enabled widget settings for a shop.
func (r *SQLRepository) ListWidgetSettings(ctx context.Context, shopID string) ([]*domain.WidgetSettings, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, shop_id, product_id, template, settings, enabled, created_at, updated_at
		FROM widget_settings
		WHERE shop_id = ? AND enabled = 1
		ORDER BY product_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*domain.WidgetSettings
	for rows.Next() {
		var settings domain.WidgetSettings
		var blob string
		var enabled int

		if err := rows.Scan(
			&settings.ID, &settings.ShopID, &settings.ProductID,
			&settings.Template, &blob, &enabled,
			&settings.CreatedAt, &settings.UpdatedAt,
		); err != nil {
			return nil, err
		}

		settings.Settings = json.RawMessage(blob)
		settings.Enabled = enabled == 1
		all = append(all, &settings)
	}

	return all, rows.Err()
}

// DeleteWidgetSettings soft-deletes widget settings by setting enabled = 0.
func (r *SQLRepository) DeleteWidgetSettings(ctx context.Context, shopID string, productID string) error {
	if shopID == "" {
		return fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	query := `
		UPDATE widget_settings
		SET enabled = 0, updated_at = ?
		WHERE shop_id = ? AND product_id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), shopID, productID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveEvaluation stores an evaluation audit record with shop isolation.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, shopID string, record *domain.EvaluationRecord) error {
	if shopID == "" {
		return fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	metadata, _ := json.Marshal(record.Metadata)

	query := `
		INSERT INTO evaluations (
			id, shop_id, cart_id, product_id, status,
			candidate_count, gift_count, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		record.ID, shopID, record.CartID, record.ProductID, record.Status,
		record.CandidateCount, record.GiftCount, record.Timestamp,
		string(metadata),
	)
	return err
}

// GetEvaluation retrieves an evaluation record by ID with shop isolation.
func (r *SQLRepository) GetEvaluation(ctx context.Context, shopID string, evalID string) (*domain.EvaluationRecord, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, shop_id, cart_id, product_id, status,
			   candidate_count, gift_count, timestamp, metadata
		FROM evaluations
		WHERE shop_id = ? AND id = ?
	`

	var record domain.EvaluationRecord
	var metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), shopID, evalID).Scan(
		&record.ID, &record.ShopID, &record.CartID, &record.ProductID, &record.Status,
		&record.CandidateCount, &record.GiftCount, &record.Timestamp,
		&metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(metadata), &record.Metadata)

	return &record, nil
}

// CountEvaluations counts evaluations for a shop since a point in time.
func (r *SQLRepository) CountEvaluations(ctx context.Context, shopID string, since time.Time) (int64, error) {
	if shopID == "" {
		return 0, fmt.Errorf("%w: shopID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM evaluations
		WHERE shop_id = ? AND timestamp >= ?
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), shopID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
