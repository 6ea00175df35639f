package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require shopID for strict multi-shop isolation.
type Repository interface {
	// Discount configuration operations
	SaveDiscount(ctx context.Context, shopID string, record *DiscountRecord) error
	GetDiscount(ctx context.Context, shopID string, productID string) (*DiscountRecord, error)
	ListDiscounts(ctx context.Context, shopID string) ([]*DiscountRecord, error)
	DeleteDiscount(ctx context.Context, shopID string, productID string) error

	// Widget settings operations
	SaveWidgetSettings(ctx context.Context, shopID string, settings *WidgetSettings) error
	GetWidgetSettings(ctx context.Context, shopID string, productID string) (*WidgetSettings, error)
	ListWidgetSettings(ctx context.Context, shopID string) ([]*WidgetSettings, error)
	DeleteWidgetSettings(ctx context.Context, shopID string, productID string) error

	// Evaluation audit records
	SaveEvaluation(ctx context.Context, shopID string, record *EvaluationRecord) error
	GetEvaluation(ctx context.Context, shopID string, evalID string) (*EvaluationRecord, error)
	CountEvaluations(ctx context.Context, shopID string, since time.Time) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
