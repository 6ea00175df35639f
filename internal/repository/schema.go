package repository

// Schema definitions for the Tierkit database.
// Compatible with both SQLite and PostgreSQL.

const schemaDiscountConfigs = `
CREATE TABLE IF NOT EXISTS discount_configs (
    shop_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    title TEXT,
    metafield TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (shop_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_discount_configs_shop ON discount_configs(shop_id);
CREATE INDEX IF NOT EXISTS idx_discount_configs_enabled ON discount_configs(shop_id, enabled);
`

const schemaWidgetSettings = `
CREATE TABLE IF NOT EXISTS widget_settings (
    id TEXT NOT NULL,
    shop_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    template TEXT NOT NULL,
    settings TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (shop_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_widget_settings_shop ON widget_settings(shop_id);
CREATE INDEX IF NOT EXISTS idx_widget_settings_enabled ON widget_settings(shop_id, enabled);
`

const schemaEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    shop_id TEXT NOT NULL,
    cart_id TEXT,
    product_id TEXT,
    status TEXT NOT NULL,
    candidate_count INTEGER NOT NULL DEFAULT 0,
    gift_count INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_shop ON evaluations(shop_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(shop_id, status);
CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(shop_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDiscountConfigs,
		schemaWidgetSettings,
		schemaEvaluations,
	}
}
