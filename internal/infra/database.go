package infra

import (
	"fmt"

	"fieldops/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx. Schema management
// lives in RunMigrations so callers decide when migrations run.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Unique-violation errors surface as gorm.ErrDuplicatedKey so the
		// repository can map them onto the domain taxonomy.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

// RunMigrations creates/updates the schema and applies the SQL patches.
// Also used by the integration tests against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Toolkit{},
		&model.Variant{},
		&model.StockHistoryEntry{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot fully handle.
// Each statement uses IF NOT EXISTS / existence-check guards so re-running on
// an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Case-insensitive uniqueness of toolkit names lives in the storage
		// layer, not just the application lookup.
		{"unique index on lower(toolkits.name)", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_toolkits_lower_name') THEN
    CREATE UNIQUE INDEX uni_toolkits_lower_name ON toolkits (LOWER(name));
  END IF;
END $$`},

		// Stock can never go negative regardless of what the application does.
		{"check variants.stock_count >= 0", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_variants_stock_count_nonneg') THEN
    ALTER TABLE variants ADD CONSTRAINT chk_variants_stock_count_nonneg CHECK (stock_count >= 0);
  END IF;
END $$`},

		{"check variants.min_stock_level >= 1", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_variants_min_stock_level_pos') THEN
    ALTER TABLE variants ADD CONSTRAINT chk_variants_min_stock_level_pos CHECK (min_stock_level >= 1);
  END IF;
END $$`},

		// Deleting a toolkit (or a variant) takes its whole subtree with it.
		{"cascade variants → toolkits", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_variants_toolkit_cascade') THEN
    ALTER TABLE variants
      ADD CONSTRAINT fk_variants_toolkit_cascade
      FOREIGN KEY (toolkit_id) REFERENCES toolkits(id) ON DELETE CASCADE;
  END IF;
END $$`},

		{"cascade stock_history → variants", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_stock_history_variant_cascade') THEN
    ALTER TABLE stock_history
      ADD CONSTRAINT fk_stock_history_variant_cascade
      FOREIGN KEY (variant_id) REFERENCES variants(id) ON DELETE CASCADE;
  END IF;
END $$`},

		// Ledger reads are always newest-first per variant.
		{"index stock_history (variant_id, created_at desc)", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_stock_history_variant_created') THEN
    CREATE INDEX idx_stock_history_variant_created ON stock_history (variant_id, created_at DESC);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("schema patch %q: %w", p.descr, err)
		}
	}
	return nil
}
