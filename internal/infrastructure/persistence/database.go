package persistence

import (
	"database/sql"
	"fmt"

	// Registers the pgx database/sql driver used by the pool opener.
	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/beataims/backend/internal/domain/inventory"
	"github.com/beataims/backend/internal/domain/order"
	"github.com/beataims/backend/internal/domain/sync"
	"github.com/beataims/backend/internal/infrastructure/config"
	"github.com/beataims/backend/internal/infrastructure/pool"
)

// PostgresOpener returns a pool.Opener for the configured postgres database.
func PostgresOpener(cfg *config.DatabaseConfig) pool.Opener {
	return func() (*sql.DB, error) {
		db, err := sql.Open("pgx", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres handle: %w", err)
		}
		return db, nil
	}
}

// PostgresDialector binds a gorm postgres dialector to an existing
// connection, so sessions run on the exact connection the pool leased.
func PostgresDialector(conn gorm.ConnPool) gorm.Dialector {
	return postgres.New(postgres.Config{Conn: conn})
}

// Migrate creates or updates the schema for all persistent entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&inventory.Product{},
		&inventory.StockBatch{},
		&inventory.LedgerEntry{},
		&order.Order{},
		&order.OrderLine{},
		&order.SaleRecord{},
		&sync.ItemMapping{},
	)
}
