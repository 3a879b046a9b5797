package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/beataims/backend/internal/domain/inventory"
)

// GormLedgerRepository implements inventory.LedgerRepository using GORM.
// The ledger is append-only: there is deliberately no update or delete.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append records one ledger entry
func (r *GormLedgerRepository) Append(ctx context.Context, entry *inventory.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByProduct lists ledger entries for a product, newest first
func (r *GormLedgerRepository) FindByProduct(ctx context.Context, productID uint, limit int) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("recorded_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
