package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beataims/backend/internal/domain/order"
	"github.com/beataims/backend/internal/domain/shared"
)

// GormSaleRecordRepository implements order.SaleRecordRepository using GORM
type GormSaleRecordRepository struct {
	db *gorm.DB
}

// NewGormSaleRecordRepository creates a new GormSaleRecordRepository
func NewGormSaleRecordRepository(db *gorm.DB) *GormSaleRecordRepository {
	return &GormSaleRecordRepository{db: db}
}

// Upsert adds quantity and remitted amount to the (product, day) aggregate,
// creating the row when missing. Conflicts resolve by accumulation, so
// repeated sales of the same product on the same day grow one row.
func (r *GormSaleRecordRepository) Upsert(ctx context.Context, productID uint, day time.Time, quantity int, remitted decimal.Decimal) error {
	record := order.SaleRecord{
		ProductID:    productID,
		SaleDate:     order.SaleDay(day),
		QuantitySold: quantity,
		Remitted:     remitted,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "sale_date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity_sold": gorm.Expr("sale_records.quantity_sold + ?", quantity),
			"remitted":      gorm.Expr("sale_records.remitted + ?", remitted),
			"updated_at":    time.Now(),
		}),
	}).Create(&record).Error
}

// FindByProductAndDay finds one aggregate row
func (r *GormSaleRecordRepository) FindByProductAndDay(ctx context.Context, productID uint, day time.Time) (*order.SaleRecord, error) {
	var record order.SaleRecord
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND sale_date = ?", productID, order.SaleDay(day)).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByDay lists all aggregates for a day
func (r *GormSaleRecordRepository) FindByDay(ctx context.Context, day time.Time) ([]order.SaleRecord, error) {
	var records []order.SaleRecord
	if err := r.db.WithContext(ctx).
		Where("sale_date = ?", order.SaleDay(day)).
		Order("product_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
