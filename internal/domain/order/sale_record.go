package order

import (
	"time"

	"github.com/beataims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SaleRecord is the per-product, per-day sales aggregate. It is upserted by
// order fulfillment and direct sales and only ever grows; nothing decrements
// a sale record.
type SaleRecord struct {
	shared.BaseEntity
	ProductID    uint            `gorm:"not null;uniqueIndex:idx_sale_product_day,priority:1"`
	SaleDate     time.Time       `gorm:"type:date;not null;uniqueIndex:idx_sale_product_day,priority:2"`
	QuantitySold int             `gorm:"not null;default:0"`
	Remitted     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (SaleRecord) TableName() string {
	return "sale_records"
}

// Accumulate adds a sale to the aggregate.
func (s *SaleRecord) Accumulate(quantity int, remitted decimal.Decimal) {
	s.QuantitySold += quantity
	s.Remitted = s.Remitted.Add(remitted)
}
