package inventory

import (
	"time"

	"github.com/beataims/backend/internal/domain/shared"
)

// StockBatch is one received lot of a product. ReceivedAt is the FIFO
// ordering key. Quantity only ever decreases after creation; exhausted
// batches are kept for audit and never deleted by the fulfillment path.
type StockBatch struct {
	shared.BaseEntity
	ProductID        uint       `gorm:"not null;index:idx_batch_product_received,priority:1"`
	Quantity         int        `gorm:"not null"`
	ReceivedQuantity int        `gorm:"not null"`
	ReceivedAt       time.Time  `gorm:"not null;index:idx_batch_product_received,priority:2"`
	SupplierRef      *string    `gorm:"type:varchar(100)"`
	ExpiryDate       *time.Time `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (StockBatch) TableName() string {
	return "stock_batches"
}

// NewStockBatch creates a new stock batch
func NewStockBatch(productID uint, quantity int, receivedAt time.Time, supplierRef *string, expiryDate *time.Time) (*StockBatch, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &StockBatch{
		ProductID:        productID,
		Quantity:         quantity,
		ReceivedQuantity: quantity,
		ReceivedAt:       receivedAt,
		SupplierRef:      supplierRef,
		ExpiryDate:       expiryDate,
	}, nil
}

// HasStock returns true if the batch still has available quantity.
func (b *StockBatch) HasStock() bool {
	return b.Quantity > 0
}

// IsExpired returns true if the batch has expired
func (b *StockBatch) IsExpired() bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(time.Now())
}

// Deduct reduces the batch quantity and returns the amount actually taken,
// which may be less than requested when the batch has insufficient stock.
// The batch never goes below zero.
func (b *StockBatch) Deduct(quantity int) int {
	if quantity <= 0 {
		return 0
	}
	if quantity >= b.Quantity {
		taken := b.Quantity
		b.Quantity = 0
		return taken
	}
	b.Quantity -= quantity
	return quantity
}
