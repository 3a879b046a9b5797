package inventory

import (
	"time"

	"github.com/beataims/backend/internal/domain/shared"
)

// LedgerDirection classifies a stock-affecting event.
type LedgerDirection string

const (
	LedgerDirectionDeduct    LedgerDirection = "deduct"
	LedgerDirectionReplenish LedgerDirection = "replenish"
	LedgerDirectionAdjust    LedgerDirection = "adjust"
)

// IsValid checks if the direction is valid
func (d LedgerDirection) IsValid() bool {
	switch d {
	case LedgerDirectionDeduct, LedgerDirectionReplenish, LedgerDirectionAdjust:
		return true
	}
	return false
}

// LedgerEntry is an append-only record of a single stock-affecting event.
// Entries are never mutated or deleted by normal operation; together they
// form the audit trail reconciled against Product.Quantity.
type LedgerEntry struct {
	shared.BaseEntity
	ProductID  uint            `gorm:"not null;index"`
	BatchID    *uint           `gorm:"index"`
	Quantity   int             `gorm:"not null"`
	Direction  LedgerDirection `gorm:"type:varchar(20);not null;index"`
	RecordedAt time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// NewLedgerEntry creates a new ledger entry
func NewLedgerEntry(productID uint, batchID *uint, quantity int, direction LedgerDirection) (*LedgerEntry, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !direction.IsValid() {
		return nil, shared.ErrInvalidInput
	}
	return &LedgerEntry{
		ProductID:  productID,
		BatchID:    batchID,
		Quantity:   quantity,
		Direction:  direction,
		RecordedAt: time.Now(),
	}, nil
}
