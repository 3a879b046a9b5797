package inventory

import (
	"github.com/beataims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProcessType classifies how a product's stock is tracked.
type ProcessType string

const (
	// ProcessTypeReadyMade is physically stocked; every sale consumes batches.
	ProcessTypeReadyMade ProcessType = "ReadyMade"
	// ProcessTypeToBeMade is made to order; stock is treated as unlimited.
	ProcessTypeToBeMade ProcessType = "ToBeMade"
)

// IsValid checks if the process type is valid
func (t ProcessType) IsValid() bool {
	switch t {
	case ProcessTypeReadyMade, ProcessTypeToBeMade:
		return true
	}
	return false
}

// String returns the string representation
func (t ProcessType) String() string {
	return string(t)
}

// StockStatus is the derived availability of a product.
type StockStatus string

const (
	StockStatusAvailable  StockStatus = "Available"
	StockStatusInStock    StockStatus = "In Stock"
	StockStatusLowStock   StockStatus = "Low Stock"
	StockStatusOutOfStock StockStatus = "Out of Stock"
)

// Product is the inventory-of-record view of a sellable good.
//
// For ReadyMade products Quantity is a denormalized cache that must always
// equal the sum of the product's non-exhausted stock batches; it is only
// mutated together with its batches inside the same transaction.
type Product struct {
	shared.BaseEntity
	Name        string          `gorm:"type:varchar(255);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	ProcessType ProcessType     `gorm:"type:varchar(20);not null;index"`
	Threshold   int             `gorm:"not null;default:0"`
	Quantity    int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new product
func NewProduct(name string, unitPrice decimal.Decimal, processType ProcessType, threshold int) (*Product, error) {
	if name == "" {
		return nil, shared.ErrInvalidInput
	}
	if !processType.IsValid() {
		return nil, ErrInvalidProcessType
	}
	if unitPrice.IsNegative() {
		return nil, shared.ErrInvalidInput
	}
	return &Product{
		Name:        name,
		UnitPrice:   unitPrice,
		ProcessType: processType,
		Threshold:   threshold,
	}, nil
}

// IsReadyMade returns true if the product carries tracked physical stock.
func (p *Product) IsReadyMade() bool {
	return p.ProcessType == ProcessTypeReadyMade
}

// Status derives the availability status from quantity and threshold.
// ToBeMade products are always available regardless of quantity.
func (p *Product) Status() StockStatus {
	if !p.IsReadyMade() {
		return StockStatusAvailable
	}
	switch {
	case p.Quantity <= 0:
		return StockStatusOutOfStock
	case p.Quantity <= p.Threshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// CanFulfill reports whether quantity units can be sold right now.
func (p *Product) CanFulfill(quantity int) bool {
	if !p.IsReadyMade() {
		return true
	}
	return quantity <= p.Quantity
}
