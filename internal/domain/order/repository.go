package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	// Save inserts the order together with its lines as one unit.
	Save(ctx context.Context, o *Order) error

	// FindByID finds an order with its lines
	FindByID(ctx context.Context, id uint) (*Order, error)

	// FindRecent lists the most recent orders with lines preloaded.
	FindRecent(ctx context.Context, limit int) ([]Order, error)
}

// SaleRecordRepository defines persistence operations for sale aggregates.
type SaleRecordRepository interface {
	// Upsert adds quantity and remitted amount to the (product, day)
	// aggregate, creating it when missing. Repeated upserts accumulate.
	Upsert(ctx context.Context, productID uint, day time.Time, quantity int, remitted decimal.Decimal) error

	// FindByProductAndDay finds one aggregate row
	FindByProductAndDay(ctx context.Context, productID uint, day time.Time) (*SaleRecord, error)

	// FindByDay lists all aggregates for a day.
	FindByDay(ctx context.Context, day time.Time) ([]SaleRecord, error)
}
