package order

import (
	"time"

	"github.com/beataims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Order is one completed sale. Orders and their lines are created atomically
// with the stock deductions that back them; an order with no lines must
// never be observable.
type Order struct {
	shared.BaseEntity
	CustomerName  string          `gorm:"type:varchar(255);not null"`
	PaymentMethod string          `gorm:"type:varchar(50);not null"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalItems    int             `gorm:"not null"`
	Lines         []OrderLine     `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// OrderLine is one product position inside an order. ProductName and
// UnitPrice are copied at the time of sale so historical orders are immune
// to later catalog changes.
type OrderLine struct {
	shared.BaseEntity
	OrderID     uint            `gorm:"not null;index"`
	ProductID   uint            `gorm:"not null;index"`
	ProductName string          `gorm:"type:varchar(255);not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

// TableName returns the table name for GORM
func (OrderLine) TableName() string {
	return "order_lines"
}

// LineTotal returns quantity times the price snapshot.
func (l *OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewOrder assembles an order from its lines, recomputing the totals from
// the price snapshots.
func NewOrder(customerName, paymentMethod string, lines []OrderLine) (*Order, error) {
	if customerName == "" || paymentMethod == "" {
		return nil, shared.ErrInvalidInput
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	total := decimal.Zero
	items := 0
	for i := range lines {
		if lines[i].Quantity <= 0 {
			return nil, shared.ErrInvalidInput
		}
		total = total.Add(lines[i].LineTotal())
		items += lines[i].Quantity
	}
	if !total.IsPositive() {
		return nil, ErrNonPositiveTotal
	}

	return &Order{
		CustomerName:  customerName,
		PaymentMethod: paymentMethod,
		TotalAmount:   total,
		TotalItems:    items,
		Lines:         lines,
	}, nil
}

// SaleDay truncates a timestamp to the day key used by sale records.
func SaleDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
