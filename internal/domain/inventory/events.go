package inventory

import "time"

// StockChanged describes a committed quantity change on a ReadyMade product.
// It always carries the authoritative absolute quantity, never a delta, so
// any observer applying it last-write-wins converges on a state that existed
// at the source.
type StockChanged struct {
	ProductID   uint        `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	Status      StockStatus `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewStockChanged builds the event from the product's committed state.
func NewStockChanged(p *Product) StockChanged {
	return StockChanged{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    p.Quantity,
		Status:      p.Status(),
		Timestamp:   time.Now(),
	}
}
