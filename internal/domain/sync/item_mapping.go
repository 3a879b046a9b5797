package sync

import (
	"github.com/beataims/backend/internal/domain/shared"
)

// MappingSource tags where a point-of-sale item came from.
type MappingSource string

const (
	// MappingSourceInternal items were created on the point-of-sale side.
	MappingSourceInternal MappingSource = "internal"
	// MappingSourceInventory items mirror a product owned by the
	// inventory-of-record service.
	MappingSourceInventory MappingSource = "inventory"
)

// ItemMapping maps a point-of-sale item to its inventory product. The
// point-of-sale service owns these rows; the inventory service is the data
// source for the quantity and threshold fields it mirrors.
//
// Quantity here is a mirror, not a source of truth: it is only ever
// overwritten with an authoritative snapshot (webhook push or
// reconciliation sweep), applied last-write-wins per product.
type ItemMapping struct {
	shared.BaseEntity
	ExternalID uint          `gorm:"not null;uniqueIndex:idx_mapping_source_external,priority:2"`
	Name       string        `gorm:"type:varchar(255);not null"`
	Quantity   int           `gorm:"not null;default:0"`
	Threshold  int           `gorm:"not null;default:0"`
	Status     string        `gorm:"type:varchar(50)"`
	Source     MappingSource `gorm:"type:varchar(20);not null;uniqueIndex:idx_mapping_source_external,priority:1"`
}

// TableName returns the table name for GORM
func (ItemMapping) TableName() string {
	return "item_mappings"
}

// IsSynced returns true if the item mirrors an inventory product.
func (m *ItemMapping) IsSynced() bool {
	return m.Source == MappingSourceInventory
}
