package sync

import (
	"context"

	"github.com/beataims/backend/internal/domain/inventory"
)

// MappingRepository defines persistence operations for item mappings on the
// point-of-sale side.
type MappingRepository interface {
	// FindSynced lists all mappings that mirror inventory products.
	FindSynced(ctx context.Context) ([]ItemMapping, error)

	// FindByExternalID finds the mapping that mirrors an inventory product
	FindByExternalID(ctx context.Context, externalID uint) (*ItemMapping, error)

	// Save creates or updates a mapping
	Save(ctx context.Context, mapping *ItemMapping) error

	// DeleteByExternalIDs prunes mappings whose inventory products are gone.
	DeleteByExternalIDs(ctx context.Context, externalIDs []uint) (int64, error)
}

// RemoteNotifier pushes stock snapshots to the downstream service. The call
// is best-effort: the caller logs and swallows failures, and the
// reconciliation sweep repairs anything a lost push left behind.
type RemoteNotifier interface {
	PushStockUpdate(ctx context.Context, snapshot inventory.StockChanged) error
}
