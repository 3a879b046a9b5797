package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beataims/backend/internal/domain/inventory"
	domainsync "github.com/beataims/backend/internal/domain/sync"
	"github.com/beataims/backend/internal/infrastructure/pool"
)

// Repositories bundles the per-transaction repository set for a sweep.
type Repositories struct {
	Products inventory.ProductRepository
	Mappings domainsync.MappingRepository
}

// RepositoryFactory builds the repository set bound to tx.
type RepositoryFactory func(tx *gorm.DB) Repositories

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	Checked  int   `json:"checked"`
	Upserted int   `json:"upserted"`
	Pruned   int64 `json:"pruned"`
}

// Reconciler periodically walks every ReadyMade product and forces the
// downstream mirror to match: missing or stale mappings are overwritten with
// authoritative snapshots, mappings for vanished products are pruned. The
// sweep makes the push channel safe to lose.
type Reconciler struct {
	pool    *pool.Pool
	factory RepositoryFactory
	log     *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(p *pool.Pool, factory RepositoryFactory, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		pool:    p,
		factory: factory,
		log:     log.Named("reconciler"),
	}
}

// RunOnce executes one full reconciliation pass. A failed pass rolls back
// and the caller's scheduler simply waits for the next tick.
func (r *Reconciler) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	var report ReconcileReport

	err := r.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		repos := r.factory(tx)
		report = ReconcileReport{}

		ready := inventory.ProcessTypeReadyMade
		products, err := repos.Products.FindAll(ctx, &ready)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}

		mappings, err := repos.Mappings.FindSynced(ctx)
		if err != nil {
			return fmt.Errorf("failed to list mappings: %w", err)
		}
		byExternalID := make(map[uint]*domainsync.ItemMapping, len(mappings))
		for i := range mappings {
			byExternalID[mappings[i].ExternalID] = &mappings[i]
		}

		live := make(map[uint]struct{}, len(products))
		for i := range products {
			product := &products[i]
			live[product.ID] = struct{}{}
			report.Checked++

			existing := byExternalID[product.ID]
			if existing != nil && mappingCurrent(existing, product) {
				continue
			}

			if err := repos.Mappings.Save(ctx, snapshotMapping(product)); err != nil {
				return fmt.Errorf("failed to upsert mapping for product %d: %w", product.ID, err)
			}
			report.Upserted++
		}

		// Mappings whose product vanished or stopped being ReadyMade.
		var gone []uint
		for externalID := range byExternalID {
			if _, ok := live[externalID]; !ok {
				gone = append(gone, externalID)
			}
		}
		pruned, err := repos.Mappings.DeleteByExternalIDs(ctx, gone)
		if err != nil {
			return fmt.Errorf("failed to prune mappings: %w", err)
		}
		report.Pruned = pruned
		return nil
	})
	if err != nil {
		r.log.Error("reconciliation sweep failed", zap.Error(err))
		return nil, err
	}

	r.log.Info("reconciliation sweep complete",
		zap.Int("checked", report.Checked),
		zap.Int("upserted", report.Upserted),
		zap.Int64("pruned", report.Pruned))
	return &report, nil
}

func mappingCurrent(m *domainsync.ItemMapping, p *inventory.Product) bool {
	return m.Name == p.Name &&
		m.Quantity == p.Quantity &&
		m.Threshold == p.Threshold &&
		m.Status == string(p.Status())
}

func snapshotMapping(p *inventory.Product) *domainsync.ItemMapping {
	return &domainsync.ItemMapping{
		ExternalID: p.ID,
		Name:       p.Name,
		Quantity:   p.Quantity,
		Threshold:  p.Threshold,
		Status:     string(p.Status()),
		Source:     domainsync.MappingSourceInventory,
	}
}
