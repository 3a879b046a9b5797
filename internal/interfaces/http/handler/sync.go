package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appsync "github.com/beataims/backend/internal/application/sync"
	"github.com/beataims/backend/internal/domain/shared"
	domainsync "github.com/beataims/backend/internal/domain/sync"
	"github.com/beataims/backend/internal/infrastructure/cache"
	"github.com/beataims/backend/internal/infrastructure/pool"
)

// StockUpdatePayload is the webhook body pushed by the inventory service. The
// quantity is an absolute snapshot, never a delta.
type StockUpdatePayload struct {
	ProductID   uint       `json:"product_id" binding:"required"`
	ProductName string     `json:"product_name"`
	Quantity    *int       `json:"quantity" binding:"omitempty,gte=0"`
	Threshold   int        `json:"threshold" binding:"gte=0"`
	Status      string     `json:"status"`
	Timestamp   *time.Time `json:"timestamp"`
}

// StockUpdateResult reports whether the snapshot was applied or recognized as
// a stale duplicate.
type StockUpdateResult struct {
	Applied bool `json:"applied"`
}

// SyncHandler serves the webhook receiver and the manual reconciliation run.
type SyncHandler struct {
	BaseHandler
	pool       *pool.Pool
	factory    appsync.RepositoryFactory
	guard      cache.SnapshotGuard
	reconciler *appsync.Reconciler
	log        *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(p *pool.Pool, factory appsync.RepositoryFactory, guard cache.SnapshotGuard, reconciler *appsync.Reconciler, log *zap.Logger) *SyncHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncHandler{
		pool:       p,
		factory:    factory,
		guard:      guard,
		reconciler: reconciler,
		log:        log.Named("sync_handler"),
	}
}

// RegisterRoutes registers sync routes on the API group.
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/inventory-webhook/stock-update", h.StockUpdate)
	rg.GET("/sync/run", h.RunSweep)
}

// StockUpdate applies one pushed stock snapshot. Delivery may be duplicated
// or reordered; the snapshot guard keeps only the newest stamp per product,
// so replays and stragglers are acknowledged without being applied.
func (h *SyncHandler) StockUpdate(c *gin.Context) {
	var payload StockUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	stamp := time.Now()
	if payload.Timestamp != nil {
		stamp = *payload.Timestamp
	}

	ctx := c.Request.Context()
	key := strconv.FormatUint(uint64(payload.ProductID), 10)
	fresh, err := h.guard.Check(ctx, key, stamp)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !fresh {
		h.log.Debug("stale stock snapshot ignored",
			zap.Uint("product_id", payload.ProductID),
			zap.Time("stamp", stamp))
		h.Success(c, StockUpdateResult{Applied: false})
		return
	}

	err = h.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		repos := h.factory(tx)

		mapping, err := repos.Mappings.FindByExternalID(ctx, payload.ProductID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			mapping = &domainsync.ItemMapping{
				ExternalID: payload.ProductID,
				Source:     domainsync.MappingSourceInventory,
			}
		case err != nil:
			return err
		}

		if payload.ProductName != "" {
			mapping.Name = payload.ProductName
		}
		if payload.Quantity != nil {
			mapping.Quantity = *payload.Quantity
		}
		if payload.Threshold > 0 {
			mapping.Threshold = payload.Threshold
		}
		if payload.Status != "" {
			mapping.Status = payload.Status
		}
		return repos.Mappings.Save(ctx, mapping)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// Recorded only after the write landed: a failed apply must not make the
	// sender's retry look like a replay.
	if _, err := h.guard.Observe(ctx, key, stamp); err != nil {
		h.log.Warn("failed to record snapshot stamp",
			zap.Uint("product_id", payload.ProductID),
			zap.Error(err))
	}

	h.log.Info("stock snapshot applied",
		zap.Uint("product_id", payload.ProductID),
		zap.Time("stamp", stamp))
	h.Success(c, StockUpdateResult{Applied: true})
}

// RunSweep triggers one reconciliation pass outside the normal schedule.
func (h *SyncHandler) RunSweep(c *gin.Context) {
	report, err := h.reconciler.RunOnce(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
