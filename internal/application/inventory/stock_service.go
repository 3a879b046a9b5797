// Package inventory implements catalog and stock maintenance: product
// CRUD, replenishment, and manual quantity adjustment. Every mutation runs
// inside a pooled transaction and keeps the product quantity cache equal to
// the sum of its open batches.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beataims/backend/internal/domain/inventory"
	"github.com/beataims/backend/internal/domain/shared"
	"github.com/beataims/backend/internal/infrastructure/pool"
)

// Repositories bundles the per-transaction repository set for stock work.
type Repositories struct {
	Products inventory.ProductRepository
	Batches  inventory.StockBatchRepository
	Ledger   inventory.LedgerRepository
}

// RepositoryFactory builds the repository set bound to tx.
type RepositoryFactory func(tx *gorm.DB) Repositories

// StockEventSink receives committed stock changes.
type StockEventSink interface {
	Publish(event inventory.StockChanged)
}

// CreateProductRequest is the input to CreateProduct.
type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required,gt=0"`
	ProcessType string          `json:"process_type" binding:"required,oneof=ReadyMade ToBeMade"`
	Threshold   int             `json:"threshold" binding:"gte=0"`
}

// ReplenishRequest is the input to Replenish.
type ReplenishRequest struct {
	Quantity    int        `json:"quantity" binding:"required,gt=0"`
	SupplierRef *string    `json:"supplier_ref"`
	ExpiryDate  *time.Time `json:"expiry_date"`
}

// AdjustRequest sets a product's absolute quantity.
type AdjustRequest struct {
	Quantity int `json:"quantity" binding:"gte=0"`
}

// ProductView is the read model returned by queries: the product plus its
// derived availability status.
type ProductView struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ProcessType string          `json:"process_type"`
	Quantity    int             `json:"quantity"`
	Threshold   int             `json:"threshold"`
	Status      string          `json:"status"`
}

func viewOf(p *inventory.Product) ProductView {
	return ProductView{
		ID:          p.ID,
		Name:        p.Name,
		UnitPrice:   p.UnitPrice,
		ProcessType: p.ProcessType.String(),
		Quantity:    p.Quantity,
		Threshold:   p.Threshold,
		Status:      string(p.Status()),
	}
}

// StockService maintains products and their stock.
type StockService struct {
	pool    *pool.Pool
	factory RepositoryFactory
	sinks   []StockEventSink
	log     *zap.Logger
}

// NewStockService creates a new StockService
func NewStockService(p *pool.Pool, factory RepositoryFactory, log *zap.Logger, sinks ...StockEventSink) *StockService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockService{
		pool:    p,
		factory: factory,
		sinks:   sinks,
		log:     log.Named("stock"),
	}
}

// CreateProduct adds a product to the catalog.
func (s *StockService) CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductView, error) {
	product, err := inventory.NewProduct(req.Name, req.UnitPrice, inventory.ProcessType(req.ProcessType), req.Threshold)
	if err != nil {
		return nil, err
	}

	var view ProductView
	err = s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		repos := s.factory(tx)
		if err := repos.Products.Save(ctx, product); err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}
		view = viewOf(product)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListProducts lists products, optionally filtered by process type.
func (s *StockService) ListProducts(ctx context.Context, processType *inventory.ProcessType) ([]ProductView, error) {
	var views []ProductView
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		repos := s.factory(tx)
		products, err := repos.Products.FindAll(ctx, processType)
		if err != nil {
			return err
		}
		views = make([]ProductView, 0, len(products))
		for i := range products {
			views = append(views, viewOf(&products[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// GetProduct returns one product with derived status.
func (s *StockService) GetProduct(ctx context.Context, id uint) (*ProductView, error) {
	var view ProductView
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		repos := s.factory(tx)
		product, err := repos.Products.FindByID(ctx, id)
		if err != nil {
			return err
		}
		view = viewOf(product)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Replenish records a stock-in: a new batch, a replenish ledger entry, and
// the quantity cache incremented, all in one transaction.
func (s *StockService) Replenish(ctx context.Context, productID uint, req ReplenishRequest) (*ProductView, error) {
	if req.Quantity <= 0 {
		return nil, shared.ErrInvalidInput
	}

	var (
		view  ProductView
		event *inventory.StockChanged
	)
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		repos := s.factory(tx)
		event = nil

		product, err := repos.Products.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if !product.IsReadyMade() {
			return shared.ErrInvalidState
		}

		batch, err := inventory.NewStockBatch(productID, req.Quantity, time.Now(), req.SupplierRef, req.ExpiryDate)
		if err != nil {
			return err
		}
		if err := repos.Batches.Save(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}

		entry, err := inventory.NewLedgerEntry(productID, &batch.ID, req.Quantity, inventory.LedgerDirectionReplenish)
		if err != nil {
			return err
		}
		if err := repos.Ledger.Append(ctx, entry); err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		product.Quantity += req.Quantity
		if err := repos.Products.Save(ctx, product); err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}

		view = viewOf(product)
		e := inventory.NewStockChanged(product)
		event = &e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(event)
	s.log.Info("stock replenished",
		zap.Uint("product_id", productID),
		zap.Int("quantity", req.Quantity))
	return &view, nil
}

// Adjust sets a product's absolute quantity. A decrease consumes batches
// FIFO like a sale; an increase lands in a fresh adjustment batch. Either
// way the batch sum and the quantity cache stay equal.
func (s *StockService) Adjust(ctx context.Context, productID uint, req AdjustRequest) (*ProductView, error) {
	if req.Quantity < 0 {
		return nil, shared.ErrInvalidInput
	}

	var (
		view  ProductView
		event *inventory.StockChanged
	)
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		repos := s.factory(tx)
		event = nil

		product, err := repos.Products.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if !product.IsReadyMade() {
			return shared.ErrInvalidState
		}

		delta := req.Quantity - product.Quantity
		switch {
		case delta == 0:
			view = viewOf(product)
			return nil

		case delta < 0:
			batches, err := repos.Batches.FindOpenByProduct(ctx, productID)
			if err != nil {
				return err
			}
			plan, err := inventory.PlanFIFO(-delta, batches)
			if err != nil {
				return err
			}
			if !plan.FullyFulfilled {
				s.log.Error("adjustment exceeds batch stock",
					zap.Uint("product_id", productID),
					zap.Int("cached_quantity", product.Quantity),
					zap.Int("target", req.Quantity))
				return inventory.ErrConsistencyFault
			}

			byID := make(map[uint]*inventory.StockBatch, len(batches))
			for i := range batches {
				byID[batches[i].ID] = &batches[i]
			}
			touched := make([]*inventory.StockBatch, 0, len(plan.Deductions))
			for _, d := range plan.Deductions {
				touched = append(touched, byID[d.BatchID])
			}
			if err := inventory.ApplyPlan(touched, plan); err != nil {
				return err
			}
			if err := repos.Batches.SaveAll(ctx, touched); err != nil {
				return fmt.Errorf("failed to save batches: %w", err)
			}

		default:
			batch, err := inventory.NewStockBatch(productID, delta, time.Now(), nil, nil)
			if err != nil {
				return err
			}
			if err := repos.Batches.Save(ctx, batch); err != nil {
				return fmt.Errorf("failed to save batch: %w", err)
			}
		}

		magnitude := delta
		if magnitude < 0 {
			magnitude = -magnitude
		}
		entry, err := inventory.NewLedgerEntry(productID, nil, magnitude, inventory.LedgerDirectionAdjust)
		if err != nil {
			return err
		}
		if err := repos.Ledger.Append(ctx, entry); err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		product.Quantity = req.Quantity
		if err := repos.Products.Save(ctx, product); err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}

		view = viewOf(product)
		e := inventory.NewStockChanged(product)
		event = &e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(event)
	s.log.Info("stock adjusted",
		zap.Uint("product_id", productID),
		zap.Int("quantity", req.Quantity))
	return &view, nil
}

func (s *StockService) publish(event *inventory.StockChanged) {
	if event == nil {
		return
	}
	for _, sink := range s.sinks {
		sink.Publish(*event)
	}
}
