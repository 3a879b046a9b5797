// Package order implements order fulfillment: validating a requested sale,
// reserving stock batch-by-batch, and committing the order, its ledger trail,
// and the daily sales aggregates as one atomic unit.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beataims/backend/internal/domain/inventory"
	"github.com/beataims/backend/internal/domain/order"
	"github.com/beataims/backend/internal/domain/shared"
	"github.com/beataims/backend/internal/infrastructure/pool"
)

// Repositories bundles the per-transaction repository set. A factory builds
// it from the transaction handle so every repository in one fulfillment run
// shares the same database transaction.
type Repositories struct {
	Products inventory.ProductRepository
	Batches  inventory.StockBatchRepository
	Ledger   inventory.LedgerRepository
	Orders   order.OrderRepository
	Sales    order.SaleRecordRepository
}

// RepositoryFactory builds the repository set bound to tx.
type RepositoryFactory func(tx *gorm.DB) Repositories

// StockEventSink receives committed stock changes. Publishing happens after
// the transaction commits; sinks must not block the caller.
type StockEventSink interface {
	Publish(event inventory.StockChanged)
}

// OrderLineRequest is one requested position of a sale.
type OrderLineRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

// PlaceOrderRequest is the input to PlaceOrder.
type PlaceOrderRequest struct {
	CustomerName  string             `json:"customer_name" binding:"required"`
	PaymentMethod string             `json:"payment_method" binding:"required"`
	Lines         []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// OrderReceipt is the result of a successfully placed order.
type OrderReceipt struct {
	OrderID     uint            `json:"order_id"`
	CreatedAt   time.Time       `json:"created_at"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// FulfillmentService places orders. The whole state machine - validate,
// reserve, commit - runs inside a single pooled transaction, so an order
// either lands completely or leaves no trace.
type FulfillmentService struct {
	pool    *pool.Pool
	factory RepositoryFactory
	sinks   []StockEventSink
	log     *zap.Logger
}

// NewFulfillmentService creates a new FulfillmentService
func NewFulfillmentService(p *pool.Pool, factory RepositoryFactory, log *zap.Logger, sinks ...StockEventSink) *FulfillmentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FulfillmentService{
		pool:    p,
		factory: factory,
		sinks:   sinks,
		log:     log.Named("fulfillment"),
	}
}

// PlaceOrder validates the request, reserves stock FIFO across batches,
// writes the order, ledger entries and sale aggregates, and commits. Any
// rejection or fault rolls everything back. Stock events are emitted only
// after the transaction has committed.
func (s *FulfillmentService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderReceipt, error) {
	if req.CustomerName == "" || req.PaymentMethod == "" || len(req.Lines) == 0 {
		return nil, shared.ErrInvalidInput
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, shared.ErrInvalidInput
		}
	}

	var (
		receipt *OrderReceipt
		events  []inventory.StockChanged
	)

	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		repos := s.factory(tx)
		events = events[:0]

		lines := make([]order.OrderLine, 0, len(req.Lines))
		for _, lineReq := range req.Lines {
			line, event, err := s.reserveLine(ctx, repos, lineReq)
			if err != nil {
				return err
			}
			lines = append(lines, *line)
			if event != nil {
				events = append(events, *event)
			}
		}

		o, err := order.NewOrder(req.CustomerName, req.PaymentMethod, lines)
		if err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, o); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}

		now := time.Now()
		for i := range o.Lines {
			line := &o.Lines[i]
			if err := repos.Sales.Upsert(ctx, line.ProductID, now, line.Quantity, line.LineTotal()); err != nil {
				return fmt.Errorf("failed to upsert sale record: %w", err)
			}
		}

		receipt = &OrderReceipt{
			OrderID:     o.ID,
			CreatedAt:   o.CreatedAt,
			TotalItems:  o.TotalItems,
			TotalAmount: o.TotalAmount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, event := range events {
		for _, sink := range s.sinks {
			sink.Publish(event)
		}
	}

	s.log.Info("order placed",
		zap.Uint("order_id", receipt.OrderID),
		zap.Int("total_items", receipt.TotalItems),
		zap.String("total_amount", receipt.TotalAmount.String()))
	return receipt, nil
}

// reserveLine validates one requested line and reserves its stock. ReadyMade
// products consume batches FIFO and decrement the quantity cache; ToBeMade
// products skip stock entirely.
func (s *FulfillmentService) reserveLine(ctx context.Context, repos Repositories, lineReq OrderLineRequest) (*order.OrderLine, *inventory.StockChanged, error) {
	product, err := repos.Products.FindByIDForUpdate(ctx, lineReq.ProductID)
	if err != nil {
		return nil, nil, err
	}

	if !product.CanFulfill(lineReq.Quantity) {
		s.log.Info("order rejected: insufficient stock",
			zap.Uint("product_id", product.ID),
			zap.String("product", product.Name),
			zap.Int("requested", lineReq.Quantity),
			zap.Int("available", product.Quantity))
		return nil, nil, shared.ErrInsufficientStock
	}

	line := &order.OrderLine{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    lineReq.Quantity,
		UnitPrice:   product.UnitPrice,
	}

	if !product.IsReadyMade() {
		return line, nil, nil
	}

	batches, err := repos.Batches.FindOpenByProduct(ctx, product.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load batches: %w", err)
	}

	plan, err := inventory.PlanFIFO(lineReq.Quantity, batches)
	if err != nil {
		return nil, nil, err
	}
	if !plan.FullyFulfilled {
		// The quantity cache said yes but the batches cannot cover it: the
		// two views have drifted apart. Abort the whole order.
		s.log.Error("stock cache drifted from batches",
			zap.Uint("product_id", product.ID),
			zap.Int("cached_quantity", product.Quantity),
			zap.Int("requested", lineReq.Quantity),
			zap.Int("covered", plan.TotalDeducted),
			zap.Int("shortage", plan.RemainingShortage))
		return nil, nil, inventory.ErrConsistencyFault
	}

	byID := make(map[uint]*inventory.StockBatch, len(batches))
	touched := make([]*inventory.StockBatch, 0, len(plan.Deductions))
	for i := range batches {
		byID[batches[i].ID] = &batches[i]
	}
	for _, d := range plan.Deductions {
		touched = append(touched, byID[d.BatchID])
	}

	if err := inventory.ApplyPlan(touched, plan); err != nil {
		return nil, nil, err
	}
	if err := repos.Batches.SaveAll(ctx, touched); err != nil {
		return nil, nil, fmt.Errorf("failed to save batches: %w", err)
	}

	for _, d := range plan.Deductions {
		batchID := d.BatchID
		entry, err := inventory.NewLedgerEntry(product.ID, &batchID, d.DeductedQuantity, inventory.LedgerDirectionDeduct)
		if err != nil {
			return nil, nil, err
		}
		if err := repos.Ledger.Append(ctx, entry); err != nil {
			return nil, nil, fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}

	product.Quantity -= plan.TotalDeducted
	if err := repos.Products.Save(ctx, product); err != nil {
		return nil, nil, fmt.Errorf("failed to save product: %w", err)
	}

	event := inventory.NewStockChanged(product)
	return line, &event, nil
}
