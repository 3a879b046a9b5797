package order

import (
	"context"
	"database/sql"
	"path/filepath"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/beataims/backend/internal/domain/inventory"
	"github.com/beataims/backend/internal/domain/shared"
	"github.com/beataims/backend/internal/infrastructure/persistence"
	"github.com/beataims/backend/internal/infrastructure/pool"
)

type capturedEvents struct {
	mu     gosync.Mutex
	events []inventory.StockChanged
}

func (c *capturedEvents) Publish(event inventory.StockChanged) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturedEvents) all() []inventory.StockChanged {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]inventory.StockChanged(nil), c.events...)
}

func (c *capturedEvents) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fulfillment_test.db")
	p, err := pool.New(pool.Config{
		Size:           2,
		AcquireRetries: 2,
		RetryBaseDelay: 10 * time.Millisecond,
		AcquireTimeout: time.Second,
		LeakWindow:     time.Minute,
		MaxDirect:      1,
	}, func() (*sql.DB, error) {
		return sql.Open("sqlite3", path)
	}, func(conn gorm.ConnPool) gorm.Dialector {
		return &sqlite.Dialector{Conn: conn}
	}, nil)
	require.NoError(t, err)
	t.Cleanup(p.Stop)

	require.NoError(t, p.WithTransaction(context.Background(), persistence.Migrate))
	return p
}

func testFactory(tx *gorm.DB) Repositories {
	return Repositories{
		Products: persistence.NewGormProductRepository(tx),
		Batches:  persistence.NewGormStockBatchRepository(tx),
		Ledger:   persistence.NewGormLedgerRepository(tx),
		Orders:   persistence.NewGormOrderRepository(tx),
		Sales:    persistence.NewGormSaleRecordRepository(tx),
	}
}

type fixture struct {
	pool   *pool.Pool
	svc    *FulfillmentService
	events *capturedEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := newTestPool(t)
	events := &capturedEvents{}
	return &fixture{
		pool:   p,
		svc:    NewFulfillmentService(p, testFactory, nil, events),
		events: events,
	}
}

func (f *fixture) seedProduct(t *testing.T, name string, processType inventory.ProcessType, price float64, threshold int) *inventory.Product {
	t.Helper()
	product, err := inventory.NewProduct(name, decimal.NewFromFloat(price), processType, threshold)
	require.NoError(t, err)
	require.NoError(t, f.pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return testFactory(tx).Products.Save(context.Background(), product)
	}))
	return product
}

func (f *fixture) seedBatch(t *testing.T, product *inventory.Product, qty int, receivedAt time.Time) *inventory.StockBatch {
	t.Helper()
	batch, err := inventory.NewStockBatch(product.ID, qty, receivedAt, nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		repos := testFactory(tx)
		if err := repos.Batches.Save(context.Background(), batch); err != nil {
			return err
		}
		product.Quantity += qty
		return repos.Products.Save(context.Background(), product)
	}))
	return batch
}

func (f *fixture) reload(t *testing.T, productID uint) *inventory.Product {
	t.Helper()
	var product *inventory.Product
	require.NoError(t, f.pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		var err error
		product, err = testFactory(tx).Products.FindByID(context.Background(), productID)
		return err
	}))
	return product
}

func TestFulfillmentService_PlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("deducts stock, writes ledger and sale record, then rejects oversell", func(t *testing.T) {
		f := newFixture(t)
		product := f.seedProduct(t, "Croissant", inventory.ProcessTypeReadyMade, 3.50, 5)
		f.seedBatch(t, product, 10, time.Now().Add(-time.Hour))

		receipt, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ana",
			PaymentMethod: "cash",
			Lines:         []OrderLineRequest{{ProductID: product.ID, Quantity: 4}},
		})
		require.NoError(t, err)
		assert.NotZero(t, receipt.OrderID)
		assert.Equal(t, 4, receipt.TotalItems)
		assert.True(t, receipt.TotalAmount.Equal(decimal.NewFromFloat(14.00)))

		assert.Equal(t, 6, f.reload(t, product.ID).Quantity)

		require.NoError(t, f.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
			repos := testFactory(tx)

			entries, err := repos.Ledger.FindByProduct(ctx, product.ID, 0)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, inventory.LedgerDirectionDeduct, entries[0].Direction)
			assert.Equal(t, 4, entries[0].Quantity)

			record, err := repos.Sales.FindByProductAndDay(ctx, product.ID, time.Now())
			require.NoError(t, err)
			assert.Equal(t, 4, record.QuantitySold)
			assert.True(t, record.Remitted.Equal(decimal.NewFromFloat(14.00)))
			return nil
		}))

		// Only 6 left: a request for 7 is rejected and changes nothing.
		f.events.reset()
		_, err = f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ben",
			PaymentMethod: "card",
			Lines:         []OrderLineRequest{{ProductID: product.ID, Quantity: 7}},
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, 6, f.reload(t, product.ID).Quantity)
		assert.Empty(t, f.events.all())
	})

	t.Run("consumes batches FIFO across receipt dates", func(t *testing.T) {
		f := newFixture(t)
		product := f.seedProduct(t, "Bagel", inventory.ProcessTypeReadyMade, 2.00, 2)
		t1 := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
		older := f.seedBatch(t, product, 3, t1)
		newer := f.seedBatch(t, product, 5, t1.Add(24*time.Hour))

		_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ana",
			PaymentMethod: "cash",
			Lines:         []OrderLineRequest{{ProductID: product.ID, Quantity: 4}},
		})
		require.NoError(t, err)

		require.NoError(t, f.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
			repos := testFactory(tx)
			batches, err := repos.Batches.FindByProduct(ctx, product.ID)
			require.NoError(t, err)
			require.Len(t, batches, 2)

			for _, b := range batches {
				switch b.ID {
				case older.ID:
					assert.Equal(t, 0, b.Quantity)
				case newer.ID:
					assert.Equal(t, 4, b.Quantity)
				}
			}

			// One ledger entry per consumed batch.
			entries, err := repos.Ledger.FindByProduct(ctx, product.ID, 0)
			require.NoError(t, err)
			assert.Len(t, entries, 2)
			return nil
		}))
	})

	t.Run("whole order rolls back when one line fails", func(t *testing.T) {
		f := newFixture(t)
		stocked := f.seedProduct(t, "Croissant", inventory.ProcessTypeReadyMade, 3.50, 5)
		f.seedBatch(t, stocked, 10, time.Now().Add(-time.Hour))
		empty := f.seedProduct(t, "Bagel", inventory.ProcessTypeReadyMade, 2.00, 2)

		_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ana",
			PaymentMethod: "cash",
			Lines: []OrderLineRequest{
				{ProductID: stocked.ID, Quantity: 2},
				{ProductID: empty.ID, Quantity: 1},
			},
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		// The first line's deduction must not survive.
		assert.Equal(t, 10, f.reload(t, stocked.ID).Quantity)
		require.NoError(t, f.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
			repos := testFactory(tx)
			entries, err := repos.Ledger.FindByProduct(ctx, stocked.ID, 0)
			require.NoError(t, err)
			assert.Empty(t, entries)

			orders, err := repos.Orders.FindRecent(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, orders)
			return nil
		}))
		assert.Empty(t, f.events.all())
	})

	t.Run("cache drift aborts with a consistency fault", func(t *testing.T) {
		f := newFixture(t)
		product := f.seedProduct(t, "Croissant", inventory.ProcessTypeReadyMade, 3.50, 5)
		f.seedBatch(t, product, 2, time.Now().Add(-time.Hour))

		// Inflate the cache past what the batches hold.
		require.NoError(t, f.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
			product.Quantity = 5
			return testFactory(tx).Products.Save(ctx, product)
		}))

		_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ana",
			PaymentMethod: "cash",
			Lines:         []OrderLineRequest{{ProductID: product.ID, Quantity: 4}},
		})
		assert.ErrorIs(t, err, inventory.ErrConsistencyFault)

		// Nothing written, cache untouched for the operator to inspect.
		assert.Equal(t, 5, f.reload(t, product.ID).Quantity)
	})

	t.Run("ToBeMade lines skip stock entirely", func(t *testing.T) {
		f := newFixture(t)
		product := f.seedProduct(t, "Americano", inventory.ProcessTypeToBeMade, 2.25, 0)

		receipt, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ana",
			PaymentMethod: "cash",
			Lines:         []OrderLineRequest{{ProductID: product.ID, Quantity: 30}},
		})
		require.NoError(t, err)
		assert.Equal(t, 30, receipt.TotalItems)
		assert.Equal(t, 0, f.reload(t, product.ID).Quantity)
		assert.Empty(t, f.events.all())
	})

	t.Run("unknown product is a typed rejection", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ana",
			PaymentMethod: "cash",
			Lines:         []OrderLineRequest{{ProductID: 999, Quantity: 1}},
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("invalid request is rejected before touching the database", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{CustomerName: "", PaymentMethod: "cash"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ana",
			PaymentMethod: "cash",
			Lines:         []OrderLineRequest{{ProductID: 1, Quantity: -2}},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("events carry absolute quantities after commit", func(t *testing.T) {
		f := newFixture(t)
		product := f.seedProduct(t, "Croissant", inventory.ProcessTypeReadyMade, 3.50, 5)
		f.seedBatch(t, product, 10, time.Now().Add(-time.Hour))

		_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerName:  "Ana",
			PaymentMethod: "cash",
			Lines:         []OrderLineRequest{{ProductID: product.ID, Quantity: 4}},
		})
		require.NoError(t, err)

		events := f.events.all()
		require.Len(t, events, 1)
		assert.Equal(t, product.ID, events[0].ProductID)
		assert.Equal(t, 6, events[0].Quantity)
		assert.Equal(t, inventory.StockStatusInStock, events[0].Status)
	})

	t.Run("concurrent orders never oversell", func(t *testing.T) {
		f := newFixture(t)
		product := f.seedProduct(t, "Croissant", inventory.ProcessTypeReadyMade, 3.50, 5)
		f.seedBatch(t, product, 10, time.Now().Add(-time.Hour))

		// More demand than stock: at most three of these can succeed. Losers
		// are rejected or fail on write contention; either way the books must
		// balance afterwards.
		const workers = 8
		var deducted atomic.Int64
		var wg gosync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				receipt, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
					CustomerName:  "Ana",
					PaymentMethod: "cash",
					Lines:         []OrderLineRequest{{ProductID: product.ID, Quantity: 3}},
				})
				if err == nil {
					deducted.Add(int64(receipt.TotalItems))
				}
			}()
		}
		close(start)
		wg.Wait()

		sold := int(deducted.Load())
		assert.LessOrEqual(t, sold, 10, "committed more stock than existed")

		remaining := f.reload(t, product.ID).Quantity
		assert.GreaterOrEqual(t, remaining, 0)
		assert.Equal(t, 10, sold+remaining, "quantity cache drifted from committed orders")

		require.NoError(t, f.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
			repos := testFactory(tx)

			batches, err := repos.Batches.FindByProduct(ctx, product.ID)
			require.NoError(t, err)
			batchSum := 0
			for _, b := range batches {
				batchSum += b.Quantity
			}
			assert.Equal(t, remaining, batchSum, "batches disagree with the quantity cache")

			entries, err := repos.Ledger.FindByProduct(ctx, product.ID, 0)
			require.NoError(t, err)
			ledgerSum := 0
			for _, e := range entries {
				if e.Direction == inventory.LedgerDirectionDeduct {
					ledgerSum += e.Quantity
				}
			}
			assert.Equal(t, sold, ledgerSum, "ledger disagrees with committed orders")
			return nil
		}))
	})

	t.Run("repeated sales accumulate one daily sale record", func(t *testing.T) {
		f := newFixture(t)
		product := f.seedProduct(t, "Croissant", inventory.ProcessTypeReadyMade, 3.50, 5)
		f.seedBatch(t, product, 10, time.Now().Add(-time.Hour))

		for i := 0; i < 2; i++ {
			_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
				CustomerName:  "Ana",
				PaymentMethod: "cash",
				Lines:         []OrderLineRequest{{ProductID: product.ID, Quantity: 3}},
			})
			require.NoError(t, err)
		}

		require.NoError(t, f.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
			record, err := testFactory(tx).Sales.FindByProductAndDay(ctx, product.ID, time.Now())
			require.NoError(t, err)
			assert.Equal(t, 6, record.QuantitySold)
			assert.True(t, record.Remitted.Equal(decimal.NewFromFloat(21.00)))
			return nil
		}))
	})
}
