package inventory

import (
	"context"
	"database/sql"
	"path/filepath"
	gosync "sync"
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

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stock_test.db")
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
	}
}

func newService(t *testing.T) (*StockService, *capturedEvents, *pool.Pool) {
	t.Helper()
	p := newTestPool(t)
	events := &capturedEvents{}
	return NewStockService(p, testFactory, nil, events), events, p
}

func TestStockService_CreateAndQuery(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	created, err := svc.CreateProduct(ctx, CreateProductRequest{
		Name:        "Croissant",
		UnitPrice:   decimal.NewFromFloat(3.50),
		ProcessType: "ReadyMade",
		Threshold:   5,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Out of Stock", created.Status)

	t.Run("GetProduct returns the derived status", func(t *testing.T) {
		view, err := svc.GetProduct(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Croissant", view.Name)
		assert.Equal(t, "Out of Stock", view.Status)
	})

	t.Run("GetProduct unknown id", func(t *testing.T) {
		_, err := svc.GetProduct(ctx, 999)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("ListProducts filters by process type", func(t *testing.T) {
		_, err := svc.CreateProduct(ctx, CreateProductRequest{
			Name:        "Americano",
			UnitPrice:   decimal.NewFromFloat(2.25),
			ProcessType: "ToBeMade",
		})
		require.NoError(t, err)

		ready := inventory.ProcessTypeReadyMade
		views, err := svc.ListProducts(ctx, &ready)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "Croissant", views[0].Name)

		all, err := svc.ListProducts(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("invalid process type is rejected", func(t *testing.T) {
		_, err := svc.CreateProduct(ctx, CreateProductRequest{
			Name:        "Mystery",
			UnitPrice:   decimal.NewFromFloat(1),
			ProcessType: "Imaginary",
		})
		assert.ErrorIs(t, err, inventory.ErrInvalidProcessType)
	})
}

func TestStockService_Replenish(t *testing.T) {
	ctx := context.Background()
	svc, events, p := newService(t)

	created, err := svc.CreateProduct(ctx, CreateProductRequest{
		Name:        "Croissant",
		UnitPrice:   decimal.NewFromFloat(3.50),
		ProcessType: "ReadyMade",
		Threshold:   5,
	})
	require.NoError(t, err)

	view, err := svc.Replenish(ctx, created.ID, ReplenishRequest{Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, view.Quantity)
	assert.Equal(t, "In Stock", view.Status)

	t.Run("creates a batch and a replenish ledger entry", func(t *testing.T) {
		require.NoError(t, p.WithTransaction(ctx, func(tx *gorm.DB) error {
			repos := testFactory(tx)

			batches, err := repos.Batches.FindOpenByProduct(ctx, created.ID)
			require.NoError(t, err)
			require.Len(t, batches, 1)
			assert.Equal(t, 10, batches[0].Quantity)

			entries, err := repos.Ledger.FindByProduct(ctx, created.ID, 0)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, inventory.LedgerDirectionReplenish, entries[0].Direction)
			return nil
		}))
	})

	t.Run("emits an absolute snapshot", func(t *testing.T) {
		all := events.all()
		require.Len(t, all, 1)
		assert.Equal(t, 10, all[0].Quantity)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := svc.Replenish(ctx, created.ID, ReplenishRequest{Quantity: 0})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects ToBeMade products", func(t *testing.T) {
		tbm, err := svc.CreateProduct(ctx, CreateProductRequest{
			Name:        "Americano",
			UnitPrice:   decimal.NewFromFloat(2.25),
			ProcessType: "ToBeMade",
		})
		require.NoError(t, err)

		_, err = svc.Replenish(ctx, tbm.ID, ReplenishRequest{Quantity: 5})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestStockService_Adjust(t *testing.T) {
	ctx := context.Background()
	svc, _, p := newService(t)

	created, err := svc.CreateProduct(ctx, CreateProductRequest{
		Name:        "Croissant",
		UnitPrice:   decimal.NewFromFloat(3.50),
		ProcessType: "ReadyMade",
		Threshold:   2,
	})
	require.NoError(t, err)
	_, err = svc.Replenish(ctx, created.ID, ReplenishRequest{Quantity: 10})
	require.NoError(t, err)

	t.Run("adjusting down consumes batches FIFO", func(t *testing.T) {
		view, err := svc.Adjust(ctx, created.ID, AdjustRequest{Quantity: 4})
		require.NoError(t, err)
		assert.Equal(t, 4, view.Quantity)

		require.NoError(t, p.WithTransaction(ctx, func(tx *gorm.DB) error {
			repos := testFactory(tx)
			batches, err := repos.Batches.FindOpenByProduct(ctx, created.ID)
			require.NoError(t, err)

			total := 0
			for _, b := range batches {
				total += b.Quantity
			}
			assert.Equal(t, 4, total)

			entries, err := repos.Ledger.FindByProduct(ctx, created.ID, 1)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, inventory.LedgerDirectionAdjust, entries[0].Direction)
			assert.Equal(t, 6, entries[0].Quantity)
			return nil
		}))
	})

	t.Run("adjusting up lands in a fresh batch", func(t *testing.T) {
		view, err := svc.Adjust(ctx, created.ID, AdjustRequest{Quantity: 9})
		require.NoError(t, err)
		assert.Equal(t, 9, view.Quantity)

		require.NoError(t, p.WithTransaction(ctx, func(tx *gorm.DB) error {
			batches, err := testFactory(tx).Batches.FindOpenByProduct(ctx, created.ID)
			require.NoError(t, err)

			total := 0
			for _, b := range batches {
				total += b.Quantity
			}
			assert.Equal(t, 9, total)
			return nil
		}))
	})

	t.Run("no-op adjustment writes nothing", func(t *testing.T) {
		before, err := svc.GetProduct(ctx, created.ID)
		require.NoError(t, err)

		view, err := svc.Adjust(ctx, created.ID, AdjustRequest{Quantity: before.Quantity})
		require.NoError(t, err)
		assert.Equal(t, before.Quantity, view.Quantity)
	})

	t.Run("negative target is rejected", func(t *testing.T) {
		_, err := svc.Adjust(ctx, created.ID, AdjustRequest{Quantity: -1})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects ToBeMade products", func(t *testing.T) {
		tbm, err := svc.CreateProduct(ctx, CreateProductRequest{
			Name:        "Americano",
			UnitPrice:   decimal.NewFromFloat(2.25),
			ProcessType: "ToBeMade",
		})
		require.NoError(t, err)

		_, err = svc.Adjust(ctx, tbm.ID, AdjustRequest{Quantity: 5})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}
