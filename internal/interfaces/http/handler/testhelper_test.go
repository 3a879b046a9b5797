package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appinventory "github.com/beataims/backend/internal/application/inventory"
	apporder "github.com/beataims/backend/internal/application/order"
	appsync "github.com/beataims/backend/internal/application/sync"
	"github.com/beataims/backend/internal/infrastructure/cache"
	"github.com/beataims/backend/internal/infrastructure/logger"
	"github.com/beataims/backend/internal/infrastructure/persistence"
	"github.com/beataims/backend/internal/infrastructure/pool"
	"github.com/beataims/backend/internal/interfaces/http/dto"
	"github.com/beataims/backend/internal/interfaces/http/router"
)

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "handler_test.db")
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

func inventoryFactory(tx *gorm.DB) appinventory.Repositories {
	return appinventory.Repositories{
		Products: persistence.NewGormProductRepository(tx),
		Batches:  persistence.NewGormStockBatchRepository(tx),
		Ledger:   persistence.NewGormLedgerRepository(tx),
	}
}

func orderFactory(tx *gorm.DB) apporder.Repositories {
	return apporder.Repositories{
		Products: persistence.NewGormProductRepository(tx),
		Batches:  persistence.NewGormStockBatchRepository(tx),
		Ledger:   persistence.NewGormLedgerRepository(tx),
		Orders:   persistence.NewGormOrderRepository(tx),
		Sales:    persistence.NewGormSaleRecordRepository(tx),
	}
}

func syncFactory(tx *gorm.DB) appsync.Repositories {
	return appsync.Repositories{
		Products: persistence.NewGormProductRepository(tx),
		Mappings: persistence.NewGormMappingRepository(tx),
	}
}

type testEnv struct {
	engine *gin.Engine
	pool   *pool.Pool
	guard  *cache.InMemorySnapshotGuard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := newTestPool(t)
	guard := cache.NewInMemorySnapshotGuard(time.Hour)
	t.Cleanup(func() { _ = guard.Close() })

	stock := appinventory.NewStockService(p, inventoryFactory, nil)
	fulfillment := apporder.NewFulfillmentService(p, orderFactory, nil)
	reconciler := appsync.NewReconciler(p, syncFactory, nil)

	engine := gin.New()
	engine.Use(logger.RequestID())

	system := NewSystemHandler(p)
	system.RegisterHealthRoute(engine)

	router.NewRouter(engine).
		Register(NewProductHandler(stock)).
		Register(NewOrderHandler(fulfillment, nil)).
		Register(NewSyncHandler(p, syncFactory, guard, reconciler, nil)).
		Register(system).
		Setup()

	return &testEnv{engine: engine, pool: p, guard: guard}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// decode unwraps the response envelope and unmarshals data into out.
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorInfo  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success, "expected success response, got error: %+v", resp.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Success bool           `json:"success"`
		Error   *dto.ErrorInfo `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func createProduct(t *testing.T, e *testEnv, name string, processType string, threshold int) appinventory.ProductView {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/products", gin.H{
		"name":         name,
		"unit_price":   3.5,
		"process_type": processType,
		"threshold":    threshold,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view appinventory.ProductView
	decode(t, w, &view)
	return view
}

func stockIn(t *testing.T, e *testEnv, productID uint, quantity int) {
	t.Helper()
	w := e.do(t, http.MethodPost,
		"/api/products/"+strconvID(productID)+"/stockin",
		gin.H{"quantity": quantity})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func strconvID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
