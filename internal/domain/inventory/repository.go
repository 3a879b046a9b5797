package inventory

import "context"

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uint) (*Product, error)

	// FindByIDForUpdate finds a product and takes a row-level write lock so
	// the validate-then-deduct sequence is serialized by the database.
	FindByIDForUpdate(ctx context.Context, id uint) (*Product, error)

	// FindAll lists products, optionally filtered by process type.
	FindAll(ctx context.Context, processType *ProcessType) ([]Product, error)

	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error

	// Delete deletes a product
	Delete(ctx context.Context, id uint) error
}

// StockBatchRepository defines persistence operations for stock batches.
type StockBatchRepository interface {
	// FindOpenByProduct finds non-exhausted batches for a product in FIFO
	// order (received timestamp ascending, id as tiebreak).
	FindOpenByProduct(ctx context.Context, productID uint) ([]StockBatch, error)

	// FindByProduct finds all batches for a product, exhausted included.
	FindByProduct(ctx context.Context, productID uint) ([]StockBatch, error)

	// Save creates or updates a stock batch
	Save(ctx context.Context, batch *StockBatch) error

	// SaveAll creates or updates multiple stock batches
	SaveAll(ctx context.Context, batches []*StockBatch) error
}

// LedgerRepository defines persistence operations for the append-only ledger.
type LedgerRepository interface {
	// Append inserts a ledger entry. Entries are never updated or deleted.
	Append(ctx context.Context, entry *LedgerEntry) error

	// FindByProduct lists entries for a product, most recent first.
	FindByProduct(ctx context.Context, productID uint, limit int) ([]LedgerEntry, error)
}
