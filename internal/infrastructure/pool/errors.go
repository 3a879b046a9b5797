package pool

import "github.com/beataims/backend/internal/domain/shared"

var (
	// ErrPoolExhausted indicates no pooled connection could be leased after
	// bounded retries and the direct-connection fallback was unavailable.
	ErrPoolExhausted = shared.NewDomainError("POOL_EXHAUSTED", "No database connection available")

	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = shared.NewDomainError("POOL_CLOSED", "Connection pool is closed")
)
