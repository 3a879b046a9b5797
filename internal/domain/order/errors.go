package order

import "github.com/beataims/backend/internal/domain/shared"

var (
	// ErrEmptyOrder indicates an order with no lines.
	ErrEmptyOrder = shared.NewDomainError("EMPTY_ORDER", "Order must contain at least one line")

	// ErrNonPositiveTotal indicates an order whose total is zero or negative.
	ErrNonPositiveTotal = shared.NewDomainError("NON_POSITIVE_TOTAL", "Order total must be greater than zero")
)
