package inventory

import "github.com/beataims/backend/internal/domain/shared"

var (
	// ErrInvalidProcessType indicates an unknown process type value.
	ErrInvalidProcessType = shared.NewDomainError("INVALID_PROCESS_TYPE", "Unknown product process type")

	// ErrInvalidQuantity indicates a non-positive quantity where a positive
	// one is required.
	ErrInvalidQuantity = shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")

	// ErrConsistencyFault indicates that the cached product quantity and the
	// sum of its batch quantities have drifted apart. The operation that
	// detected it must be rolled back; the fault is logged for operator
	// attention but must not take the service down.
	ErrConsistencyFault = shared.NewDomainError("CONSISTENCY_FAULT", "Cached quantity disagrees with batch quantities")
)
