package dto

import "net/http"

// Error codes shared between domain errors and HTTP responses.
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"

	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	ErrCodeEmptyOrder        = "EMPTY_ORDER"
	ErrCodeNonPositiveTotal  = "NON_POSITIVE_TOTAL"
	ErrCodeConsistencyFault  = "CONSISTENCY_FAULT"
	ErrCodePoolExhausted     = "POOL_EXHAUSTED"
	ErrCodePoolClosed        = "POOL_CLOSED"
	ErrCodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
)

// errorCodeHTTPStatus maps error codes to HTTP status codes. Stock rejections
// are client errors: the request asked for more than exists.
var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,

	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeAlreadyExists:     http.StatusConflict,
	ErrCodeInvalidInput:      http.StatusBadRequest,
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusBadRequest,
	ErrCodeEmptyOrder:        http.StatusBadRequest,
	ErrCodeNonPositiveTotal:  http.StatusBadRequest,
	ErrCodeConsistencyFault:  http.StatusInternalServerError,
	ErrCodePoolExhausted:     http.StatusServiceUnavailable,
	ErrCodePoolClosed:        http.StatusServiceUnavailable,
	ErrCodeRemoteUnavailable: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting to 500.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
