// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Fields: fields}
}

// ── Domain error taxonomy ─────────────────────────────────────────────────────
// Services return these; handlers map them onto HTTP status codes.

var (
	ErrToolkitNotFound = errors.New("toolkit not found")
	ErrVariantNotFound = errors.New("variant not found")

	// ErrVersionConflict is returned by the repository when an optimistic save
	// hits a stale version. Services retry; it only reaches the handler when
	// all retries are exhausted.
	ErrVersionConflict = errors.New("toolkit was modified concurrently")

	ErrDuplicateName = errors.New("a toolkit with this name already exists")
)

// InsufficientStockError rejects a debit that exceeds the available stock.
// The message states available vs requested so callers can show it verbatim.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

// IsNotFound reports whether err resolves to a missing toolkit or variant.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrToolkitNotFound) || errors.Is(err, ErrVariantNotFound)
}
