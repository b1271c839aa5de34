package vault

import (
	"errors"
	"fmt"
)

// Sentinel errors for vault operations.
var (
	// Request rejections. None of these is retryable without changing the request.
	ErrInvalidAmount      = errors.New("vault: amount must be greater than zero")
	ErrInsufficientFunds  = errors.New("vault: insufficient funds")
	ErrNoSuchDepositor    = errors.New("vault: no such depositor")
	ErrUnauthorized       = errors.New("vault: unauthorized")
	ErrArithmeticOverflow = errors.New("vault: arithmetic overflow")

	// Lifecycle errors
	ErrAlreadyInitialized = errors.New("vault: already initialized")
	ErrNotInitialized     = errors.New("vault: not initialized")

	// Transient errors. The ledger is untouched (deposit) or restored (withdraw).
	ErrUnavailable = errors.New("vault: transfer gateway unavailable")

	// Accounting errors. A compensation step failed and operator attention is needed.
	ErrInconsistent = errors.New("vault: ledger inconsistent with pool holdings")
	ErrDiscrepancy  = errors.New("vault: tracked balances exceed pool holdings")

	// Store errors
	ErrNotFound        = errors.New("vault: not found")
	ErrAlreadyExists   = errors.New("vault: already exists")
	ErrVaultNotFound   = errors.New("vault: vault record not found")
	ErrBalanceNotFound = errors.New("vault: balance not found")
	ErrStoreClosed     = errors.New("vault: store is closed")
	ErrLockFailed      = errors.New("vault: could not acquire vault lock")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("vault: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrVaultNotFound) ||
		errors.Is(err, ErrBalanceNotFound)
}

// IsRejection returns true if the request itself was refused and must be
// changed before it can succeed.
func IsRejection(err error) bool {
	if errors.Is(err, ErrInconsistent) {
		return false
	}
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrNoSuchDepositor) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrArithmeticOverflow) ||
		errors.Is(err, ErrAlreadyInitialized)
}

// IsRetryable returns true if the error is temporary and the same request can
// be retried unchanged.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrInconsistent) {
		return false
	}
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrLockFailed)
}
