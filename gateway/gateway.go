// Package gateway defines the asset-transfer mechanism the vault moves funds
// through. Implementations are all-or-nothing: a transfer either moves the
// full amount or nothing at all.
package gateway

import (
	"context"
	"errors"

	"github.com/xraph/vault/types"
)

var (
	// ErrInsufficientBalance is returned when the source account holds less than the amount.
	ErrInsufficientBalance = errors.New("gateway: insufficient balance")
	// ErrUnauthorized is returned when the authority may not move funds out of the source account.
	ErrUnauthorized = errors.New("gateway: unauthorized")
	// ErrUnavailable is returned when the transfer could not be attempted or its
	// outcome is unknown to be a success. Callers must treat it as "not moved".
	ErrUnavailable = errors.New("gateway: unavailable")
	// ErrUnknownAccount is returned for an account the gateway has never seen.
	ErrUnknownAccount = errors.New("gateway: unknown account")
)

// Gateway moves units of the asset between accounts.
type Gateway interface {
	// Transfer moves amount from one account to another, authorized by
	// authority. It returns nil only when the full amount has moved.
	Transfer(ctx context.Context, from, to types.Account, authority types.Identity, amount types.Amount) error

	// Balance returns the units held by account.
	Balance(ctx context.Context, account types.Account) (types.Amount, error)
}

// IsRejection reports whether err is a definitive refusal by the gateway, as
// opposed to a transient failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrUnknownAccount)
}
