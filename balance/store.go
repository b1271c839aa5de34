package balance

import (
	"context"

	"github.com/xraph/vault/types"
)

type Store interface {
	// GetBalance returns the tracked balance, or a balance-not-found error
	// when the depositor has never been credited.
	GetBalance(ctx context.Context, vault string, depositor types.Identity) (*Balance, error)
	// PutBalance upserts the depositor's balance to b.Amount.
	PutBalance(ctx context.Context, b *Balance) error
	ListBalances(ctx context.Context, vault string) ([]*Balance, error)
}
