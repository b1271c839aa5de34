package store

import (
	"context"

	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/pool"
	"github.com/xraph/vault/types"
)

// Store is the unified storage interface for all vault entities.
// Methods are declared explicitly rather than embedded so every backend
// shows the full surface in one place.
type Store interface {
	// Pool methods
	CreatePool(ctx context.Context, p *pool.Pool) error
	GetPool(ctx context.Context, name string) (*pool.Pool, error)

	// Balance methods
	GetBalance(ctx context.Context, vault string, depositor types.Identity) (*balance.Balance, error)
	PutBalance(ctx context.Context, b *balance.Balance) error
	ListBalances(ctx context.Context, vault string) ([]*balance.Balance, error)

	// Entry methods
	AppendEntry(ctx context.Context, e *entry.Entry) error
	ListEntries(ctx context.Context, vault string, opts entry.ListOpts) ([]*entry.Entry, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ pool.Store    = Store(nil)
	_ balance.Store = Store(nil)
	_ entry.Store   = Store(nil)
)
