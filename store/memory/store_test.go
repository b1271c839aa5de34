package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vault"
	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/id"
	"github.com/xraph/vault/pool"
	"github.com/xraph/vault/store/memory"
	"github.com/xraph/vault/types"
)

func TestPoolLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.GetPool(ctx, "default")
	assert.ErrorIs(t, err, vault.ErrVaultNotFound)

	p := &pool.Pool{
		Entity:        types.NewEntity(),
		ID:            id.NewVaultID(),
		Name:          "default",
		Administrator: "admin",
		Account:       "pool",
		Authority:     "custodian",
	}
	require.NoError(t, s.CreatePool(ctx, p))
	assert.ErrorIs(t, s.CreatePool(ctx, p), vault.ErrAlreadyExists)

	got, err := s.GetPool(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), got.ID.String())
	assert.Equal(t, types.Identity("admin"), got.Administrator)

	got.Administrator = "mallory"
	again, _ := s.GetPool(ctx, "default")
	assert.Equal(t, types.Identity("admin"), again.Administrator, "returned records must be copies")
}

func TestBalanceUpsert(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.GetBalance(ctx, "default", "alice")
	assert.ErrorIs(t, err, vault.ErrBalanceNotFound)

	require.NoError(t, s.PutBalance(ctx, &balance.Balance{Vault: "default", Depositor: "alice", Amount: 10}))
	require.NoError(t, s.PutBalance(ctx, &balance.Balance{Vault: "default", Depositor: "alice", Amount: 25}))
	require.NoError(t, s.PutBalance(ctx, &balance.Balance{Vault: "default", Depositor: "bob", Amount: 0}))
	require.NoError(t, s.PutBalance(ctx, &balance.Balance{Vault: "other", Depositor: "alice", Amount: 99}))

	b, err := s.GetBalance(ctx, "default", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(25), b.Amount)

	all, err := s.ListBalances(ctx, "default")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, types.Identity("alice"), all[0].Depositor)
	assert.Equal(t, types.Identity("bob"), all[1].Depositor)
	assert.True(t, all[1].Amount.IsZero())
}

func TestEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	kinds := []entry.Kind{entry.KindDeposit, entry.KindWithdrawal, entry.KindDeposit}
	for i, k := range kinds {
		require.NoError(t, s.AppendEntry(ctx, &entry.Entry{
			ID:        id.NewEntryID(),
			Vault:     "default",
			Kind:      k,
			Depositor: "alice",
			Amount:    types.Amount(i + 1),
		}))
	}

	all, err := s.ListEntries(ctx, "default", entry.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, types.Amount(3), all[0].Amount)

	deposits, err := s.ListEntries(ctx, "default", entry.ListOpts{Kind: entry.KindDeposit})
	require.NoError(t, err)
	assert.Len(t, deposits, 2)

	page, err := s.ListEntries(ctx, "default", entry.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, types.Amount(2), page[0].Amount)

	none, err := s.ListEntries(ctx, "default", entry.ListOpts{Depositor: "bob"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), vault.ErrStoreClosed)
	_, err := s.GetBalance(ctx, "default", "alice")
	assert.ErrorIs(t, err, vault.ErrStoreClosed)
}
