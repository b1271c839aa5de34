package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/id"
	"github.com/xraph/vault/types"
)

func TestEntryModelKeepsFullAmountRange(t *testing.T) {
	e := &entry.Entry{
		ID:        id.NewEntryID(),
		Vault:     "default",
		Transfer:  id.NewTransferID(),
		Kind:      entry.KindDeposit,
		Status:    entry.StatusCompleted,
		Depositor: "alice",
		Amount:    types.MaxAmount,
		Balance:   types.MaxAmount,
		CreatedAt: time.Now().UTC(),
	}

	m := toEntryModel(e)
	assert.Equal(t, "18446744073709551615", m.Amount)
	assert.Empty(t, m.Ref, "an unset ref is stored as an empty string")

	got, err := fromEntryModel(m)
	require.NoError(t, err)
	assert.Equal(t, types.MaxAmount, got.Amount)
	assert.True(t, got.Ref.IsNil())
	assert.Equal(t, e.Transfer.String(), got.Transfer.String())
}

func TestBalanceModelRejectsCorruptAmount(t *testing.T) {
	_, err := fromBalanceModel(&balanceModel{Vault: "default", Depositor: "alice", Amount: "-3"})
	assert.Error(t, err)
}
