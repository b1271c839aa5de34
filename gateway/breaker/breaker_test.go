package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vault/gateway"
	"github.com/xraph/vault/gateway/breaker"
	"github.com/xraph/vault/gateway/memory"
	"github.com/xraph/vault/types"
)

func setup(t *testing.T) (*memory.Bank, *breaker.Gateway) {
	t.Helper()
	bank := memory.New()
	bank.Open("alice-acct", "alice", 100)
	bank.Open("pool", "custodian", 0)

	cfg := breaker.DefaultConfig()
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	return bank, breaker.New("test", bank, cfg)
}

func TestBreakerPassesThrough(t *testing.T) {
	ctx := context.Background()
	bank, gw := setup(t)

	require.NoError(t, gw.Transfer(ctx, "alice-acct", "pool", "alice", 10))
	got, err := gw.Balance(ctx, "pool")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(10), got)
	assert.Len(t, bank.History(), 1)
	assert.Equal(t, "closed", gw.State())
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	ctx := context.Background()
	bank, gw := setup(t)

	outage := errors.New("connection refused")
	bank.InjectFault(func(memory.Transfer) error { return outage })

	assert.ErrorIs(t, gw.Transfer(ctx, "alice-acct", "pool", "alice", 1), outage)
	assert.ErrorIs(t, gw.Transfer(ctx, "alice-acct", "pool", "alice", 1), outage)
	assert.Equal(t, "open", gw.State())

	bank.InjectFault(nil)
	err := gw.Transfer(ctx, "alice-acct", "pool", "alice", 1)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.Empty(t, bank.History(), "open breaker must not reach the gateway")
}

func TestBreakerIgnoresRejections(t *testing.T) {
	ctx := context.Background()
	_, gw := setup(t)

	for range 5 {
		err := gw.Transfer(ctx, "alice-acct", "pool", "alice", 1000)
		assert.ErrorIs(t, err, gateway.ErrInsufficientBalance)
	}
	assert.Equal(t, "closed", gw.State())
}
