package observability_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vault"
	gwmemory "github.com/xraph/vault/gateway/memory"
	"github.com/xraph/vault/observability"
	"github.com/xraph/vault/store/memory"
)

func counter(t *testing.T, c observability.Counter) float64 {
	t.Helper()
	pc, ok := c.(prometheus.Counter)
	require.True(t, ok)
	return testutil.ToFloat64(pc)
}

func TestMetricsExtension_TracksOperations(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	bank := gwmemory.New()
	bank.Open("pool", "custodian", 0)
	bank.Open("alice", "alice", 500)

	svc := vault.New(memory.New(), bank,
		vault.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		vault.WithCustody("pool", "custodian"),
		vault.WithPlugin(metrics),
	)
	require.NoError(t, svc.Start(ctx))

	_, err := svc.Initialize(ctx, "admin")
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, "alice", 100)
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, "alice", 40)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, "alice", 1000)
	require.ErrorIs(t, err, vault.ErrInsufficientFunds)

	bank.InjectFault(func(gwmemory.Transfer) error { return errors.New("link down") })
	_, err = svc.Withdraw(ctx, "alice", 10)
	require.ErrorIs(t, err, vault.ErrUnavailable)

	assert.Equal(t, 1.0, counter(t, metrics.VaultInitialized))
	assert.Equal(t, 1.0, counter(t, metrics.Deposits))
	assert.Equal(t, 1.0, counter(t, metrics.Withdrawals))
	assert.Equal(t, 1.0, counter(t, metrics.Rejected))
	assert.Equal(t, 1.0, counter(t, metrics.Failed))
	assert.Equal(t, 1.0, counter(t, metrics.Compensations))
	assert.Equal(t, 0.0, counter(t, metrics.Inconsistent))

	// deposit and withdrawal amount histograms
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "vault_deposit_amount", "vault_withdrawal_amount"))
}

func TestPrometheusFactory_ReusesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := observability.NewPrometheusFactory(reg)

	a := factory.Counter("vault.deposit.completed")
	b := factory.Counter("vault.deposit.completed")
	a.Inc()
	b.Add(2)

	assert.Equal(t, 3.0, counter(t, a))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "vault_deposit_completed_total"))

	// a second factory on the same registry shares the collectors
	other := observability.NewPrometheusFactory(reg)
	other.Counter("vault.deposit.completed").Inc()
	assert.Equal(t, 4.0, counter(t, a))
}

func TestMetricsExtension_Name(t *testing.T) {
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(prometheus.NewRegistry()))
	assert.Equal(t, "observability-metrics", m.Name())
}
