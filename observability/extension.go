// Package observability provides a metrics extension for the vault that
// records operation counts and amounts via a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/vault"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/plugin"
	"github.com/xraph/vault/pool"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnVaultInitialized = (*MetricsExtension)(nil)
	_ plugin.OnDeposited        = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawn        = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed  = (*MetricsExtension)(nil)
	_ plugin.OnCompensated      = (*MetricsExtension)(nil)
	_ plugin.OnDiscrepancy      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records vault operation metrics.
// Register it as a vault plugin to track custody activity.
type MetricsExtension struct {
	factory MetricFactory

	// Vault metrics
	VaultInitialized Counter
	Discrepancies    Counter

	// Deposit metrics
	Deposits      Counter
	DepositAmount Histogram

	// Withdrawal metrics
	Withdrawals      Counter
	WithdrawalAmount Histogram

	// Failure metrics
	Rejected      Counter
	Failed        Counter
	Inconsistent  Counter
	Compensations Counter
	Reversals     Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		VaultInitialized: factory.Counter("vault.initialized"),
		Discrepancies:    factory.Counter("vault.discrepancies"),

		Deposits:      factory.Counter("vault.deposit.completed"),
		DepositAmount: factory.Histogram("vault.deposit.amount"),

		Withdrawals:      factory.Counter("vault.withdrawal.completed"),
		WithdrawalAmount: factory.Histogram("vault.withdrawal.amount"),

		Rejected:      factory.Counter("vault.operation.rejected"),
		Failed:        factory.Counter("vault.operation.failed"),
		Inconsistent:  factory.Counter("vault.operation.inconsistent"),
		Compensations: factory.Counter("vault.compensation.completed"),
		Reversals:     factory.Counter("vault.reversal.completed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnVaultInitialized implements plugin.OnVaultInitialized.
func (m *MetricsExtension) OnVaultInitialized(_ context.Context, _ *pool.Pool) error {
	m.VaultInitialized.Inc()
	return nil
}

// OnDeposited implements plugin.OnDeposited.
func (m *MetricsExtension) OnDeposited(_ context.Context, e *entry.Entry) error {
	m.Deposits.Inc()
	m.DepositAmount.Observe(float64(e.Amount))
	return nil
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (m *MetricsExtension) OnWithdrawn(_ context.Context, e *entry.Entry) error {
	m.Withdrawals.Inc()
	m.WithdrawalAmount.Observe(float64(e.Amount))
	return nil
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ *entry.Entry, err error) error {
	switch {
	case errors.Is(err, vault.ErrInconsistent):
		m.Inconsistent.Inc()
	case vault.IsRejection(err):
		m.Rejected.Inc()
	default:
		m.Failed.Inc()
	}
	return nil
}

// OnCompensated implements plugin.OnCompensated.
func (m *MetricsExtension) OnCompensated(_ context.Context, e *entry.Entry) error {
	if e.Kind == entry.KindReversal {
		m.Reversals.Inc()
		return nil
	}
	m.Compensations.Inc()
	return nil
}

// OnDiscrepancy implements plugin.OnDiscrepancy.
func (m *MetricsExtension) OnDiscrepancy(_ context.Context, _ *plugin.Discrepancy) error {
	m.Discrepancies.Inc()
	return nil
}
