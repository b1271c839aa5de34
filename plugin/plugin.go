// Package plugin provides an extensible plugin system for the vault.
// Plugins hook into lifecycle and operation events. Hooks observe; they can
// never change the outcome of the operation that fired them.
package plugin

import (
	"context"

	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/pool"
	"github.com/xraph/vault/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the service starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, svc any) error
}

// OnShutdown is called when the service stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Vault hooks
// ──────────────────────────────────────────────────

// OnVaultInitialized is called once the vault record has been created.
type OnVaultInitialized interface {
	Plugin
	OnVaultInitialized(ctx context.Context, p *pool.Pool) error
}

// OnDeposited is called after a deposit is transferred and credited.
type OnDeposited interface {
	Plugin
	OnDeposited(ctx context.Context, e *entry.Entry) error
}

// OnWithdrawn is called after a withdrawal is debited and transferred.
type OnWithdrawn interface {
	Plugin
	OnWithdrawn(ctx context.Context, e *entry.Entry) error
}

// OnOperationFailed is called when a deposit or withdrawal returns an error.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, e *entry.Entry, err error) error
}

// OnCompensated is called when a failed operation has been rolled back:
// a debit re-credited or a deposit transfer reversed.
type OnCompensated interface {
	Plugin
	OnCompensated(ctx context.Context, e *entry.Entry) error
}

// OnDiscrepancy is called when tracked balances and pool holdings disagree.
type OnDiscrepancy interface {
	Plugin
	OnDiscrepancy(ctx context.Context, d *Discrepancy) error
}

// Discrepancy describes a ledger that no longer matches the pool.
type Discrepancy struct {
	Vault string `json:"vault"`
	// Depositor and Amount are set when a compensation step failed.
	Depositor types.Identity `json:"depositor,omitempty"`
	Amount    types.Amount   `json:"amount,omitempty"`
	// Tracked and Holdings are set by reconciliation.
	Tracked  types.Amount `json:"tracked,omitempty"`
	Holdings types.Amount `json:"holdings,omitempty"`
	Reason   string       `json:"reason"`
}
