// Package vault provides a custodial fungible-asset vault for Go applications.
//
// A single shared pool account receives deposits from many depositors. The
// vault tracks each depositor's contribution and lets a depositor withdraw
// only from their own tracked balance. It provides:
//
//   - A ledger of per-depositor balances with checked, non-wrapping arithmetic
//   - Deposit and withdraw operations that pair a ledger mutation with an
//     external asset transfer and roll back when the transfer fails
//   - Per-vault serialization through an in-process or Redis lock
//   - Pluggable persistence: memory, PostgreSQL, SQLite and MongoDB
//   - An append-only journal of every balance-affecting operation
//   - Reconciliation of tracked balances against the pool's real holdings
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/vault"
//	    "github.com/xraph/vault/store/memory"
//	)
//
//	svc := vault.New(memory.New(), gw,
//	    vault.WithCustody("pool-account", "custodian"),
//	)
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop()
//
//	if _, err := svc.Initialize(ctx, adminIdentity); err != nil {
//	    log.Fatal(err)
//	}
//
//	balance, err := svc.Deposit(ctx, caller, 100)
//
// # Ordering
//
// A deposit validates every ledger failure mode, transfers the asset into the
// pool and only then credits the depositor. If the credit cannot be stored,
// the transfer is reversed.
//
// A withdrawal debits first and transfers second. When the transfer fails,
// times out, is cancelled or panics, the debit is re-credited before the call
// returns. If a compensating step itself fails the error wraps
// ErrInconsistent and an OnDiscrepancy hook fires; it is never absorbed.
//
// # Errors
//
// Rejections (ErrInvalidAmount, ErrInsufficientFunds, ErrNoSuchDepositor,
// ErrUnauthorized, ErrArithmeticOverflow) will fail again unless the request
// changes. ErrUnavailable is safe to retry: the ledger was untouched or has
// been restored. Use IsRejection and IsRetryable to classify.
//
// # TypeID
//
// Vault records and journal entries use TypeID identifiers:
//
//	vault_01h2xcejqtf2nbrexx3vqjhp41  // Vault ID
//	vent_01h455vb4pex5vsknk084sn02q   // Journal entry ID
//	xfer_01h455vb4pex5vsknk084sn02q   // Gateway transfer reference
package vault
