package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/types"
)

// Ledger tracks per-depositor balances for one vault on top of a balance
// store. It is not safe for concurrent mutation on its own; the Service
// serializes every call under the vault lock.
type Ledger struct {
	store balance.Store
	vault string
}

// NewLedger creates a ledger for the named vault.
func NewLedger(s balance.Store, vault string) *Ledger {
	return &Ledger{store: s, vault: vault}
}

// BalanceOf returns the depositor's tracked balance. A depositor that was
// never credited has a balance of zero.
func (l *Ledger) BalanceOf(ctx context.Context, depositor types.Identity) (types.Amount, error) {
	b, err := l.store.GetBalance(ctx, l.vault, depositor)
	if errors.Is(err, ErrBalanceNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("vault: read balance: %w", err)
	}
	return b.Amount, nil
}

// CheckCredit reports the balance a credit would produce without applying
// it. It fails exactly when Credit would fail for a reason other than the
// store.
func (l *Ledger) CheckCredit(ctx context.Context, depositor types.Identity, amount types.Amount) (types.Amount, error) {
	if amount.IsZero() {
		return 0, ErrInvalidAmount
	}
	current, err := l.BalanceOf(ctx, depositor)
	if err != nil {
		return 0, err
	}
	next, err := current.Add(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
	}
	return next, nil
}

// Credit adds amount to the depositor's balance, creating the entry at zero
// first if it does not exist.
func (l *Ledger) Credit(ctx context.Context, depositor types.Identity, amount types.Amount) (types.Amount, error) {
	next, err := l.CheckCredit(ctx, depositor, amount)
	if err != nil {
		return 0, err
	}
	if err := l.put(ctx, depositor, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Debit subtracts amount from an existing balance. A depositor with no entry
// fails with ErrNoSuchDepositor; one holding less than amount fails with
// ErrInsufficientFunds. Nothing changes on failure.
func (l *Ledger) Debit(ctx context.Context, depositor types.Identity, amount types.Amount) (types.Amount, error) {
	if amount.IsZero() {
		return 0, ErrInvalidAmount
	}
	b, err := l.store.GetBalance(ctx, l.vault, depositor)
	if errors.Is(err, ErrBalanceNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrNoSuchDepositor, depositor)
	}
	if err != nil {
		return 0, fmt.Errorf("vault: read balance: %w", err)
	}
	next, err := b.Amount.Sub(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %s holds %d, requested %d", ErrInsufficientFunds, depositor, b.Amount, amount)
	}
	if err := l.put(ctx, depositor, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Balances returns every tracked balance, including zero entries.
func (l *Ledger) Balances(ctx context.Context) ([]*balance.Balance, error) {
	return l.store.ListBalances(ctx, l.vault)
}

// Total sums every tracked balance.
func (l *Ledger) Total(ctx context.Context) (types.Amount, int, error) {
	all, err := l.Balances(ctx)
	if err != nil {
		return 0, 0, err
	}
	amounts := make([]types.Amount, len(all))
	for i, b := range all {
		amounts[i] = b.Amount
	}
	total, err := types.Sum(amounts...)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
	}
	return total, len(all), nil
}

func (l *Ledger) put(ctx context.Context, depositor types.Identity, amount types.Amount) error {
	b := &balance.Balance{
		Entity:    types.NewEntity(),
		Vault:     l.vault,
		Depositor: depositor,
		Amount:    amount,
	}
	if err := l.store.PutBalance(ctx, b); err != nil {
		return fmt.Errorf("vault: write balance: %w", err)
	}
	return nil
}
