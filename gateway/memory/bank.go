// Package memory provides an in-process transfer gateway. Every account has a
// single owner identity that is allowed to move funds out of it.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/vault/gateway"
	"github.com/xraph/vault/types"
)

// Compile-time interface check.
var _ gateway.Gateway = (*Bank)(nil)

// Transfer is a transfer the bank has been asked to perform.
type Transfer struct {
	From      types.Account
	To        types.Account
	Authority types.Identity
	Amount    types.Amount
}

// FaultFunc inspects a transfer before it executes. A non-nil error aborts
// the transfer with nothing moved.
type FaultFunc func(t Transfer) error

type account struct {
	owner   types.Identity
	balance types.Amount
}

// Bank is an in-memory gateway for tests and local runs.
type Bank struct {
	mu       sync.Mutex
	accounts map[types.Account]*account
	fault    FaultFunc
	latency  time.Duration
	history  []Transfer
}

// New creates an empty bank.
func New() *Bank {
	return &Bank{accounts: make(map[types.Account]*account)}
}

// Open creates an account owned by owner with an initial balance. Opening an
// existing account replaces its owner and balance.
func (b *Bank) Open(acct types.Account, owner types.Identity, initial types.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[acct] = &account{owner: owner, balance: initial}
}

// Mint adds units to an account without a counterparty, like an outside donation.
func (b *Bank) Mint(acct types.Account, amount types.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.accounts[acct]
	if !ok {
		return fmt.Errorf("%w: %s", gateway.ErrUnknownAccount, acct)
	}
	next, err := a.balance.Add(amount)
	if err != nil {
		return err
	}
	a.balance = next
	return nil
}

// Burn removes units from an account, simulating holdings lost outside the vault.
func (b *Bank) Burn(acct types.Account, amount types.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.accounts[acct]
	if !ok {
		return fmt.Errorf("%w: %s", gateway.ErrUnknownAccount, acct)
	}
	next, err := a.balance.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %w", gateway.ErrInsufficientBalance, err)
	}
	a.balance = next
	return nil
}

// InjectFault installs fn to run before every transfer. Pass nil to clear it.
func (b *Bank) InjectFault(fn FaultFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fault = fn
}

// SetLatency delays every transfer by d, honoring context cancellation.
func (b *Bank) SetLatency(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency = d
}

// History returns the transfers that completed, oldest first.
func (b *Bank) History() []Transfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Transfer, len(b.history))
	copy(out, b.history)
	return out
}

// Transfer implements gateway.Gateway.
func (b *Bank) Transfer(ctx context.Context, from, to types.Account, authority types.Identity, amount types.Amount) error {
	b.mu.Lock()
	latency, fault := b.latency, b.fault
	b.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", gateway.ErrUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", gateway.ErrUnavailable, err)
	}

	t := Transfer{From: from, To: to, Authority: authority, Amount: amount}
	if fault != nil {
		if err := fault(t); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := b.accounts[from]
	if !ok {
		return fmt.Errorf("%w: %s", gateway.ErrUnknownAccount, from)
	}
	dst, ok := b.accounts[to]
	if !ok {
		return fmt.Errorf("%w: %s", gateway.ErrUnknownAccount, to)
	}
	if src.owner != authority {
		return fmt.Errorf("%w: %s may not debit %s", gateway.ErrUnauthorized, authority, from)
	}

	srcNext, err := src.balance.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, needs %d", gateway.ErrInsufficientBalance, from, src.balance, amount)
	}
	if from == to {
		b.history = append(b.history, t)
		return nil
	}
	dstNext, err := dst.balance.Add(amount)
	if err != nil {
		return err
	}

	src.balance = srcNext
	dst.balance = dstNext
	b.history = append(b.history, t)
	return nil
}

// Balance implements gateway.Gateway.
func (b *Bank) Balance(_ context.Context, acct types.Account) (types.Amount, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.accounts[acct]
	if !ok {
		return 0, fmt.Errorf("%w: %s", gateway.ErrUnknownAccount, acct)
	}
	return a.balance, nil
}
