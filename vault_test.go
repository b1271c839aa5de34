package vault_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vault"
	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/gateway"
	gwmemory "github.com/xraph/vault/gateway/memory"
	"github.com/xraph/vault/plugin"
	"github.com/xraph/vault/pool"
	"github.com/xraph/vault/store"
	"github.com/xraph/vault/store/memory"
	"github.com/xraph/vault/types"
)

const (
	poolAccount = types.Account("pool")
	custodian   = types.Identity("custodian")
	admin       = types.Identity("admin")
	alice       = types.Identity("alice")
	bob         = types.Identity("bob")
	carol       = types.Identity("carol")
)

// faultyStore fails PutBalance calls chosen by failPut, counted from 1.
type faultyStore struct {
	store.Store

	mu      sync.Mutex
	puts    int
	failPut func(call int) bool
}

func (f *faultyStore) PutBalance(ctx context.Context, b *balance.Balance) error {
	f.mu.Lock()
	f.puts++
	fail := f.failPut != nil && f.failPut(f.puts)
	f.mu.Unlock()

	if fail {
		return errors.New("disk full")
	}
	return f.Store.PutBalance(ctx, b)
}

func (f *faultyStore) failPuts(fn func(call int) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = 0
	f.failPut = fn
}

// events records plugin hooks.
type events struct {
	mu            sync.Mutex
	initialized   int
	deposited     int
	withdrawn     int
	failed        []error
	compensated   []*entry.Entry
	discrepancies []*plugin.Discrepancy
}

func (e *events) Name() string { return "test-events" }

func (e *events) OnVaultInitialized(context.Context, *pool.Pool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized++
	return nil
}

func (e *events) OnDeposited(context.Context, *entry.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deposited++
	return nil
}

func (e *events) OnWithdrawn(context.Context, *entry.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.withdrawn++
	return nil
}

func (e *events) OnOperationFailed(_ context.Context, _ *entry.Entry, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed = append(e.failed, err)
	return nil
}

func (e *events) OnCompensated(_ context.Context, en *entry.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compensated = append(e.compensated, en)
	return nil
}

func (e *events) OnDiscrepancy(_ context.Context, d *plugin.Discrepancy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.discrepancies = append(e.discrepancies, d)
	return nil
}

type fixture struct {
	svc    *vault.Service
	bank   *gwmemory.Bank
	store  *faultyStore
	events *events
}

func newFixture(t *testing.T, opts ...vault.Option) *fixture {
	t.Helper()

	bank := gwmemory.New()
	bank.Open(poolAccount, custodian, 0)
	for _, who := range []types.Identity{alice, bob, carol} {
		bank.Open(types.Account(who), who, 1000)
	}

	fs := &faultyStore{Store: memory.New()}
	ev := &events{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	base := []vault.Option{
		vault.WithLogger(logger),
		vault.WithCustody(poolAccount, custodian),
		vault.WithPlugin(ev),
	}
	svc := vault.New(fs, bank, append(base, opts...)...)
	require.NoError(t, svc.Start(context.Background()))

	return &fixture{svc: svc, bank: bank, store: fs, events: ev}
}

func (f *fixture) initialize(t *testing.T) {
	t.Helper()
	_, err := f.svc.Initialize(context.Background(), admin)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, who types.Identity) types.Amount {
	t.Helper()
	got, err := f.svc.BalanceOf(context.Background(), who)
	require.NoError(t, err)
	return got
}

func (f *fixture) held(t *testing.T, acct types.Account) types.Amount {
	t.Helper()
	got, err := f.bank.Balance(context.Background(), acct)
	require.NoError(t, err)
	return got
}

// assertBacked checks that tracked balances never exceed pool holdings.
func (f *fixture) assertBacked(t *testing.T) {
	t.Helper()
	report, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Balanced())
	assert.LessOrEqual(t, report.Tracked, report.Holdings)
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.svc.Initialize(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, admin, p.Administrator)
	assert.Equal(t, poolAccount, p.Account)

	bal, err := f.svc.Deposit(ctx, alice, 100)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(100), bal)

	_, err = f.svc.Withdraw(ctx, bob, 10)
	assert.ErrorIs(t, err, vault.ErrNoSuchDepositor)

	_, err = f.svc.Withdraw(ctx, alice, 150)
	assert.ErrorIs(t, err, vault.ErrInsufficientFunds)
	assert.Equal(t, types.Amount(100), f.balance(t, alice))

	bal, err = f.svc.Withdraw(ctx, alice, 40)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(60), bal)
	assert.Equal(t, types.Amount(60), f.balance(t, alice))

	assert.Equal(t, types.Amount(60), f.held(t, poolAccount))
	assert.Equal(t, types.Amount(940), f.held(t, types.Account(alice)))
	assert.Equal(t, 1, f.events.deposited)
	assert.Equal(t, 1, f.events.withdrawn)
	assert.Len(t, f.events.failed, 2)
	f.assertBacked(t)
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Vault(ctx)
	assert.ErrorIs(t, err, vault.ErrNotInitialized)

	_, err = f.svc.Initialize(ctx, "")
	assert.ErrorIs(t, err, vault.ErrUnauthorized)

	f.initialize(t)
	_, err = f.svc.Initialize(ctx, bob)
	assert.ErrorIs(t, err, vault.ErrAlreadyInitialized)
	assert.True(t, vault.IsRejection(err))

	p, err := f.svc.Vault(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, p.Administrator, "administrator is immutable")
	assert.Equal(t, 1, f.events.initialized)

	all, err := f.svc.Balances(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOperationsRequireInitialization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Deposit(ctx, alice, 10)
	assert.ErrorIs(t, err, vault.ErrNotInitialized)
	_, err = f.svc.Withdraw(ctx, alice, 10)
	assert.ErrorIs(t, err, vault.ErrNotInitialized)

	assert.Zero(t, f.balance(t, alice))
	assert.Empty(t, f.bank.History())
}

func TestZeroAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 50)
	require.NoError(t, err)

	_, err = f.svc.Deposit(ctx, alice, 0)
	assert.ErrorIs(t, err, vault.ErrInvalidAmount)
	_, err = f.svc.Withdraw(ctx, alice, 0)
	assert.ErrorIs(t, err, vault.ErrInvalidAmount)
	_, err = f.svc.Withdraw(ctx, bob, 0)
	assert.ErrorIs(t, err, vault.ErrInvalidAmount)

	assert.Equal(t, types.Amount(50), f.balance(t, alice))
	assert.Len(t, f.bank.History(), 1)
}

func TestUnauthenticatedCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, "", 10)
	assert.ErrorIs(t, err, vault.ErrUnauthorized)
	_, err = f.svc.Withdraw(ctx, "", 10)
	assert.ErrorIs(t, err, vault.ErrUnauthorized)
	assert.Empty(t, f.bank.History())
}

func TestDepositInsufficientSourceFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 1001)
	assert.ErrorIs(t, err, vault.ErrInsufficientFunds)
	assert.ErrorIs(t, err, gateway.ErrInsufficientBalance)
	assert.False(t, vault.IsRetryable(err))

	assert.Zero(t, f.balance(t, alice))
	all, err := f.svc.Balances(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "a failed deposit never creates a depositor")
}

func TestDepositOverflowCheckedBeforeTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)
	f.bank.Open(types.Account(alice), alice, vault.MaxAmount)

	_, err := f.svc.Deposit(ctx, alice, vault.MaxAmount)
	require.NoError(t, err)
	require.NoError(t, f.bank.Mint(types.Account(alice), 1))

	_, err = f.svc.Deposit(ctx, alice, 1)
	assert.ErrorIs(t, err, vault.ErrArithmeticOverflow)
	assert.True(t, vault.IsRejection(err))

	assert.Equal(t, vault.MaxAmount, f.balance(t, alice))
	assert.Len(t, f.bank.History(), 1, "overflow must be detected before any transfer")
}

func TestDepositTimeoutIsUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, vault.WithTransferTimeout(10*time.Millisecond))
	f.initialize(t)
	f.bank.SetLatency(time.Second)

	_, err := f.svc.Deposit(ctx, alice, 10)
	assert.ErrorIs(t, err, vault.ErrUnavailable)
	assert.True(t, vault.IsRetryable(err))
	assert.Zero(t, f.balance(t, alice))
	assert.Equal(t, types.Amount(1000), f.held(t, types.Account(alice)))
}

func TestDepositCommitFailureReversesTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	f.store.failPuts(func(int) bool { return true })
	_, err := f.svc.Deposit(ctx, alice, 30)
	f.store.failPuts(nil)

	assert.ErrorIs(t, err, vault.ErrUnavailable)
	assert.Zero(t, f.balance(t, alice))
	assert.Equal(t, types.Amount(1000), f.held(t, types.Account(alice)))
	assert.Zero(t, f.held(t, poolAccount))

	require.Len(t, f.events.compensated, 1)
	assert.Equal(t, entry.KindReversal, f.events.compensated[0].Kind)
	assert.Empty(t, f.events.discrepancies)

	reversals, err := f.svc.History(ctx, entry.ListOpts{Kind: entry.KindReversal})
	require.NoError(t, err)
	require.Len(t, reversals, 1)
	assert.Equal(t, entry.StatusCompleted, reversals[0].Status)
}

func TestDepositReversalFailureIsDiscrepancy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	f.store.failPuts(func(int) bool { return true })
	f.bank.InjectFault(func(tr gwmemory.Transfer) error {
		if tr.From == poolAccount {
			return errors.New("pool frozen")
		}
		return nil
	})

	_, err := f.svc.Deposit(ctx, alice, 30)
	assert.ErrorIs(t, err, vault.ErrInconsistent)
	assert.False(t, vault.IsRetryable(err))
	assert.False(t, vault.IsRejection(err))

	require.Len(t, f.events.discrepancies, 1)
	assert.Equal(t, alice, f.events.discrepancies[0].Depositor)
	assert.Equal(t, types.Amount(30), f.events.discrepancies[0].Amount)
}

func TestWithdrawTransferFailureCompensates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 100)
	require.NoError(t, err)

	f.bank.InjectFault(func(gwmemory.Transfer) error {
		return gateway.ErrUnavailable
	})
	_, err = f.svc.Withdraw(ctx, alice, 40)
	assert.ErrorIs(t, err, vault.ErrUnavailable)
	assert.True(t, vault.IsRetryable(err))

	assert.Equal(t, types.Amount(100), f.balance(t, alice))
	require.Len(t, f.events.compensated, 1)
	assert.Equal(t, entry.KindCompensation, f.events.compensated[0].Kind)
	assert.Equal(t, types.Amount(100), f.events.compensated[0].Balance)

	f.bank.InjectFault(nil)
	bal, err := f.svc.Withdraw(ctx, alice, 40)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(60), bal)
	f.assertBacked(t)
}

func TestWithdrawGatewayRejectionCompensates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, vault.WithCustody(poolAccount, "impostor"))
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 100)
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, alice, 10)
	assert.ErrorIs(t, err, vault.ErrUnauthorized)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.Equal(t, types.Amount(100), f.balance(t, alice))
}

func TestWithdrawPanicCompensates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 100)
	require.NoError(t, err)

	f.bank.InjectFault(func(gwmemory.Transfer) error { panic("gateway driver bug") })
	assert.Panics(t, func() {
		_, _ = f.svc.Withdraw(ctx, alice, 40)
	})
	f.bank.InjectFault(nil)

	assert.Equal(t, types.Amount(100), f.balance(t, alice), "debit must be restored and the lock released")
	require.Len(t, f.events.compensated, 1)
}

func TestWithdrawCancellationCompensates(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(context.Background(), alice, 100)
	require.NoError(t, err)

	f.bank.SetLatency(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = f.svc.Withdraw(ctx, alice, 40)
	assert.ErrorIs(t, err, vault.ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	f.bank.SetLatency(0)
	assert.Equal(t, types.Amount(100), f.balance(t, alice))
	assert.Equal(t, types.Amount(100), f.held(t, poolAccount))
}

func TestWithdrawCompensationFailureIsDiscrepancy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 100)
	require.NoError(t, err)

	// First put is the debit; the second is the re-credit.
	f.store.failPuts(func(call int) bool { return call == 2 })
	f.bank.InjectFault(func(gwmemory.Transfer) error { return gateway.ErrUnavailable })

	_, err = f.svc.Withdraw(ctx, alice, 40)
	assert.ErrorIs(t, err, vault.ErrInconsistent)
	assert.False(t, vault.IsRetryable(err))
	require.Len(t, f.events.discrepancies, 1)

	comps, err := f.svc.History(ctx, entry.ListOpts{Kind: entry.KindCompensation})
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, entry.StatusFailed, comps[0].Status)
}

func TestRoundTripLeavesOthersUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, bob, 70)
	require.NoError(t, err)

	_, err = f.svc.Deposit(ctx, alice, 25)
	require.NoError(t, err)
	bal, err := f.svc.Withdraw(ctx, alice, 25)
	require.NoError(t, err)
	assert.Zero(t, bal)

	assert.Zero(t, f.balance(t, alice))
	assert.Equal(t, types.Amount(70), f.balance(t, bob))
	assert.Equal(t, types.Amount(1000), f.held(t, types.Account(alice)))

	all, err := f.svc.Balances(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "zero entries remain after a full withdrawal")
	f.assertBacked(t)
}

func TestRetryAfterTopUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 50)
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, alice, 80)
	require.ErrorIs(t, err, vault.ErrInsufficientFunds)

	_, err = f.svc.Deposit(ctx, alice, 30)
	require.NoError(t, err)

	bal, err := f.svc.Withdraw(ctx, alice, 80)
	require.NoError(t, err)
	assert.Zero(t, bal)
	assert.Equal(t, types.Amount(1000), f.held(t, types.Account(alice)))
}

func TestConcurrentDepositsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	const rounds = 25
	var wg sync.WaitGroup
	for _, who := range []types.Identity{alice, bob} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				_, err := f.svc.Deposit(ctx, who, 2)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, types.Amount(2*rounds), f.balance(t, alice))
	assert.Equal(t, types.Amount(2*rounds), f.balance(t, bob))
	assert.Equal(t, types.Amount(4*rounds), f.held(t, poolAccount))
	f.assertBacked(t)
}

func TestConcurrentMixedOperationsStayBacked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	var wg sync.WaitGroup
	for _, who := range []types.Identity{alice, bob, carol} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 20 {
				if i%3 == 2 {
					_, _ = f.svc.Withdraw(ctx, who, 7)
					continue
				}
				_, _ = f.svc.Deposit(ctx, who, 5)
			}
		}()
	}
	wg.Wait()

	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Tracked, report.Holdings)
	assert.Equal(t, 3, report.Depositors)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 100)
	require.NoError(t, err)

	require.NoError(t, f.bank.Mint(poolAccount, 5))
	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(5), report.Surplus)

	require.NoError(t, f.bank.Burn(poolAccount, 20))
	report, err = f.svc.Reconcile(ctx)
	assert.ErrorIs(t, err, vault.ErrDiscrepancy)
	require.NotNil(t, report)
	assert.Equal(t, types.Amount(15), report.Shortfall)
	require.Len(t, f.events.discrepancies, 1)
	assert.Equal(t, types.Amount(100), f.events.discrepancies[0].Tracked)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, alice, 10)
	require.NoError(t, err)
	_, err = f.svc.Withdraw(ctx, alice, 50)
	require.Error(t, err)
	_, err = f.svc.Withdraw(ctx, alice, 4)
	require.NoError(t, err)

	all, err := f.svc.History(ctx, entry.ListOpts{Depositor: alice})
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, entry.KindWithdrawal, all[0].Kind)
	assert.Equal(t, entry.StatusCompleted, all[0].Status)
	assert.Equal(t, types.Amount(6), all[0].Balance)

	assert.Equal(t, entry.StatusRejected, all[1].Status)
	assert.NotEmpty(t, all[1].Error)

	assert.Equal(t, entry.KindDeposit, all[2].Kind)
	assert.False(t, all[2].Transfer.IsNil())
}

func TestAccountResolver(t *testing.T) {
	ctx := context.Background()
	resolver := func(_ context.Context, who types.Identity) (types.Account, error) {
		if who == carol {
			return "", errors.New("no linked account")
		}
		return types.Account(who), nil
	}
	f := newFixture(t, vault.WithAccountResolver(resolver))
	f.initialize(t)

	_, err := f.svc.Deposit(ctx, carol, 10)
	assert.ErrorIs(t, err, vault.ErrUnauthorized)
	assert.Empty(t, f.bank.History())

	_, err = f.svc.Deposit(ctx, alice, 10)
	require.NoError(t, err)
}

func TestNamedVaultsShareAStore(t *testing.T) {
	ctx := context.Background()
	bank := gwmemory.New()
	bank.Open("pool-a", "custodian-a", 0)
	bank.Open("pool-b", "custodian-b", 0)
	bank.Open(types.Account(alice), alice, 1000)

	s := memory.New()
	quiet := vault.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	a := vault.New(s, bank, quiet, vault.WithName("a"), vault.WithCustody("pool-a", "custodian-a"))
	b := vault.New(s, bank, quiet, vault.WithName("b"), vault.WithCustody("pool-b", "custodian-b"))

	_, err := a.Initialize(ctx, admin)
	require.NoError(t, err)
	_, err = b.Initialize(ctx, admin)
	require.NoError(t, err)

	_, err = a.Deposit(ctx, alice, 10)
	require.NoError(t, err)

	got, err := b.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = b.Withdraw(ctx, alice, 1)
	assert.ErrorIs(t, err, vault.ErrNoSuchDepositor)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.Health(ctx))
	require.NoError(t, f.svc.Stop())
	assert.ErrorIs(t, f.svc.Health(ctx), vault.ErrStoreClosed)
}
