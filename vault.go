package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/gateway"
	"github.com/xraph/vault/id"
	"github.com/xraph/vault/lock"
	"github.com/xraph/vault/plugin"
	"github.com/xraph/vault/pool"
	"github.com/xraph/vault/store"
	"github.com/xraph/vault/types"
)

// DefaultName is the vault name used when none is configured.
const DefaultName = "default"

// DefaultTransferTimeout bounds a single gateway call.
const DefaultTransferTimeout = 30 * time.Second

// AccountResolver maps an authenticated identity to the gateway account it
// deposits from and withdraws to.
type AccountResolver func(ctx context.Context, who types.Identity) (types.Account, error)

// SameAccount resolves every identity to the account of the same name.
func SameAccount(_ context.Context, who types.Identity) (types.Account, error) {
	return types.Account(who), nil
}

// Service is the vault engine. It coordinates ledger mutations with gateway
// transfers and owns the ordering and rollback contract.
type Service struct {
	name     string
	store    store.Store
	gateway  gateway.Gateway
	ledger   *Ledger
	locker   lock.Locker
	plugins  *plugin.Registry
	logger   *slog.Logger
	resolver AccountResolver

	account   types.Account
	authority types.Identity

	transferTimeout time.Duration
	decimals        int32
}

// New creates a new Service over a store and a transfer gateway.
func New(s store.Store, gw gateway.Gateway, opts ...Option) *Service {
	svc := &Service{
		name:            DefaultName,
		store:           s,
		gateway:         gw,
		locker:          lock.NewLocal(),
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		resolver:        SameAccount,
		transferTimeout: DefaultTransferTimeout,
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.account.IsZero() {
		svc.account = types.Account("vault:" + svc.name)
	}
	if svc.authority.IsZero() {
		svc.authority = types.Identity("vault:" + svc.name)
	}
	svc.ledger = NewLedger(s, svc.name)

	return svc
}

// Option configures a Service instance.
type Option func(*Service)

// WithName sets the vault name. One store can hold several named vaults.
func WithName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(s *Service) {
		_ = s.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithLocker replaces the vault lock. By default each Service has its own
// in-process lock, so Services that share a store and a vault name must be
// given one shared Locker: a common lock.Local within a process, or a
// distributed one such as redislock across processes.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithTransferTimeout bounds every gateway call. A call that times out is
// treated as not having moved funds.
func WithTransferTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.transferTimeout = d
		}
	}
}

// WithDecimals sets how many decimal places the asset's smallest unit has.
// It affects only how amounts are rendered in logs and reports.
func WithDecimals(decimals int32) Option {
	return func(s *Service) {
		if decimals >= 0 {
			s.decimals = decimals
		}
	}
}

// WithAccountResolver sets how caller identities map to gateway accounts.
func WithAccountResolver(r AccountResolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithCustody sets the pool account and the identity authorized to move
// funds out of it. They are recorded when the vault is initialized.
func WithCustody(account types.Account, authority types.Identity) Option {
	return func(s *Service) {
		s.account = account
		s.authority = authority
	}
}

// Name returns the vault name.
func (s *Service) Name() string { return s.name }

// Plugins returns the plugin registry.
func (s *Service) Plugins() *plugin.Registry { return s.plugins }

// Start migrates the store and initializes plugins.
func (s *Service) Start(ctx context.Context) error {
	if err := s.store.Migrate(ctx); err != nil {
		return fmt.Errorf("vault: migrate: %w", err)
	}

	s.plugins.EmitInit(ctx, s)

	s.logger.Info("vault started",
		"vault", s.name,
		"account", s.account,
		"transfer_timeout", s.transferTimeout,
		"plugins", s.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (s *Service) Stop() error {
	s.plugins.EmitShutdown(context.Background())
	return s.store.Close()
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ──────────────────────────────────────────────────
// Vault lifecycle
// ──────────────────────────────────────────────────

// Initialize creates the vault with caller as its administrator and no
// balances. It succeeds exactly once per vault name.
func (s *Service) Initialize(ctx context.Context, caller types.Identity) (*pool.Pool, error) {
	if caller.IsZero() {
		return nil, fmt.Errorf("%w: unauthenticated caller", ErrUnauthorized)
	}

	var created *pool.Pool
	err := s.locked(ctx, func() error {
		p := &pool.Pool{
			Entity:        types.NewEntity(),
			ID:            id.NewVaultID(),
			Name:          s.name,
			Administrator: caller,
			Account:       s.account,
			Authority:     s.authority,
		}
		if err := s.store.CreatePool(ctx, p); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				return fmt.Errorf("%w: %s", ErrAlreadyInitialized, s.name)
			}
			return fmt.Errorf("vault: create vault record: %w", err)
		}
		created = p
		return nil
	})
	if err != nil {
		s.logger.Warn("vault initialize rejected", "vault", s.name, "caller", caller, "error", err)
		return nil, err
	}

	s.plugins.EmitVaultInitialized(context.WithoutCancel(ctx), created)
	s.logger.Info("vault initialized",
		"vault", s.name,
		"id", created.ID.String(),
		"administrator", caller,
	)
	return created, nil
}

// Vault returns the vault record.
func (s *Service) Vault(ctx context.Context) (*pool.Pool, error) {
	return s.loadPool(ctx)
}

// ──────────────────────────────────────────────────
// Deposit and withdraw
// ──────────────────────────────────────────────────

// Deposit moves amount from the caller's account into the pool and credits
// the caller's tracked balance. Every ledger failure mode is checked before
// the transfer; the credit is applied only after the transfer succeeds. It
// returns the caller's new balance.
func (s *Service) Deposit(ctx context.Context, caller types.Identity, amount types.Amount) (types.Amount, error) {
	e := s.newEntry(entry.KindDeposit, caller, amount)
	if err := validateRequest(caller, amount); err != nil {
		return 0, s.fail(ctx, e, err, false)
	}

	err := s.lockedLease(ctx, func(lease lock.Handle) error {
		p, err := s.loadPool(ctx)
		if err != nil {
			return err
		}
		current, err := s.ledger.BalanceOf(ctx, caller)
		if err != nil {
			return err
		}
		e.Balance = current
		if _, err := s.ledger.CheckCredit(ctx, caller, amount); err != nil {
			return err
		}
		from, err := s.resolve(ctx, caller)
		if err != nil {
			return err
		}

		if err := s.transfer(ctx, e.Transfer, from, p.Account, caller, amount); err != nil {
			return mapGatewayError(err)
		}

		// The asset has moved. From here on the caller's context no longer
		// decides anything: the credit must land or the transfer must be undone.
		commitCtx := context.WithoutCancel(ctx)
		if err := lease.Held(commitCtx); err != nil {
			return s.reverseDeposit(commitCtx, p, e, from, fmt.Errorf("%w: %w", ErrLockFailed, err))
		}
		next, err := s.ledger.Credit(commitCtx, caller, amount)
		if err != nil {
			return s.reverseDeposit(commitCtx, p, e, from, err)
		}
		e.Balance = next
		return nil
	})
	if err != nil {
		return 0, s.fail(ctx, e, err, true)
	}

	s.succeed(ctx, e)
	s.plugins.EmitDeposited(context.WithoutCancel(ctx), e)
	return e.Balance, nil
}

// reverseDeposit returns a deposit whose credit could not be committed.
func (s *Service) reverseDeposit(ctx context.Context, p *pool.Pool, dep *entry.Entry, to types.Account, cause error) error {
	rev := s.newEntry(entry.KindReversal, dep.Depositor, dep.Amount)
	rev.Ref = dep.ID
	rev.Balance = dep.Balance

	if err := s.transfer(ctx, rev.Transfer, p.Account, to, p.Authority, dep.Amount); err != nil {
		rev.Status = entry.StatusFailed
		rev.Error = err.Error()
		s.record(ctx, rev)
		return s.discrepancy(ctx, rev, fmt.Errorf("credit failed: %w; reversal failed: %w", cause, err))
	}

	rev.Status = entry.StatusCompleted
	s.record(ctx, rev)
	s.plugins.EmitCompensated(ctx, rev)
	s.logger.Warn("deposit reversed",
		"vault", s.name,
		"depositor", dep.Depositor,
		"amount", dep.Amount,
		"error", cause,
	)
	return fmt.Errorf("%w: deposit returned after credit failed: %w", ErrUnavailable, cause)
}

// Withdraw debits the caller's tracked balance and moves amount from the
// pool to the caller's account. The debit is applied before the transfer and
// is always re-credited when the transfer does not succeed, including on
// panic and cancellation. It returns the caller's new balance.
func (s *Service) Withdraw(ctx context.Context, caller types.Identity, amount types.Amount) (types.Amount, error) {
	e := s.newEntry(entry.KindWithdrawal, caller, amount)
	if err := validateRequest(caller, amount); err != nil {
		return 0, s.fail(ctx, e, err, false)
	}

	err := s.lockedLease(ctx, func(lease lock.Handle) error {
		return s.withdraw(ctx, lease, caller, e)
	})
	if err != nil {
		return 0, s.fail(ctx, e, err, true)
	}

	s.succeed(ctx, e)
	s.plugins.EmitWithdrawn(context.WithoutCancel(ctx), e)
	return e.Balance, nil
}

// withdraw draws e.Amount down from the balance of e.Depositor on behalf of
// caller.
func (s *Service) withdraw(ctx context.Context, lease lock.Handle, caller types.Identity, e *entry.Entry) (err error) {
	owner, amount := e.Depositor, e.Amount

	if err := authorizeWithdrawal(caller, owner); err != nil {
		return err
	}
	p, err := s.loadPool(ctx)
	if err != nil {
		return err
	}
	to, err := s.resolve(ctx, owner)
	if err != nil {
		return err
	}

	before, err := s.ledger.BalanceOf(ctx, owner)
	if err != nil {
		return err
	}
	e.Balance = before

	if err := lease.Held(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	next, err := s.ledger.Debit(ctx, owner, amount)
	if err != nil {
		return err
	}

	transferred := false
	defer func() {
		if transferred {
			return
		}
		rec := recover()
		cause := err
		if rec != nil {
			cause = fmt.Errorf("panic during transfer: %v", rec)
		}
		if herr := lease.Held(ctx); herr != nil {
			s.logger.Error("vault lock lost before compensation",
				"vault", s.name,
				"depositor", owner,
				"error", herr,
			)
		}
		if cerr := s.compensateWithdrawal(context.WithoutCancel(ctx), e, cause); cerr != nil {
			err = cerr
		}
		if rec != nil {
			panic(rec)
		}
	}()

	if err := s.transfer(ctx, e.Transfer, p.Account, to, p.Authority, amount); err != nil {
		return mapGatewayError(err)
	}
	transferred = true
	e.Balance = next
	return nil
}

// compensateWithdrawal re-credits a debit whose transfer did not complete.
// A nil return means the balance is back to its pre-call value.
func (s *Service) compensateWithdrawal(ctx context.Context, w *entry.Entry, cause error) error {
	comp := s.newEntry(entry.KindCompensation, w.Depositor, w.Amount)
	comp.Ref = w.ID
	comp.Transfer = w.Transfer

	next, err := s.ledger.Credit(ctx, w.Depositor, w.Amount)
	if err != nil {
		comp.Status = entry.StatusFailed
		comp.Error = err.Error()
		s.record(ctx, comp)
		return s.discrepancy(ctx, comp, fmt.Errorf("transfer failed: %w; re-credit failed: %w", cause, err))
	}

	comp.Status = entry.StatusCompleted
	comp.Balance = next
	s.record(ctx, comp)
	s.plugins.EmitCompensated(ctx, comp)
	s.logger.Warn("withdrawal compensated",
		"vault", s.name,
		"depositor", w.Depositor,
		"amount", w.Amount,
		"balance", next,
		"error", cause,
	)
	return nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// BalanceOf returns the depositor's tracked balance, zero for an unknown
// depositor. It waits for any in-flight operation so partial states are
// never observed.
func (s *Service) BalanceOf(ctx context.Context, depositor types.Identity) (types.Amount, error) {
	var amount types.Amount
	err := s.locked(ctx, func() error {
		var err error
		amount, err = s.ledger.BalanceOf(ctx, depositor)
		return err
	})
	return amount, err
}

// Balances returns the full balance mapping, zero entries included.
func (s *Service) Balances(ctx context.Context) ([]*balance.Balance, error) {
	var out []*balance.Balance
	err := s.locked(ctx, func() error {
		var err error
		out, err = s.ledger.Balances(ctx)
		return err
	})
	return out, err
}

// History lists journal entries, newest first.
func (s *Service) History(ctx context.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	return s.store.ListEntries(ctx, s.name, opts)
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

func validateRequest(caller types.Identity, amount types.Amount) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	if caller.IsZero() {
		return fmt.Errorf("%w: unauthenticated caller", ErrUnauthorized)
	}
	return nil
}

// locked runs fn while holding the vault lock.
func (s *Service) locked(ctx context.Context, fn func() error) error {
	return s.lockedLease(ctx, func(lock.Handle) error { return fn() })
}

// lockedLease is locked for callers that must confirm the lock is still held
// before they commit.
func (s *Service) lockedLease(ctx context.Context, fn func(lease lock.Handle) error) error {
	h, err := s.locker.Lock(ctx, "vault:"+s.name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	defer func() {
		if err := h.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("vault lock release failed", "vault", s.name, "error", err)
		}
	}()
	return fn(h)
}

func (s *Service) loadPool(ctx context.Context) (*pool.Pool, error) {
	p, err := s.store.GetPool(ctx, s.name)
	if errors.Is(err, ErrVaultNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, s.name)
	}
	if err != nil {
		return nil, fmt.Errorf("vault: load vault record: %w", err)
	}
	return p, nil
}

func (s *Service) resolve(ctx context.Context, who types.Identity) (types.Account, error) {
	acct, err := s.resolver(ctx, who)
	if err != nil {
		return "", fmt.Errorf("%w: resolve account for %s: %w", ErrUnauthorized, who, err)
	}
	if acct.IsZero() {
		return "", fmt.Errorf("%w: no account for %s", ErrUnauthorized, who)
	}
	return acct, nil
}

// transfer calls the gateway under the transfer timeout.
func (s *Service) transfer(ctx context.Context, ref id.TransferID, from, to types.Account, authority types.Identity, amount types.Amount) error {
	ctx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	defer cancel()

	s.logger.Debug("gateway transfer",
		"vault", s.name,
		"transfer", ref.String(),
		"from", from,
		"to", to,
		"amount", amount,
	)
	return s.gateway.Transfer(ctx, from, to, authority, amount)
}

// mapGatewayError translates a gateway failure into the vault taxonomy while
// keeping the gateway error in the chain. Anything that is not a definitive
// rejection counts as funds not moved.
func mapGatewayError(err error) error {
	switch {
	case errors.Is(err, gateway.ErrInsufficientBalance):
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	case errors.Is(err, gateway.ErrUnauthorized), errors.Is(err, gateway.ErrUnknownAccount):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func (s *Service) newEntry(kind entry.Kind, who types.Identity, amount types.Amount) *entry.Entry {
	return &entry.Entry{
		ID:        id.NewEntryID(),
		Vault:     s.name,
		Transfer:  id.NewTransferID(),
		Kind:      kind,
		Depositor: who,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}

// record appends to the journal. The journal is best effort: a failed write
// is logged and never changes an operation's outcome.
func (s *Service) record(ctx context.Context, e *entry.Entry) {
	if err := s.store.AppendEntry(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("journal append failed",
			"vault", s.name,
			"entry", e.ID.String(),
			"kind", e.Kind,
			"error", err,
		)
	}
}

func (s *Service) succeed(ctx context.Context, e *entry.Entry) {
	e.Status = entry.StatusCompleted
	s.record(ctx, e)
	s.logger.Info("vault "+string(e.Kind)+" completed",
		"vault", s.name,
		"depositor", e.Depositor,
		"amount", e.Amount,
		"balance", e.Balance,
		"display", e.Amount.Format(s.decimals),
	)
}

// fail finalizes a failed operation and returns err unchanged.
func (s *Service) fail(ctx context.Context, e *entry.Entry, err error, journal bool) error {
	e.Error = err.Error()
	if IsRejection(err) {
		e.Status = entry.StatusRejected
	} else {
		e.Status = entry.StatusFailed
	}
	// Nothing happened when the vault was missing or its lock was never
	// usable; a reversed deposit still gets its entry.
	skip := errors.Is(err, ErrNotInitialized) ||
		(errors.Is(err, ErrLockFailed) && !errors.Is(err, ErrUnavailable))
	if journal && !skip {
		s.record(ctx, e)
	}

	hookCtx := context.WithoutCancel(ctx)
	s.plugins.EmitOperationFailed(hookCtx, e, err)

	level := slog.LevelWarn
	if errors.Is(err, ErrInconsistent) {
		level = slog.LevelError
	}
	s.logger.Log(hookCtx, level, "vault "+string(e.Kind)+" failed",
		"vault", s.name,
		"depositor", e.Depositor,
		"amount", e.Amount,
		"display", e.Amount.Format(s.decimals),
		"error", err,
	)
	return err
}

// discrepancy reports a compensation that could not be completed. The ledger
// and the pool no longer agree; this is surfaced, never absorbed.
func (s *Service) discrepancy(ctx context.Context, e *entry.Entry, cause error) error {
	err := fmt.Errorf("%w: %s %d for %s: %w", ErrInconsistent, e.Kind, e.Amount, e.Depositor, cause)
	s.plugins.EmitDiscrepancy(ctx, &plugin.Discrepancy{
		Vault:     s.name,
		Depositor: e.Depositor,
		Amount:    e.Amount,
		Reason:    err.Error(),
	})
	s.logger.Error("vault accounting discrepancy",
		"vault", s.name,
		"depositor", e.Depositor,
		"amount", e.Amount,
		"kind", e.Kind,
		"error", cause,
	)
	return err
}
