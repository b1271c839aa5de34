package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/vault"
	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/pool"
	vaultstore "github.com/xraph/vault/store"
	"github.com/xraph/vault/types"
)

// compile-time interface check
var _ vaultstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("vault/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("vault/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Pool Store ====================

func (s *Store) CreatePool(ctx context.Context, p *pool.Pool) error {
	m := toVaultModel(p)

	// ON CONFLICT keeps the first administrator even under concurrent initializers.
	var inserted string
	err := s.pg.NewRaw(`
		INSERT INTO vault_vaults (id, name, administrator, account, authority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, m.ID, m.Name, m.Administrator, m.Account, m.Authority, m.CreatedAt, m.UpdatedAt).Scan(ctx, &inserted)
	if err != nil {
		if isNoRows(err) {
			return vault.ErrAlreadyExists
		}
		return fmt.Errorf("vault/postgres: create vault: %w", err)
	}
	return nil
}

func (s *Store) GetPool(ctx context.Context, name string) (*pool.Pool, error) {
	m := new(vaultModel)
	err := s.pg.NewSelect(m).
		Where("name = $1", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, vault.ErrVaultNotFound
		}
		return nil, fmt.Errorf("vault/postgres: get vault: %w", err)
	}
	return fromVaultModel(m)
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, vaultName string, depositor types.Identity) (*balance.Balance, error) {
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("vault = $1", vaultName).
		Where("depositor = $2", string(depositor)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, vault.ErrBalanceNotFound
		}
		return nil, fmt.Errorf("vault/postgres: get balance: %w", err)
	}
	return fromBalanceModel(m)
}

func (s *Store) PutBalance(ctx context.Context, b *balance.Balance) error {
	t := now()
	var stored string
	err := s.pg.NewRaw(`
		INSERT INTO vault_balances (vault, depositor, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (vault, depositor)
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at
		RETURNING amount
	`, b.Vault, string(b.Depositor), strconv.FormatUint(uint64(b.Amount), 10), t).Scan(ctx, &stored)
	if err != nil {
		return fmt.Errorf("vault/postgres: put balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, vaultName string) ([]*balance.Balance, error) {
	var models []balanceModel
	err := s.pg.NewSelect(&models).
		Where("vault = $1", vaultName).
		OrderExpr("depositor ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("vault/postgres: list balances: %w", err)
	}

	result := make([]*balance.Balance, len(models))
	for i := range models {
		b, err := fromBalanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// ==================== Entry Store ====================

func (s *Store) AppendEntry(ctx context.Context, e *entry.Entry) error {
	m := toEntryModel(e)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("vault/postgres: append entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, vaultName string, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.pg.NewSelect(&models).Where("vault = $1", vaultName)

	argIdx := 1
	if opts.Depositor != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("depositor = $%d", argIdx), string(opts.Depositor))
	}
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("vault/postgres: list entries: %w", err)
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
