package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/vault"
	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/pool"
	vaultstore "github.com/xraph/vault/store"
	"github.com/xraph/vault/types"
)

// Collection name constants.
const (
	colVaults   = "vault_vaults"
	colBalances = "vault_balances"
	colEntries  = "vault_entries"
)

// compile-time interface check
var _ vaultstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all vault collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("vault/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return vault.ErrAlreadyExists
		}
		return fmt.Errorf("vault/mongo: create vault: %w", err)
	}
	return nil
}

func (s *Store) GetPool(ctx context.Context, name string) (*pool.Pool, error) {
	var m vaultModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, vault.ErrVaultNotFound
		}
		return nil, fmt.Errorf("vault/mongo: get vault: %w", err)
	}
	return fromVaultModel(&m)
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, vaultName string, depositor types.Identity) (*balance.Balance, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": balanceKey(vaultName, depositor)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, vault.ErrBalanceNotFound
		}
		return nil, fmt.Errorf("vault/mongo: get balance: %w", err)
	}
	return fromBalanceModel(&m)
}

func (s *Store) PutBalance(ctx context.Context, b *balance.Balance) error {
	t := now()
	_, err := s.mdb.Collection(colBalances).UpdateOne(ctx,
		bson.M{"_id": balanceKey(b.Vault, b.Depositor)},
		bson.M{
			"$set": bson.M{
				"vault":      b.Vault,
				"depositor":  string(b.Depositor),
				"amount":     b.Amount.String(),
				"updated_at": t,
			},
			"$setOnInsert": bson.M{"created_at": t},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("vault/mongo: put balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, vaultName string) ([]*balance.Balance, error) {
	var models []balanceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"vault": vaultName}).
		Sort(bson.D{{Key: "depositor", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("vault/mongo: list balances: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return vault.ErrAlreadyExists
		}
		return fmt.Errorf("vault/mongo: append entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, vaultName string, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel

	filter := bson.M{"vault": vaultName}
	if opts.Depositor != "" {
		filter["depositor"] = string(opts.Depositor)
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("vault/mongo: list entries: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all vault collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colVaults: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colBalances: {
			{Keys: bson.D{{Key: "vault", Value: 1}, {Key: "depositor", Value: 1}}},
		},
		colEntries: {
			{Keys: bson.D{{Key: "vault", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "vault", Value: 1}, {Key: "depositor", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
