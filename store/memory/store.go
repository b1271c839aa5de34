// Package memory provides an in-memory store for tests and single-process
// deployments. State is lost when the process exits.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/vault"
	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/pool"
	vaultstore "github.com/xraph/vault/store"
	"github.com/xraph/vault/types"
)

// compile-time interface check
var _ vaultstore.Store = (*Store)(nil)

type balanceKey struct {
	vault     string
	depositor types.Identity
}

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Vault records by name
	pools map[string]*pool.Pool

	// Balance storage
	balances map[balanceKey]*balance.Balance

	// Journal, in append order per vault
	entries map[string][]*entry.Entry
}

func New() *Store {
	return &Store{
		pools:    make(map[string]*pool.Pool),
		balances: make(map[balanceKey]*balance.Balance),
		entries:  make(map[string][]*entry.Entry),
	}
}

// Pool Store implementation
func (s *Store) CreatePool(_ context.Context, p *pool.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vault.ErrStoreClosed
	}
	if _, exists := s.pools[p.Name]; exists {
		return vault.ErrAlreadyExists
	}
	cp := *p
	s.pools[p.Name] = &cp
	return nil
}

func (s *Store) GetPool(_ context.Context, name string) (*pool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, vault.ErrStoreClosed
	}
	if p, ok := s.pools[name]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, vault.ErrVaultNotFound
}

// Balance Store implementation
func (s *Store) GetBalance(_ context.Context, vaultName string, depositor types.Identity) (*balance.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, vault.ErrStoreClosed
	}
	if b, ok := s.balances[balanceKey{vaultName, depositor}]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, vault.ErrBalanceNotFound
}

func (s *Store) PutBalance(_ context.Context, b *balance.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vault.ErrStoreClosed
	}
	key := balanceKey{b.Vault, b.Depositor}
	cp := *b
	if existing, ok := s.balances[key]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	s.balances[key] = &cp
	return nil
}

func (s *Store) ListBalances(_ context.Context, vaultName string) ([]*balance.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, vault.ErrStoreClosed
	}
	result := make([]*balance.Balance, 0)
	for key, b := range s.balances {
		if key.vault == vaultName {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Depositor < result[j].Depositor
	})
	return result, nil
}

// Entry Store implementation
func (s *Store) AppendEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vault.ErrStoreClosed
	}
	for _, existing := range s.entries[e.Vault] {
		if existing.ID.String() == e.ID.String() {
			return vault.ErrAlreadyExists
		}
	}
	cp := *e
	s.entries[e.Vault] = append(s.entries[e.Vault], &cp)
	return nil
}

func (s *Store) ListEntries(_ context.Context, vaultName string, opts entry.ListOpts) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, vault.ErrStoreClosed
	}
	all := s.entries[vaultName]
	result := make([]*entry.Entry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if opts.Depositor != "" && e.Depositor != opts.Depositor {
			continue
		}
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return vault.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
