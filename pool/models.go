// Package pool defines the vault record: the single shared pool account and
// the identities allowed to act on it.
package pool

import (
	"github.com/xraph/vault/id"
	"github.com/xraph/vault/types"
)

// Pool is the persisted vault record, one per deployment name.
type Pool struct {
	types.Entity
	ID   id.VaultID `json:"id"`
	Name string     `json:"name"`
	// Administrator created the vault. It is set once and never changes.
	Administrator types.Identity `json:"administrator"`
	// Account is the gateway account holding the pooled asset.
	Account types.Account `json:"account"`
	// Authority is the identity that may move funds out of Account.
	Authority types.Identity `json:"authority"`
}
