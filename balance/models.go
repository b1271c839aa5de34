// Package balance defines the per-depositor tracked balances.
package balance

import (
	"github.com/xraph/vault/types"
)

// Balance is one depositor's tracked contribution to a vault. A zero balance
// is kept once created.
type Balance struct {
	types.Entity
	Vault     string         `json:"vault"`
	Depositor types.Identity `json:"depositor"`
	Amount    types.Amount   `json:"amount"`
}
