package vault

import "github.com/xraph/vault/types"

// Re-export common types so callers don't have to import the types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Identity is re-exported from types package.
type Identity = types.Identity

// Account is re-exported from types package.
type Account = types.Account

// MaxAmount is the largest representable Amount.
const MaxAmount = types.MaxAmount
