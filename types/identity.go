package types

// Identity is an authenticated principal: a depositor, the administrator or
// the vault's custody authority. Authentication happens before the vault
// sees it.
type Identity string

// IsZero reports whether the identity is empty (unauthenticated).
func (i Identity) IsZero() bool { return i == "" }

// String implements fmt.Stringer.
func (i Identity) String() string { return string(i) }

// Account is an asset-holding account known to the transfer gateway.
type Account string

// IsZero reports whether the account is empty.
func (a Account) IsZero() bool { return a == "" }

// String implements fmt.Stringer.
func (a Account) String() string { return string(a) }
