package vault

import (
	"fmt"

	"github.com/xraph/vault/types"
)

// authorizeWithdrawal is the only capability check on the withdrawal path:
// the authenticated caller must be the owner of the balance being drawn down.
// There is no administrator override.
func authorizeWithdrawal(caller, owner types.Identity) error {
	if caller.IsZero() {
		return fmt.Errorf("%w: unauthenticated caller", ErrUnauthorized)
	}
	if caller != owner {
		return fmt.Errorf("%w: %s may not withdraw the balance of %s", ErrUnauthorized, caller, owner)
	}
	return nil
}
