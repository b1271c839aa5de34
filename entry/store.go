package entry

import (
	"context"

	"github.com/xraph/vault/types"
)

type Store interface {
	AppendEntry(ctx context.Context, e *Entry) error
	// ListEntries returns entries newest first.
	ListEntries(ctx context.Context, vault string, opts ListOpts) ([]*Entry, error)
}

type ListOpts struct {
	Depositor types.Identity
	Kind      Kind
	Limit     int
	Offset    int
}
