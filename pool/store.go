package pool

import "context"

// Store persists the vault record.
type Store interface {
	// CreatePool inserts the record. It fails with an already-exists error when
	// a record with the same name is present.
	CreatePool(ctx context.Context, p *Pool) error
	GetPool(ctx context.Context, name string) (*Pool, error)
}
