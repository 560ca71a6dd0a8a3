package datagateway

import "context"

// Tx is a transactional boundary around ledger mutations. Every public
// engine operation runs inside one Tx; rolling back discards all writes made
// through it, including partially completed batch iterations.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
