package domain

import "context"

// WagerLedger persists the user's own wager records. Entries are owned
// exclusively by their (account, chain, market) triple.
type WagerLedger interface {
	// Append inserts a freshly confirmed optimistic record.
	Append(ctx context.Context, rec LocalWagerRecord) error
	// Upsert inserts or overwrites the record identified by
	// (account, chain, market, placed_at). Used by the reveal merge, which
	// must be idempotent.
	Upsert(ctx context.Context, rec LocalWagerRecord) error
	// List returns the account's records for one market, oldest first.
	List(ctx context.Context, account string, chainID int64, marketID uint64) ([]LocalWagerRecord, error)
}
