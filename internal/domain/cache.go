package domain

import (
	"context"
	"time"
)

// BalanceCache stores decrypted balances per (account, chain) with the fixed
// 30-day expiry from BalanceCacheTTL.
type BalanceCache interface {
	Get(ctx context.Context, account string, chainID int64) (BalanceCacheEntry, error)
	Put(ctx context.Context, e BalanceCacheEntry) error
	// ApplyDelta adjusts the cached balance optimistically. If the entry is
	// missing it returns ErrBalanceUnknown; if the delta would drive the
	// balance negative the entry is invalidated instead of going negative.
	ApplyDelta(ctx context.Context, account string, chainID int64, delta float64) error
	Invalidate(ctx context.Context, account string, chainID int64) error
}

// SnapshotCache holds the last published StatisticsSnapshot per market so
// consumers re-derive their figures from it instead of mutating their own
// state.
type SnapshotCache interface {
	Publish(ctx context.Context, snap StatisticsSnapshot) error
	Latest(ctx context.Context, marketID uint64) (StatisticsSnapshot, error)
}

// PayoutCache persists the last observed payout state per (market, account)
// so refreshes can enforce the monotonic floor.
type PayoutCache interface {
	Get(ctx context.Context, marketID uint64, account string) (PayoutStatus, error)
	Put(ctx context.Context, status PayoutStatus) error
}

// MarketCache provides short-TTL market metadata lookups.
type MarketCache interface {
	Set(ctx context.Context, m Market) error
	Get(ctx context.Context, id uint64) (Market, error)
	Invalidate(ctx context.Context, id uint64) error
}

// LockManager provides process-external locking, used to keep concurrent
// reveal runs for the same (account, market) from interleaving their merges.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus is the pub/sub channel between the reconciler and the surface:
// every published snapshot is announced so connected clients re-render.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
