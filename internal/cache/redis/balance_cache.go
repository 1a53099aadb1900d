package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veilbet/veilbet/internal/domain"
)

// BalanceCache implements domain.BalanceCache using Redis strings with JSON
// values and the fixed 30-day TTL from domain.BalanceCacheTTL.
//
// Key schema:
//
//	balance:{chainID}:{account} - JSON-encoded BalanceCacheEntry
type BalanceCache struct {
	rdb *redis.Client
}

// NewBalanceCache creates a BalanceCache backed by the given Client.
func NewBalanceCache(c *Client) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying()}
}

func balanceKey(account string, chainID int64) string {
	return fmt.Sprintf("balance:%d:%s", chainID, account)
}

// Get retrieves the cached balance entry. It returns domain.ErrBalanceUnknown
// when the key does not exist or the entry has passed its 30-day lifetime.
func (bc *BalanceCache) Get(ctx context.Context, account string, chainID int64) (domain.BalanceCacheEntry, error) {
	data, err := bc.rdb.Get(ctx, balanceKey(account, chainID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BalanceCacheEntry{}, domain.ErrBalanceUnknown
		}
		return domain.BalanceCacheEntry{}, fmt.Errorf("redis: get balance %s: %w", account, err)
	}

	var entry domain.BalanceCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.BalanceCacheEntry{}, fmt.Errorf("redis: unmarshal balance %s: %w", account, err)
	}
	if entry.Expired(time.Now()) {
		return domain.BalanceCacheEntry{}, domain.ErrBalanceUnknown
	}
	return entry, nil
}

// Put stores a freshly decrypted balance. The Redis TTL mirrors the entry's
// own 30-day lifetime so stale keys evict themselves.
func (bc *BalanceCache) Put(ctx context.Context, e domain.BalanceCacheEntry) error {
	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis: marshal balance %s: %w", e.Account, err)
	}

	if err := bc.rdb.Set(ctx, balanceKey(e.Account, e.ChainID), data, domain.BalanceCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis: put balance %s: %w", e.Account, err)
	}
	return nil
}

// ApplyDelta adjusts the cached balance optimistically after a confirmed
// wager or claim. A missing entry returns domain.ErrBalanceUnknown. A delta
// that would drive the balance negative invalidates the entry instead: the
// cache has drifted from the chain and must be re-decrypted.
//
// The remaining TTL is preserved; an optimistic adjustment is not a fresh
// decryption and must not extend the entry's lifetime.
func (bc *BalanceCache) ApplyDelta(ctx context.Context, account string, chainID int64, delta float64) error {
	key := balanceKey(account, chainID)

	entry, err := bc.Get(ctx, account, chainID)
	if err != nil {
		return err
	}

	next, ok := entry.ApplyDelta(delta)
	if !ok {
		if err := bc.Invalidate(ctx, account, chainID); err != nil {
			return err
		}
		return domain.ErrBalanceUnknown
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("redis: marshal balance %s: %w", account, err)
	}

	if err := bc.rdb.Set(ctx, key, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("redis: apply balance delta %s: %w", account, err)
	}
	return nil
}

// Invalidate removes the cached balance entry.
func (bc *BalanceCache) Invalidate(ctx context.Context, account string, chainID int64) error {
	if err := bc.rdb.Del(ctx, balanceKey(account, chainID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate balance %s: %w", account, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BalanceCache = (*BalanceCache)(nil)
