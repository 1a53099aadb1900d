package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/veilbet/veilbet/internal/domain"
)

// PayoutCache implements domain.PayoutCache using Redis strings with
// JSON-serialized statuses. Entries carry no TTL: the monotonic floor has to
// survive arbitrarily long gaps between refreshes, and a resolved market's
// claim state never becomes stale.
//
// Key schema:
//
//	payout:{marketID}:{account} - JSON-encoded PayoutStatus
type PayoutCache struct {
	rdb *redis.Client
}

// NewPayoutCache creates a PayoutCache backed by the given Client.
func NewPayoutCache(c *Client) *PayoutCache {
	return &PayoutCache{rdb: c.Underlying()}
}

func payoutKey(marketID uint64, account string) string {
	return fmt.Sprintf("payout:%d:%s", marketID, account)
}

// Get retrieves the last observed payout status for (market, account).
// It returns domain.ErrNotFound when none has been recorded.
func (pc *PayoutCache) Get(ctx context.Context, marketID uint64, account string) (domain.PayoutStatus, error) {
	data, err := pc.rdb.Get(ctx, payoutKey(marketID, account)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PayoutStatus{}, domain.ErrNotFound
		}
		return domain.PayoutStatus{}, fmt.Errorf("redis: get payout %d/%s: %w", marketID, account, err)
	}

	var status domain.PayoutStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.PayoutStatus{}, fmt.Errorf("redis: unmarshal payout %d/%s: %w", marketID, account, err)
	}
	return status, nil
}

// Put records the given payout status, replacing any previous one. Callers
// merge against the previous status before calling Put; the cache itself does
// not enforce ordering.
func (pc *PayoutCache) Put(ctx context.Context, status domain.PayoutStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("redis: marshal payout %d/%s: %w", status.MarketID, status.Account, err)
	}

	if err := pc.rdb.Set(ctx, payoutKey(status.MarketID, status.Account), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: put payout %d/%s: %w", status.MarketID, status.Account, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PayoutCache = (*PayoutCache)(nil)
