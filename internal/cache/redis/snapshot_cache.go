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

// snapshotTTL bounds how long a published snapshot survives without a
// refresh. Long enough to ride out a reconciler restart, short enough that a
// dead reconciler does not serve day-old figures as current.
const snapshotTTL = time.Hour

// SnapshotCache implements domain.SnapshotCache using Redis strings with
// JSON-serialized snapshots.
//
// Key schema:
//
//	snapshot:{marketID} - JSON-encoded StatisticsSnapshot
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func snapshotKey(marketID uint64) string {
	return fmt.Sprintf("snapshot:%d", marketID)
}

// Publish stores the latest snapshot for a market, replacing any previous one.
func (sc *SnapshotCache) Publish(ctx context.Context, snap domain.StatisticsSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %d: %w", snap.MarketID, err)
	}

	if err := sc.rdb.Set(ctx, snapshotKey(snap.MarketID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: publish snapshot %d: %w", snap.MarketID, err)
	}
	return nil
}

// Latest retrieves the last published snapshot for a market.
// It returns domain.ErrNotFound when no snapshot has been published.
func (sc *SnapshotCache) Latest(ctx context.Context, marketID uint64) (domain.StatisticsSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StatisticsSnapshot{}, domain.ErrNotFound
		}
		return domain.StatisticsSnapshot{}, fmt.Errorf("redis: get snapshot %d: %w", marketID, err)
	}

	var snap domain.StatisticsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.StatisticsSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %d: %w", marketID, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
