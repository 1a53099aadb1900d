// Package service contains the engine's application services: statistics
// reconciliation, wager submission, reveal, payout lifecycle, and position
// aggregation.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/veilbet/veilbet/internal/domain"
)

// SnapshotChannel is the signal bus channel where every published snapshot is
// announced.
const SnapshotChannel = "snapshots"

// SnapshotEvent is the payload published on SnapshotChannel.
type SnapshotEvent struct {
	Event    string                    `json:"event"`
	MarketID uint64                    `json:"market_id"`
	Snapshot domain.StatisticsSnapshot `json:"snapshot"`
}

// StatsService reconciles the three statistics tiers into one published
// snapshot per market: the oracle's decrypted aggregate when available, a
// live batch decrypt of the raw pool handles otherwise, and a zero-filled
// degraded snapshot when decryption fails. Statistics unavailability is never
// a fatal error.
type StatsService struct {
	gateway   domain.MarketGateway
	decryptor domain.Decryptor
	permits   domain.PermitIssuer
	snapshots domain.SnapshotCache
	markets   domain.MarketCache
	bus       domain.SignalBus
	logger    *slog.Logger

	contract  string
	permitTTL time.Duration

	// group collapses concurrent refreshes of the same market into one fetch.
	group singleflight.Group
}

// NewStatsService creates a StatsService with all required dependencies.
func NewStatsService(
	gateway domain.MarketGateway,
	decryptor domain.Decryptor,
	permits domain.PermitIssuer,
	snapshots domain.SnapshotCache,
	markets domain.MarketCache,
	bus domain.SignalBus,
	contract string,
	permitTTL time.Duration,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		gateway:   gateway,
		decryptor: decryptor,
		permits:   permits,
		snapshots: snapshots,
		markets:   markets,
		bus:       bus,
		contract:  contract,
		permitTTL: permitTTL,
		logger:    logger,
	}
}

// Market returns market metadata, served from the short-TTL cache when
// possible.
func (s *StatsService) Market(ctx context.Context, marketID uint64) (domain.Market, error) {
	if m, err := s.markets.Get(ctx, marketID); err == nil {
		return m, nil
	}

	m, err := s.gateway.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("stats_service: get market %d: %w", marketID, err)
	}

	if cacheErr := s.markets.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "stats_service: market cache set failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// Latest returns the last published snapshot for a market, refreshing first
// when none exists.
func (s *StatsService) Latest(ctx context.Context, marketID uint64) (domain.StatisticsSnapshot, error) {
	if snap, err := s.snapshots.Latest(ctx, marketID); err == nil {
		return snap, nil
	}
	return s.Refresh(ctx, marketID)
}

// Refresh re-runs the reconciliation state machine for one market and
// publishes the result. Concurrent calls for the same market share a single
// underlying fetch.
func (s *StatsService) Refresh(ctx context.Context, marketID uint64) (domain.StatisticsSnapshot, error) {
	v, err, _ := s.group.Do(fmt.Sprintf("refresh:%d", marketID), func() (any, error) {
		return s.refresh(ctx, marketID)
	})
	if err != nil {
		return domain.StatisticsSnapshot{}, err
	}
	return v.(domain.StatisticsSnapshot), nil
}

func (s *StatsService) refresh(ctx context.Context, marketID uint64) (domain.StatisticsSnapshot, error) {
	market, err := s.Market(ctx, marketID)
	if err != nil {
		return domain.StatisticsSnapshot{}, err
	}

	snap := s.reconcile(ctx, market)
	snap.MarketID = marketID
	snap.FetchedAt = time.Now().UTC()

	if err := s.snapshots.Publish(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "stats_service: snapshot publish failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	evt, _ := json.Marshal(SnapshotEvent{
		Event:    "snapshot_published",
		MarketID: marketID,
		Snapshot: snap,
	})
	if pubErr := s.bus.Publish(ctx, SnapshotChannel, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "stats_service: bus publish failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", pubErr.Error()),
		)
	}

	return snap, nil
}

// reconcile walks the three tiers in order. It always returns a snapshot.
func (s *StatsService) reconcile(ctx context.Context, market domain.Market) domain.StatisticsSnapshot {
	// Tier 1: the oracle's published aggregate. Authoritative and cheaper
	// than any decryption.
	oracle, err := s.gateway.OracleSnapshot(ctx, market.ID)
	if err == nil && oracle.Decrypted {
		return domain.StatisticsSnapshot{
			TotalVolume: oracle.TotalVolume,
			Options:     oracle.Options,
			Traders:     oracle.Traders,
			Provenance:  domain.ProvenanceOracle,
		}
	}
	if err != nil {
		s.logger.DebugContext(ctx, "stats_service: oracle snapshot unavailable",
			slog.Uint64("market_id", market.ID),
			slog.String("error", err.Error()),
		)
	}

	// Tier 2: one batch decrypt of the raw handles.
	snap, err := s.liveDecrypt(ctx, market)
	if err == nil {
		return snap
	}
	s.logger.WarnContext(ctx, "stats_service: live decrypt failed, degrading",
		slog.Uint64("market_id", market.ID),
		slog.String("error", err.Error()),
	)

	// Tier 3: zero-filled fallback. The provenance tag is what lets a
	// consumer tell these zeros apart from a genuinely empty pool.
	return domain.StatisticsSnapshot{
		Options:    make([]domain.OptionShares, len(market.Options)),
		Provenance: domain.ProvenanceDegraded,
	}
}

// liveDecrypt fetches the market's pool handles and decrypts every non-zero
// one in a single batch.
func (s *StatsService) liveDecrypt(ctx context.Context, market domain.Market) (domain.StatisticsSnapshot, error) {
	handles, err := s.gateway.PoolHandles(ctx, market.ID)
	if err != nil {
		return domain.StatisticsSnapshot{}, fmt.Errorf("stats_service: pool handles %d: %w", market.ID, err)
	}

	batch := collectPoolHandles(handles)
	values := map[domain.Handle]uint64{}
	if len(batch) > 0 {
		permit, err := s.permits.IssuePermit(ctx, s.contract, s.permitTTL)
		if err != nil {
			return domain.StatisticsSnapshot{}, fmt.Errorf("stats_service: issue permit: %w", err)
		}
		values, err = s.decryptor.BatchDecrypt(ctx, permit, batch)
		if err != nil {
			return domain.StatisticsSnapshot{}, fmt.Errorf("stats_service: batch decrypt %d: %w", market.ID, err)
		}
	}

	snap := domain.StatisticsSnapshot{
		TotalVolume: domain.AmountFromUnits(values[handles.TotalPool]),
		Traders:     int64(values[handles.Traders]),
		Provenance:  domain.ProvenanceLive,
	}
	snap.Options = make([]domain.OptionShares, len(market.Options))
	for i := range market.Options {
		if i >= len(handles.Options) {
			break
		}
		oh := handles.Options[i]
		snap.Options[i] = domain.OptionShares{
			Total: domain.AmountFromUnits(values[oh.Total]),
			Yes:   domain.AmountFromUnits(values[oh.Yes]),
			No:    domain.AmountFromUnits(values[oh.No]),
		}
	}
	return snap, nil
}

// collectPoolHandles flattens the non-zero handles of a market into one
// batch. Handles the contract never wrote are skipped; the decryption
// capability rejects them.
func collectPoolHandles(ph domain.PoolHandles) []domain.Handle {
	var batch []domain.Handle
	add := func(h domain.Handle) {
		if !h.Zero() {
			batch = append(batch, h)
		}
	}
	add(ph.TotalPool)
	add(ph.Traders)
	for _, oh := range ph.Options {
		add(oh.Total)
		add(oh.Yes)
		add(oh.No)
	}
	return batch
}

// FreshPoolState fetches the current pool state directly, bypassing the
// published snapshot. Wager submission uses this for its pre-trade price so
// two nearly simultaneous wagers cannot both price against the same stale
// figures. Unlike Refresh it propagates failure instead of degrading: a
// pre-trade price must never be computed from fabricated zeros.
func (s *StatsService) FreshPoolState(ctx context.Context, market domain.Market) (domain.StatisticsSnapshot, error) {
	oracle, err := s.gateway.OracleSnapshot(ctx, market.ID)
	if err == nil && oracle.Decrypted {
		return domain.StatisticsSnapshot{
			MarketID:    market.ID,
			TotalVolume: oracle.TotalVolume,
			Options:     oracle.Options,
			Traders:     oracle.Traders,
			Provenance:  domain.ProvenanceOracle,
			FetchedAt:   time.Now().UTC(),
		}, nil
	}

	snap, liveErr := s.liveDecrypt(ctx, market)
	if liveErr != nil {
		if err != nil {
			return domain.StatisticsSnapshot{}, errors.Join(err, liveErr)
		}
		return domain.StatisticsSnapshot{}, liveErr
	}
	snap.MarketID = market.ID
	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}
