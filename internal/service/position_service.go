package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/veilbet/veilbet/internal/domain"
)

// PositionService derives render-ready position aggregates from the local
// wager ledger and the latest statistics snapshot. Aggregates are never
// persisted; they are recomputed on every call so a new snapshot or ledger
// write is always reflected.
type PositionService struct {
	ledger domain.WagerLedger
	stats  *StatsService

	account string
	chainID int64
}

// NewPositionService creates a PositionService with all required dependencies.
func NewPositionService(ledger domain.WagerLedger, stats *StatsService, account string, chainID int64) *PositionService {
	return &PositionService{
		ledger:  ledger,
		stats:   stats,
		account: account,
		chainID: chainID,
	}
}

// Wagers returns the account's raw ledger records for a market, oldest first.
func (s *PositionService) Wagers(ctx context.Context, marketID uint64) ([]domain.LocalWagerRecord, error) {
	records, err := s.ledger.List(ctx, s.account, s.chainID, marketID)
	if err != nil {
		return nil, fmt.Errorf("position_service: list wagers %d: %w", marketID, err)
	}
	return records, nil
}

// Positions aggregates the account's wagers on a market, grouped by option
// for flat markets and by (option, outcome) for nested ones, marked to the
// latest snapshot.
func (s *PositionService) Positions(ctx context.Context, marketID uint64) ([]domain.PositionAggregate, error) {
	market, err := s.stats.Market(ctx, marketID)
	if err != nil {
		return nil, err
	}
	records, err := s.Wagers(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	snap, err := s.stats.Latest(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("position_service: snapshot %d: %w", marketID, err)
	}

	return Aggregate(market, snap, records), nil
}

// positionKey groups records: outcome is always OutcomeNone for flat markets.
type positionKey struct {
	optionIdx int
	outcome   domain.Outcome
}

// Aggregate groups wager records into position aggregates and marks them to
// the given snapshot. Pure; exported for reuse by the HTTP surface.
func Aggregate(market domain.Market, snap domain.StatisticsSnapshot, records []domain.LocalWagerRecord) []domain.PositionAggregate {
	groups := make(map[positionKey]*domain.PositionAggregate)

	for _, rec := range records {
		key := positionKey{optionIdx: rec.OptionIdx}
		if market.Kind == domain.MarketKindNested {
			key.outcome = rec.Outcome
		}

		agg, ok := groups[key]
		if !ok {
			agg = &domain.PositionAggregate{OptionIdx: key.optionIdx, Outcome: key.outcome}
			groups[key] = agg
		}

		agg.Amount += rec.Amount
		if rec.PriceAtWager > 0 {
			agg.Shares += rec.Amount / (rec.PriceAtWager / 100)
		} else if rec.Amount > 0 {
			agg.SharesUnknown = true
		}
	}

	out := make([]domain.PositionAggregate, 0, len(groups))
	for key, agg := range groups {
		markToPool(agg, market, snap, key)
		out = append(out, *agg)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].OptionIdx != out[j].OptionIdx {
			return out[i].OptionIdx < out[j].OptionIdx
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out
}

// markToPool fills in CurrentValue and ProfitLoss: the position's pro-rata
// share of the distributable pool (total volume minus the subsidy) if its
// side won right now. Degraded snapshots mark nothing; zeros there are
// fabricated.
func markToPool(agg *domain.PositionAggregate, market domain.Market, snap domain.StatisticsSnapshot, key positionKey) {
	if snap.Degraded() {
		return
	}

	sidePool := snap.SharesFor(key.optionIdx, key.outcome)
	distributable := snap.TotalVolume - market.Liquidity
	if sidePool <= 0 || distributable <= 0 {
		return
	}

	agg.CurrentValue = agg.Amount / sidePool * distributable
	agg.ProfitLoss = agg.CurrentValue - agg.Amount
}
