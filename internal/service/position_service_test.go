package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilbet/veilbet/internal/domain"
)

func TestAggregate_FlatGroupsByOption(t *testing.T) {
	market := binaryMarket()
	snap := domain.StatisticsSnapshot{
		TotalVolume: 600,
		Options:     []domain.OptionShares{{Total: 500}, {Total: 100}},
		Provenance:  domain.ProvenanceOracle,
	}
	records := []domain.LocalWagerRecord{
		{OptionIdx: 0, Amount: 100, PriceAtWager: 50},
		{OptionIdx: 0, Amount: 50, PriceAtWager: 75},
		{OptionIdx: 1, Amount: 25, PriceAtWager: 25},
	}

	aggs := Aggregate(market, snap, records)
	require.Len(t, aggs, 2)

	a := aggs[0]
	assert.Equal(t, 0, a.OptionIdx)
	assert.InDelta(t, 150.0, a.Amount, 0.001)
	// 100/(50/100) + 50/(75/100) = 200 + 66.67
	assert.InDelta(t, 266.667, a.Shares, 0.01)
	assert.False(t, a.SharesUnknown)

	// 150/500 of the distributable 500 pool.
	assert.InDelta(t, 150.0, a.CurrentValue, 0.001)
	assert.InDelta(t, 0.0, a.ProfitLoss, 0.001)

	b := aggs[1]
	assert.Equal(t, 1, b.OptionIdx)
	// 25/100 of the distributable 500 pool.
	assert.InDelta(t, 125.0, b.CurrentValue, 0.001)
	assert.InDelta(t, 100.0, b.ProfitLoss, 0.001)
}

func TestAggregate_NestedGroupsByOptionAndOutcome(t *testing.T) {
	market := binaryMarket()
	market.Kind = domain.MarketKindNested
	snap := domain.StatisticsSnapshot{
		TotalVolume: 400,
		Options:     []domain.OptionShares{{Yes: 300, No: 100}},
		Provenance:  domain.ProvenanceLive,
	}
	records := []domain.LocalWagerRecord{
		{OptionIdx: 0, Outcome: domain.OutcomeYes, Amount: 60, PriceAtWager: 75},
		{OptionIdx: 0, Outcome: domain.OutcomeNo, Amount: 40, PriceAtWager: 25},
		{OptionIdx: 0, Outcome: domain.OutcomeYes, Amount: 30, PriceAtWager: 75},
	}

	aggs := Aggregate(market, snap, records)
	require.Len(t, aggs, 2)

	// Sorted by option then outcome ("no" < "yes").
	assert.Equal(t, domain.OutcomeNo, aggs[0].Outcome)
	assert.InDelta(t, 40.0, aggs[0].Amount, 0.001)
	assert.Equal(t, domain.OutcomeYes, aggs[1].Outcome)
	assert.InDelta(t, 90.0, aggs[1].Amount, 0.001)
}

func TestAggregate_UnknownPriceFlagsShares(t *testing.T) {
	market := binaryMarket()
	snap := domain.StatisticsSnapshot{Provenance: domain.ProvenanceOracle}
	records := []domain.LocalWagerRecord{
		{OptionIdx: 0, Amount: 100, PriceAtWager: 50},
		// Recovered via reveal on a fresh session: no local price survives.
		{OptionIdx: 0, Amount: 40, PlacedAt: time.Unix(1, 0)},
	}

	aggs := Aggregate(market, snap, records)
	require.Len(t, aggs, 1)
	assert.True(t, aggs[0].SharesUnknown)
	// Shares from the priced record still count.
	assert.InDelta(t, 200.0, aggs[0].Shares, 0.001)
}

func TestAggregate_DegradedSnapshotMarksNothing(t *testing.T) {
	market := binaryMarket()
	snap := domain.StatisticsSnapshot{
		Options:    make([]domain.OptionShares, 2),
		Provenance: domain.ProvenanceDegraded,
	}
	records := []domain.LocalWagerRecord{
		{OptionIdx: 0, Amount: 100, PriceAtWager: 50},
	}

	aggs := Aggregate(market, snap, records)
	require.Len(t, aggs, 1)
	// Fabricated zeros must not be presented as a total loss.
	assert.Zero(t, aggs[0].CurrentValue)
	assert.Zero(t, aggs[0].ProfitLoss)
}

func TestPositions_EndToEnd(t *testing.T) {
	gw := tradableGateway()
	stats, _, _ := newStatsFixture(gw, &fakeDecryptor{})
	ledger := newMemLedger()

	require.NoError(t, ledger.Append(context.Background(), domain.LocalWagerRecord{
		Account: "0xacc", ChainID: 8009, MarketID: 1,
		PlacedAt: time.Now().Truncate(time.Second),
		OptionIdx: 0, Amount: 100, PriceAtWager: 75, Revealed: true,
	}))

	svc := NewPositionService(ledger, stats, "0xacc", 8009)
	aggs, err := svc.Positions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.InDelta(t, 100.0, aggs[0].Amount, 0.001)
	// 100/400 of the distributable (500-100) pool.
	assert.InDelta(t, 100.0, aggs[0].CurrentValue, 0.001)
}

func TestPositions_EmptyLedger(t *testing.T) {
	gw := tradableGateway()
	stats, _, _ := newStatsFixture(gw, &fakeDecryptor{})
	svc := NewPositionService(newMemLedger(), stats, "0xacc", 8009)

	aggs, err := svc.Positions(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, aggs)
}
