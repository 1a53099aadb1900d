package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilbet/veilbet/internal/domain"
)

func binaryMarket() domain.Market {
	return domain.Market{
		ID:        1,
		Kind:      domain.MarketKindBinary,
		Question:  "Will it rain tomorrow?",
		Options:   []domain.Option{{Title: "Yes"}, {Title: "No"}},
		EndTime:   time.Now().Add(24 * time.Hour),
		Liquidity: 100,
		MinWager:  1,
		MaxWager:  1000,
		IsActive:  true,
	}
}

func newStatsFixture(gw *fakeGateway, dec *fakeDecryptor) (*StatsService, *memSnapshotCache, *memBus) {
	snaps := newMemSnapshotCache()
	bus := newMemBus()
	svc := NewStatsService(
		gw, dec, &fakePermits{account: "0xacc"},
		snaps, newMemMarketCache(), bus,
		"0xcontract", time.Hour, testLogger(),
	)
	return svc, snaps, bus
}

func TestStatsRefresh_OracleAuthoritative(t *testing.T) {
	gw := &fakeGateway{
		market: binaryMarket(),
		oracle: domain.OracleSnapshot{
			Decrypted:   true,
			TotalVolume: 500,
			Options:     []domain.OptionShares{{Total: 400}, {Total: 100}},
			Traders:     12,
		},
	}
	dec := &fakeDecryptor{}
	svc, snaps, bus := newStatsFixture(gw, dec)

	snap, err := svc.Refresh(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, domain.ProvenanceOracle, snap.Provenance)
	assert.InDelta(t, 500.0, snap.TotalVolume, 0.001)
	assert.Equal(t, int64(12), snap.Traders)
	// Oracle values never trigger a decrypt.
	assert.Equal(t, 0, dec.calls)

	cached, err := snaps.Latest(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, snap.Provenance, cached.Provenance)
	assert.Len(t, bus.published[SnapshotChannel], 1)
}

func TestStatsRefresh_LiveDecryptFiltersZeroHandles(t *testing.T) {
	gw := &fakeGateway{
		market: binaryMarket(),
		oracle: domain.OracleSnapshot{Decrypted: false},
		handles: domain.PoolHandles{
			TotalPool: "0xaa",
			Traders:   "0x0000", // never written, must be filtered
			Options: []domain.OptionHandles{
				{Total: "0xb1"},
				{Total: "0xb2"},
			},
		},
	}
	dec := &fakeDecryptor{values: map[domain.Handle]uint64{
		"0xaa": 500_000_000, // 500 in display units
		"0xb1": 400_000_000,
		"0xb2": 100_000_000,
	}}
	svc, _, _ := newStatsFixture(gw, dec)

	snap, err := svc.Refresh(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, domain.ProvenanceLive, snap.Provenance)
	assert.InDelta(t, 500.0, snap.TotalVolume, 0.001)
	assert.InDelta(t, 400.0, snap.Options[0].Total, 0.001)
	assert.InDelta(t, 100.0, snap.Options[1].Total, 0.001)
	// The unwritten traders handle decrypts to nothing and reads as zero.
	assert.Equal(t, int64(0), snap.Traders)
	assert.Equal(t, 1, dec.calls)
}

func TestStatsRefresh_DegradesOnDecryptFailure(t *testing.T) {
	gw := &fakeGateway{
		market:  binaryMarket(),
		oracle:  domain.OracleSnapshot{Decrypted: false},
		handles: domain.PoolHandles{TotalPool: "0xaa"},
	}
	dec := &fakeDecryptor{err: domain.ErrDecryptionUnavailable}
	svc, snaps, _ := newStatsFixture(gw, dec)

	snap, err := svc.Refresh(context.Background(), 1)
	require.NoError(t, err) // degraded, never fatal

	assert.True(t, snap.Degraded())
	assert.Zero(t, snap.TotalVolume)
	require.Len(t, snap.Options, 2)
	assert.Zero(t, snap.Options[0].Total)

	// The degraded snapshot is still published so consumers render it,
	// tagged so they can tell it apart from an empty pool.
	cached, err := snaps.Latest(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, cached.Degraded())
}

func TestStatsRefresh_DegradesOnGatewayHandleFailure(t *testing.T) {
	gw := &fakeGateway{
		market:     binaryMarket(),
		oracleErr:  domain.ErrGatewayUnavailable,
		handlesErr: domain.ErrGatewayUnavailable,
	}
	svc, _, _ := newStatsFixture(gw, &fakeDecryptor{})

	snap, err := svc.Refresh(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, snap.Degraded())
}

func TestFreshPoolState_PropagatesFailure(t *testing.T) {
	gw := &fakeGateway{
		market:  binaryMarket(),
		oracle:  domain.OracleSnapshot{Decrypted: false},
		handles: domain.PoolHandles{TotalPool: "0xaa"},
	}
	dec := &fakeDecryptor{err: domain.ErrDecryptionUnavailable}
	svc, _, _ := newStatsFixture(gw, dec)

	// A pre-trade price must never come from fabricated zeros.
	_, err := svc.FreshPoolState(context.Background(), binaryMarket())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDecryptionUnavailable))
}

func TestLatest_ServesCacheWithoutRefetch(t *testing.T) {
	gw := &fakeGateway{market: binaryMarket(), oracle: domain.OracleSnapshot{Decrypted: true, TotalVolume: 50}}
	svc, snaps, _ := newStatsFixture(gw, &fakeDecryptor{})

	seeded := domain.StatisticsSnapshot{MarketID: 1, TotalVolume: 42, Provenance: domain.ProvenanceOracle}
	require.NoError(t, snaps.Publish(context.Background(), seeded))

	snap, err := svc.Latest(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 42.0, snap.TotalVolume, 0.001)
}
