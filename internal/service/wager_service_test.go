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

type wagerFixture struct {
	svc      *WagerService
	gw       *fakeGateway
	ledger   *memLedger
	balances *memBalanceCache
	hints    *fakeHints
}

func newWagerFixture(t *testing.T, gw *fakeGateway) *wagerFixture {
	t.Helper()

	stats, _, _ := newStatsFixture(gw, &fakeDecryptor{})
	ledger := newMemLedger()
	balances := newMemBalanceCache()
	hints := &fakeHints{}

	require.NoError(t, balances.Put(context.Background(), domain.BalanceCacheEntry{
		Account: "0xacc", ChainID: 8009, Balance: 1000,
	}))

	svc := NewWagerService(
		gw, &fakeEncryptor{}, stats, ledger, balances, hints,
		"0xacc", 8009, testLogger(),
	)
	return &wagerFixture{svc: svc, gw: gw, ledger: ledger, balances: balances, hints: hints}
}

func tradableGateway() *fakeGateway {
	return &fakeGateway{
		market: binaryMarket(),
		oracle: domain.OracleSnapshot{
			Decrypted:   true,
			TotalVolume: 500,
			Options:     []domain.OptionShares{{Total: 400}, {Total: 100}},
			Traders:     10,
		},
	}
}

func TestPlace_ValidationTaxonomy(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.Market)
		req     WagerRequest
		wantErr error
	}{
		{
			name:    "resolved market",
			mutate:  func(m *domain.Market) { m.IsResolved = true },
			req:     WagerRequest{MarketID: 1, OptionIdx: 0, Amount: 10},
			wantErr: domain.ErrMarketResolved,
		},
		{
			name:    "expired market",
			mutate:  func(m *domain.Market) { m.EndTime = time.Now().Add(-time.Hour) },
			req:     WagerRequest{MarketID: 1, OptionIdx: 0, Amount: 10},
			wantErr: domain.ErrMarketExpired,
		},
		{
			name:    "inactive market",
			mutate:  func(m *domain.Market) { m.IsActive = false },
			req:     WagerRequest{MarketID: 1, OptionIdx: 0, Amount: 10},
			wantErr: domain.ErrMarketInactive,
		},
		{
			name:    "no option selected",
			req:     WagerRequest{MarketID: 1, OptionIdx: -1, Amount: 10},
			wantErr: domain.ErrNoOptionSelected,
		},
		{
			name:    "option out of range",
			req:     WagerRequest{MarketID: 1, OptionIdx: 5, Amount: 10},
			wantErr: domain.ErrInvalidOption,
		},
		{
			name:    "nested without outcome",
			mutate:  func(m *domain.Market) { m.Kind = domain.MarketKindNested },
			req:     WagerRequest{MarketID: 1, OptionIdx: 0, Amount: 10},
			wantErr: domain.ErrNoOutcomeSelected,
		},
		{
			name:    "amount below minimum",
			req:     WagerRequest{MarketID: 1, OptionIdx: 0, Amount: 0.5},
			wantErr: domain.ErrAmountOutOfBounds,
		},
		{
			name:    "amount above maximum",
			req:     WagerRequest{MarketID: 1, OptionIdx: 0, Amount: 5000},
			wantErr: domain.ErrAmountOutOfBounds,
		},
		{
			name:    "insufficient balance",
			req:     WagerRequest{MarketID: 1, OptionIdx: 0, Amount: 1000.5},
			wantErr: domain.ErrInsufficientBalance,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := tradableGateway()
			if tc.mutate != nil {
				tc.mutate(&gw.market)
			}
			if tc.name == "insufficient balance" {
				gw.market.MaxWager = 0 // unlimited, so only the balance blocks
			}
			fix := newWagerFixture(t, gw)

			_, err := fix.svc.Place(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			// Validation failures never reach the gateway.
			assert.Empty(t, fix.gw.submitted)
		})
	}
}

func TestPlace_Success(t *testing.T) {
	fix := newWagerFixture(t, tradableGateway())

	rec, err := fix.svc.Place(context.Background(), WagerRequest{
		MarketID: 1, OptionIdx: 0, Amount: 100,
	})
	require.NoError(t, err)

	// Submitted exactly once, record is optimistic but already revealed.
	require.Len(t, fix.gw.submitted, 1)
	assert.True(t, rec.Revealed)
	assert.Equal(t, "0xtx1", rec.TxHash)
	// (400+50)/(500+100) = 75% before the wager lands.
	assert.InDelta(t, 75.0, rec.PriceAtWager, 0.001)

	stored, err := fix.ledger.List(context.Background(), "0xacc", 8009, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rec.TxHash, stored[0].TxHash)

	// Optimistic negative delta.
	bal, err := fix.balances.Get(context.Background(), "0xacc", 8009)
	require.NoError(t, err)
	assert.InDelta(t, 900.0, bal.Balance, 0.001)

	// Best-effort hint mirrored.
	require.Len(t, fix.hints.recorded, 1)
	assert.Equal(t, uint64(1), fix.hints.recorded[0].MarketID)
}

func TestPlace_RecordCarriesMinedBlockTime(t *testing.T) {
	minedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	gw := tradableGateway()
	gw.minedAt = minedAt
	fix := newWagerFixture(t, gw)

	rec, err := fix.svc.Place(context.Background(), WagerRequest{
		MarketID: 1, OptionIdx: 0, Amount: 100,
	})
	require.NoError(t, err)
	// The contract stamps the wager with block time; the local record must
	// carry the same timestamp or reveal cannot correlate the two sides.
	assert.Equal(t, minedAt, rec.PlacedAt)
}

func TestPlace_ThenRevealMergesIntoOneRecord(t *testing.T) {
	minedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	gw := tradableGateway()
	gw.minedAt = minedAt
	fix := newWagerFixture(t, gw)

	rec, err := fix.svc.Place(context.Background(), WagerRequest{
		MarketID: 1, OptionIdx: 0, Amount: 100,
	})
	require.NoError(t, err)

	// The chain side of the same wager, stamped with the block time.
	gw.wagers = []domain.WagerCiphertexts{
		{PlacedAt: minedAt, OptionIdx: "0x01", Outcome: "0x02", Amount: "0x03"},
	}
	dec := &fakeDecryptor{values: map[domain.Handle]uint64{
		"0x01": 0, "0x02": 0, "0x03": 100_000_000,
	}}
	reveals := newRevealFixture(gw, dec, fix.ledger, newMemLocks())

	merged, err := reveals.Reveal(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	// One wager, one row: the reveal updated the optimistic record in place
	// instead of inserting a chain-side duplicate.
	records, err := fix.ledger.List(context.Background(), "0xacc", 8009, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 100.0, records[0].Amount, 0.001)
	assert.Equal(t, rec.TxHash, records[0].TxHash)
	assert.InDelta(t, rec.PriceAtWager, records[0].PriceAtWager, 0.001)
}

func TestPlace_FailedSubmissionLeavesStateUntouched(t *testing.T) {
	gw := tradableGateway()
	gw.submitErr = domain.ErrUserCancelled
	fix := newWagerFixture(t, gw)

	_, err := fix.svc.Place(context.Background(), WagerRequest{
		MarketID: 1, OptionIdx: 0, Amount: 100,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUserCancelled)

	// Ledger and balance are byte-for-byte what they were before.
	stored, err := fix.ledger.List(context.Background(), "0xacc", 8009, 1)
	require.NoError(t, err)
	assert.Empty(t, stored)

	bal, err := fix.balances.Get(context.Background(), "0xacc", 8009)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, bal.Balance, 0.001)
	assert.Empty(t, fix.hints.recorded)
}

func TestPlace_UnknownBalanceDoesNotBlock(t *testing.T) {
	fix := newWagerFixture(t, tradableGateway())
	require.NoError(t, fix.balances.Invalidate(context.Background(), "0xacc", 8009))

	_, err := fix.svc.Place(context.Background(), WagerRequest{
		MarketID: 1, OptionIdx: 0, Amount: 100,
	})
	require.NoError(t, err)
	require.Len(t, fix.gw.submitted, 1)

	// Still unknown afterwards; no delta was conjured.
	_, err = fix.balances.Get(context.Background(), "0xacc", 8009)
	assert.ErrorIs(t, err, domain.ErrBalanceUnknown)
}

func TestPlace_HintFailureIsInvisible(t *testing.T) {
	fix := newWagerFixture(t, tradableGateway())
	fix.hints.lossErr = errors.New("hint store down")

	_, err := fix.svc.Place(context.Background(), WagerRequest{
		MarketID: 1, OptionIdx: 0, Amount: 100,
	})
	require.NoError(t, err)
	require.Len(t, fix.gw.submitted, 1)
}

func TestQuote_UsesLatestSnapshot(t *testing.T) {
	fix := newWagerFixture(t, tradableGateway())

	q, err := fix.svc.Quote(context.Background(), WagerRequest{
		MarketID: 1, OptionIdx: 0, Amount: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 75.0, q.Probability, 0.001)
	assert.Equal(t, domain.ProvenanceOracle, q.Provenance)
}
