package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilbet/veilbet/internal/domain"
)

type payoutFixture struct {
	svc      *PayoutService
	gw       *fakeGateway
	hints    *fakeHints
	statuses *memPayoutCache
	balances *memBalanceCache
}

func newPayoutFixture(gw *fakeGateway, hints *fakeHints) *payoutFixture {
	statuses := newMemPayoutCache()
	balances := newMemBalanceCache()
	svc := NewPayoutService(gw, hints, statuses, balances, "0xacc", 8009, testLogger())
	return &payoutFixture{svc: svc, gw: gw, hints: hints, statuses: statuses, balances: balances}
}

func TestStatus_HintedLossSkipsChainQuery(t *testing.T) {
	fix := newPayoutFixture(&fakeGateway{}, &fakeHints{lost: true})

	st, err := fix.svc.Status(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, domain.PayoutLost, st.State)
	assert.Equal(t, 0, fix.gw.payoutQueries)
}

func TestStatus_HintReadFailureFailsOpen(t *testing.T) {
	gw := &fakeGateway{payout: domain.PayoutStatus{State: domain.PayoutNotRequested}}
	fix := newPayoutFixture(gw, &fakeHints{readErr: errors.New("hint store down")})

	st, err := fix.svc.Status(context.Background(), 3)
	require.NoError(t, err)

	// Fell through to the authoritative chain query.
	assert.Equal(t, 1, fix.gw.payoutQueries)
	assert.Equal(t, domain.PayoutNotRequested, st.State)
}

func TestStatusOnChain_BypassesDivergentHint(t *testing.T) {
	// The hint wrongly marks a winning position as lost. The forced re-check
	// must reach the chain and believe its answer.
	gw := &fakeGateway{payout: domain.PayoutStatus{
		State: domain.PayoutProcessed, HasRequested: true, IsProcessed: true, Amount: 120,
	}}
	fix := newPayoutFixture(gw, &fakeHints{lost: true})

	hinted, err := fix.svc.Status(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutLost, hinted.State)

	// The hinted Lost was never cached, so nothing floors the chain answer.
	_, err = fix.statuses.Get(context.Background(), 3, "0xacc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	forced, err := fix.svc.StatusOnChain(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, fix.gw.payoutQueries)
	assert.Equal(t, domain.PayoutProcessed, forced.State)
	assert.InDelta(t, 120.0, forced.Amount, 0.001)
}

func TestStatusOnChain_MonotonicFloor(t *testing.T) {
	gw := &fakeGateway{payout: domain.PayoutStatus{
		State: domain.PayoutProcessed, HasRequested: true, IsProcessed: true, Amount: 80,
	}}
	fix := newPayoutFixture(gw, &fakeHints{})

	st, err := fix.svc.StatusOnChain(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, domain.PayoutProcessed, st.State)

	// A lagging node now reports the pre-request state. The refresh must
	// not regress what was already observed.
	gw.payout = domain.PayoutStatus{State: domain.PayoutNotRequested}

	st, err = fix.svc.StatusOnChain(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutProcessed, st.State)
	assert.InDelta(t, 80.0, st.Amount, 0.001)
}

func TestRequest_AdvancesState(t *testing.T) {
	fix := newPayoutFixture(&fakeGateway{}, &fakeHints{})

	st, err := fix.svc.Request(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, fix.gw.requestCalls)
	assert.Equal(t, domain.PayoutRequested, st.State)
	assert.True(t, st.HasRequested)

	cached, err := fix.statuses.Get(context.Background(), 3, "0xacc")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutRequested, cached.State)
}

func TestClaim_AppliesBalanceDelta(t *testing.T) {
	gw := &fakeGateway{payout: domain.PayoutStatus{
		State: domain.PayoutProcessed, HasRequested: true, IsProcessed: true, Amount: 150,
	}}
	fix := newPayoutFixture(gw, &fakeHints{})
	require.NoError(t, fix.balances.Put(context.Background(), domain.BalanceCacheEntry{
		Account: "0xacc", ChainID: 8009, Balance: 100,
	}))

	st, err := fix.svc.Claim(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, fix.gw.claimCalls)
	assert.Equal(t, domain.PayoutClaimed, st.State)

	bal, err := fix.balances.Get(context.Background(), "0xacc", 8009)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, bal.Balance, 0.001)
}

func TestClaim_RejectsUnprocessedOrZeroAmount(t *testing.T) {
	cases := []struct {
		name   string
		status domain.PayoutStatus
	}{
		{"not requested", domain.PayoutStatus{State: domain.PayoutNotRequested}},
		{"still pending", domain.PayoutStatus{State: domain.PayoutRequested, HasRequested: true}},
		{"processed but lost", domain.PayoutStatus{State: domain.PayoutLost, HasRequested: true, IsProcessed: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fix := newPayoutFixture(&fakeGateway{payout: tc.status}, &fakeHints{})

			_, err := fix.svc.Claim(context.Background(), 3)
			require.Error(t, err)
			assert.Equal(t, 0, fix.gw.claimCalls)
		})
	}
}
