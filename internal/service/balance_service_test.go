package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilbet/veilbet/internal/domain"
)

func newBalanceFixture(gw *fakeGateway, dec *fakeDecryptor) (*BalanceService, *memBalanceCache) {
	balances := newMemBalanceCache()
	svc := NewBalanceService(
		gw, dec, &fakePermits{account: "0xacc"}, balances,
		"0xcontract", 8009, time.Hour, testLogger(),
	)
	return svc, balances
}

func TestBalanceRefresh_DecryptsAndCaches(t *testing.T) {
	gw := &fakeGateway{balanceHandle: "0x0a"}
	dec := &fakeDecryptor{values: map[domain.Handle]uint64{
		"0x0a": 1_234_500_000, // $1234.50
	}}
	svc, balances := newBalanceFixture(gw, dec)

	// Nothing cached until the user asks for a refresh.
	_, err := svc.Balance(context.Background())
	assert.ErrorIs(t, err, domain.ErrBalanceUnknown)

	entry, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, entry.Balance, 0.001)
	assert.Equal(t, "0xacc", entry.Account)

	// Subsequent reads come from the cache.
	cached, err := svc.Balance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, cached.Balance, 0.001)

	stored, err := balances.Get(context.Background(), "0xacc", 8009)
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, stored.Balance, 0.001)
}

func TestBalanceRefresh_ZeroHandleMeansEmptyAccount(t *testing.T) {
	// An account that never deposited has no ciphertext slot on chain.
	gw := &fakeGateway{balanceHandle: "0x00"}
	dec := &fakeDecryptor{}
	svc, _ := newBalanceFixture(gw, dec)

	entry, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, entry.Balance)
	assert.Zero(t, dec.calls)
}

func TestBalanceRefresh_DecryptFailureLeavesCacheUnknown(t *testing.T) {
	gw := &fakeGateway{balanceHandle: "0x0a"}
	dec := &fakeDecryptor{err: domain.ErrDecryptionUnavailable}
	svc, balances := newBalanceFixture(gw, dec)

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecryptionUnavailable)

	_, err = balances.Get(context.Background(), "0xacc", 8009)
	assert.ErrorIs(t, err, domain.ErrBalanceUnknown)
}

func TestBalanceRefresh_MissingHandleInResult(t *testing.T) {
	// Decrypt succeeded but did not return our handle; treat as unavailable
	// rather than caching a zero that would pass wager validation.
	gw := &fakeGateway{balanceHandle: "0x0a"}
	dec := &fakeDecryptor{values: map[domain.Handle]uint64{}}
	svc, balances := newBalanceFixture(gw, dec)

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecryptionUnavailable)

	_, err = balances.Get(context.Background(), "0xacc", 8009)
	assert.ErrorIs(t, err, domain.ErrBalanceUnknown)
}
