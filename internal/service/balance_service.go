package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veilbet/veilbet/internal/domain"
)

// BalanceService owns the decrypted balance cache. The on-chain balance is
// ciphertext; Refresh decrypts it under a permit and caches the cleartext,
// after which confirmed wagers and claims adjust the entry optimistically
// instead of re-decrypting.
type BalanceService struct {
	gateway   domain.MarketGateway
	decryptor domain.Decryptor
	permits   domain.PermitIssuer
	balances  domain.BalanceCache
	logger    *slog.Logger

	contract  string
	chainID   int64
	permitTTL time.Duration
}

// NewBalanceService creates a BalanceService with all required dependencies.
func NewBalanceService(
	gateway domain.MarketGateway,
	decryptor domain.Decryptor,
	permits domain.PermitIssuer,
	balances domain.BalanceCache,
	contract string,
	chainID int64,
	permitTTL time.Duration,
	logger *slog.Logger,
) *BalanceService {
	return &BalanceService{
		gateway:   gateway,
		decryptor: decryptor,
		permits:   permits,
		balances:  balances,
		contract:  contract,
		chainID:   chainID,
		permitTTL: permitTTL,
		logger:    logger,
	}
}

// Balance returns the cached decrypted balance for the engine account.
// ErrBalanceUnknown means no usable entry exists and the caller should offer
// a Refresh.
func (s *BalanceService) Balance(ctx context.Context) (domain.BalanceCacheEntry, error) {
	return s.balances.Get(ctx, s.permits.Account(), s.chainID)
}

// Refresh decrypts the account's on-chain balance and replaces the cached
// entry. Decryption can legitimately take minutes; callers expose this as an
// explicit user action, never as an implicit read.
func (s *BalanceService) Refresh(ctx context.Context) (domain.BalanceCacheEntry, error) {
	account := s.permits.Account()

	handle, err := s.gateway.BalanceHandle(ctx, account)
	if err != nil {
		return domain.BalanceCacheEntry{}, fmt.Errorf("balance_service: balance handle: %w", err)
	}

	entry := domain.BalanceCacheEntry{
		Account:  account,
		ChainID:  s.chainID,
		CachedAt: time.Now().UTC(),
	}

	// A zero handle is a never-written slot: the account holds nothing.
	if handle.Zero() {
		entry.Balance = 0
	} else {
		permit, err := s.permits.IssuePermit(ctx, s.contract, s.permitTTL)
		if err != nil {
			return domain.BalanceCacheEntry{}, fmt.Errorf("balance_service: issue permit: %w", err)
		}

		values, err := s.decryptor.BatchDecrypt(ctx, permit, []domain.Handle{handle})
		if err != nil {
			return domain.BalanceCacheEntry{}, fmt.Errorf("balance_service: decrypt balance: %w", err)
		}
		units, ok := values[handle]
		if !ok {
			return domain.BalanceCacheEntry{}, fmt.Errorf("balance_service: %w: handle missing from decrypt result", domain.ErrDecryptionUnavailable)
		}
		entry.Balance = domain.AmountFromUnits(units)
	}

	if err := s.balances.Put(ctx, entry); err != nil {
		return domain.BalanceCacheEntry{}, fmt.Errorf("balance_service: cache balance: %w", err)
	}

	s.logger.InfoContext(ctx, "balance_service: balance decrypted",
		slog.String("account", account),
		slog.Float64("balance", entry.Balance),
	)
	return entry, nil
}
