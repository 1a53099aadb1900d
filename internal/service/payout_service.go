package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veilbet/veilbet/internal/domain"
)

// PayoutService drives the claim lifecycle of a resolved market for the
// engine account. Observed states are persisted in the payout cache and
// merged under the monotonic floor: a refresh may advance or re-confirm a
// state but never silently regress it.
type PayoutService struct {
	gateway  domain.MarketGateway
	hints    domain.HintStore
	statuses domain.PayoutCache
	balances domain.BalanceCache
	logger   *slog.Logger

	account string
	chainID int64
}

// NewPayoutService creates a PayoutService with all required dependencies.
func NewPayoutService(
	gateway domain.MarketGateway,
	hints domain.HintStore,
	statuses domain.PayoutCache,
	balances domain.BalanceCache,
	account string,
	chainID int64,
	logger *slog.Logger,
) *PayoutService {
	return &PayoutService{
		gateway:  gateway,
		hints:    hints,
		statuses: statuses,
		balances: balances,
		account:  account,
		chainID:  chainID,
		logger:   logger,
	}
}

// Status returns the claim state for a resolved market, consulting the hint
// store first: a hinted loss short-circuits the on-chain query entirely.
// This is a UX optimization only; a hint read failure falls through to the
// authoritative check, and StatusOnChain remains reachable for a forced
// re-check.
func (s *PayoutService) Status(ctx context.Context, marketID uint64) (domain.PayoutStatus, error) {
	lost, err := s.hints.ResolvedLoss(ctx, marketID, s.account)
	if err != nil {
		// Fail open.
		s.logger.WarnContext(ctx, "payout_service: hint read failed, falling through to chain",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	} else if lost {
		// Returned directly, never persisted: the payout cache holds only
		// chain-observed states, so a wrong hint can always be overridden by
		// the forced on-chain re-check.
		return domain.PayoutStatus{
			MarketID: marketID,
			Account:  s.account,
			State:    domain.PayoutLost,
		}, nil
	}

	return s.StatusOnChain(ctx, marketID)
}

// StatusOnChain queries the chain directly, bypassing the hint store. The
// chain's answer is authoritative; it is merged over the cached state under
// the monotonic floor and persisted.
func (s *PayoutService) StatusOnChain(ctx context.Context, marketID uint64) (domain.PayoutStatus, error) {
	fresh, err := s.gateway.PayoutStatus(ctx, marketID, s.account)
	if err != nil {
		return domain.PayoutStatus{}, fmt.Errorf("payout_service: status %d: %w", marketID, err)
	}
	return s.record(ctx, fresh)
}

// Request asks the contract to begin decrypting the account's winning
// amount. The decryption is asynchronous and can take minutes; callers poll
// Status (or StatusOnChain) afterwards.
func (s *PayoutService) Request(ctx context.Context, marketID uint64) (domain.PayoutStatus, error) {
	txHash, err := s.gateway.RequestPayout(ctx, marketID)
	if err != nil {
		return domain.PayoutStatus{}, fmt.Errorf("payout_service: request %d: %w", marketID, err)
	}

	s.logger.InfoContext(ctx, "payout_service: payout requested",
		slog.Uint64("market_id", marketID),
		slog.String("tx", txHash),
	)

	return s.record(ctx, domain.PayoutStatus{
		MarketID:     marketID,
		Account:      s.account,
		State:        domain.PayoutRequested,
		HasRequested: true,
	})
}

// Claim transfers a processed payout to the account and applies the
// optimistic positive balance delta. The payout must already be Processed
// with a nonzero amount.
func (s *PayoutService) Claim(ctx context.Context, marketID uint64) (domain.PayoutStatus, error) {
	current, err := s.StatusOnChain(ctx, marketID)
	if err != nil {
		return domain.PayoutStatus{}, err
	}
	if current.State != domain.PayoutProcessed || current.Amount <= 0 {
		return current, fmt.Errorf("payout_service: market %d not claimable in state %s", marketID, current.State)
	}

	txHash, err := s.gateway.ClaimPayout(ctx, marketID)
	if err != nil {
		return domain.PayoutStatus{}, fmt.Errorf("payout_service: claim %d: %w", marketID, err)
	}

	if err := s.balances.ApplyDelta(ctx, s.account, s.chainID, current.Amount); err != nil &&
		!errors.Is(err, domain.ErrBalanceUnknown) {
		s.logger.WarnContext(ctx, "payout_service: balance delta failed",
			slog.String("account", s.account),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "payout_service: payout claimed",
		slog.Uint64("market_id", marketID),
		slog.Float64("amount", current.Amount),
		slog.String("tx", txHash),
	)

	current.State = domain.PayoutClaimed
	return s.record(ctx, current)
}

// record merges a freshly observed status over the cached one under the
// monotonic floor, persists the result, and returns it.
func (s *PayoutService) record(ctx context.Context, fresh domain.PayoutStatus) (domain.PayoutStatus, error) {
	merged := fresh
	prev, err := s.statuses.Get(ctx, fresh.MarketID, fresh.Account)
	if err == nil {
		merged = prev.Merge(fresh)
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "payout_service: payout cache read failed",
			slog.Uint64("market_id", fresh.MarketID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.statuses.Put(ctx, merged); err != nil {
		s.logger.WarnContext(ctx, "payout_service: payout cache write failed",
			slog.Uint64("market_id", fresh.MarketID),
			slog.String("error", err.Error()),
		)
	}
	return merged, nil
}
