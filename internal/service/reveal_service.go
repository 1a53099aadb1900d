package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veilbet/veilbet/internal/domain"
)

// revealLockTTL bounds how long a reveal run may hold its lock. Batch
// decryption can legitimately take minutes.
const revealLockTTL = 5 * time.Minute

// RevealService converts the account's optimistically recorded wagers into
// oracle-confirmed records, and recovers the ledger after a session change.
// One batch decrypt covers every handle of every wager on the market.
type RevealService struct {
	gateway   domain.MarketGateway
	decryptor domain.Decryptor
	permits   domain.PermitIssuer
	ledger    domain.WagerLedger
	locks     domain.LockManager
	logger    *slog.Logger

	contract  string
	chainID   int64
	permitTTL time.Duration
}

// NewRevealService creates a RevealService with all required dependencies.
func NewRevealService(
	gateway domain.MarketGateway,
	decryptor domain.Decryptor,
	permits domain.PermitIssuer,
	ledger domain.WagerLedger,
	locks domain.LockManager,
	contract string,
	chainID int64,
	permitTTL time.Duration,
	logger *slog.Logger,
) *RevealService {
	return &RevealService{
		gateway:   gateway,
		decryptor: decryptor,
		permits:   permits,
		ledger:    ledger,
		locks:     locks,
		contract:  contract,
		chainID:   chainID,
		permitTTL: permitTTL,
		logger:    logger,
	}
}

// Reveal decrypts all of the account's wager handles on a market and merges
// the results into the local ledger. The merge is keyed by the wager's
// timestamp, the only correlation key present on both sides, and is
// idempotent: running it twice yields the same ledger state. Concurrent runs
// for the same (account, market) are excluded by a distributed lock.
//
// It returns the number of wagers merged.
func (s *RevealService) Reveal(ctx context.Context, marketID uint64) (int, error) {
	account := s.permits.Account()

	unlock, err := s.locks.Acquire(ctx, fmt.Sprintf("reveal:%s:%d", account, marketID), revealLockTTL)
	if err != nil {
		return 0, fmt.Errorf("reveal_service: acquire lock: %w", err)
	}
	defer unlock()

	wagers, err := s.gateway.WagerHandles(ctx, marketID, account)
	if err != nil {
		return 0, fmt.Errorf("reveal_service: wager handles %d: %w", marketID, err)
	}
	if len(wagers) == 0 {
		return 0, nil
	}

	batch := make([]domain.Handle, 0, len(wagers)*3)
	for _, w := range wagers {
		for _, h := range []domain.Handle{w.OptionIdx, w.Outcome, w.Amount} {
			if !h.Zero() {
				batch = append(batch, h)
			}
		}
	}

	permit, err := s.permits.IssuePermit(ctx, s.contract, s.permitTTL)
	if err != nil {
		return 0, fmt.Errorf("reveal_service: issue permit: %w", err)
	}

	values, err := s.decryptor.BatchDecrypt(ctx, permit, batch)
	if err != nil {
		return 0, fmt.Errorf("reveal_service: batch decrypt %d: %w", marketID, err)
	}

	merged := 0
	for _, w := range wagers {
		amount, ok := values[w.Amount]
		if !ok {
			s.logger.WarnContext(ctx, "reveal_service: amount handle missing from decrypt result",
				slog.Uint64("market_id", marketID),
				slog.Time("placed_at", w.PlacedAt),
			)
			continue
		}

		rec := domain.LocalWagerRecord{
			Account:   account,
			ChainID:   s.chainID,
			MarketID:  marketID,
			PlacedAt:  w.PlacedAt.Truncate(time.Second),
			OptionIdx: int(values[w.OptionIdx]),
			Outcome:   outcomeFromUnits(values[w.Outcome]),
			Amount:    domain.AmountFromUnits(amount),
			Revealed:  true,
			// TxHash and PriceAtWager are zero here: the ledger upsert keeps
			// the locally stored values for both.
		}
		if err := s.ledger.Upsert(ctx, rec); err != nil {
			return merged, fmt.Errorf("reveal_service: merge wager at %s: %w", w.PlacedAt, err)
		}
		merged++
	}

	s.logger.InfoContext(ctx, "reveal_service: reveal complete",
		slog.Uint64("market_id", marketID),
		slog.String("account", account),
		slog.Int("merged", merged),
	)
	return merged, nil
}
