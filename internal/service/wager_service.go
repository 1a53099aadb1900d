package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veilbet/veilbet/internal/domain"
	"github.com/veilbet/veilbet/internal/pricing"
)

// WagerService coordinates wager submission: validation, the fresh pre-trade
// price, encryption, on-chain submission, and the optimistic ledger and
// balance writes that follow a confirmed transaction.
type WagerService struct {
	gateway   domain.MarketGateway
	encryptor domain.Encryptor
	stats     *StatsService
	ledger    domain.WagerLedger
	balances  domain.BalanceCache
	hints     domain.HintStore
	logger    *slog.Logger

	account string
	chainID int64
}

// NewWagerService creates a WagerService with all required dependencies.
func NewWagerService(
	gateway domain.MarketGateway,
	encryptor domain.Encryptor,
	stats *StatsService,
	ledger domain.WagerLedger,
	balances domain.BalanceCache,
	hints domain.HintStore,
	account string,
	chainID int64,
	logger *slog.Logger,
) *WagerService {
	return &WagerService{
		gateway:   gateway,
		encryptor: encryptor,
		stats:     stats,
		ledger:    ledger,
		balances:  balances,
		hints:     hints,
		account:   account,
		chainID:   chainID,
		logger:    logger,
	}
}

// WagerRequest is one candidate wager.
type WagerRequest struct {
	MarketID  uint64
	OptionIdx int
	Outcome   domain.Outcome
	Amount    float64
}

// Quote computes the live pre-trade quote for a candidate wager against the
// latest published snapshot. Render-only; Place re-prices against a fresh
// fetch.
func (s *WagerService) Quote(ctx context.Context, req WagerRequest) (pricing.Quote, error) {
	market, err := s.stats.Market(ctx, req.MarketID)
	if err != nil {
		return pricing.Quote{}, err
	}
	snap, err := s.stats.Latest(ctx, req.MarketID)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.QuoteFor(market, snap, req.OptionIdx, req.Outcome, req.Amount), nil
}

// Place validates, prices, encrypts, and submits a wager, then performs the
// optimistic local writes. Any failure before on-chain confirmation leaves
// the ledger and balance cache untouched.
func (s *WagerService) Place(ctx context.Context, req WagerRequest) (domain.LocalWagerRecord, error) {
	market, err := s.stats.Market(ctx, req.MarketID)
	if err != nil {
		return domain.LocalWagerRecord{}, err
	}

	if err := s.validate(ctx, market, req); err != nil {
		return domain.LocalWagerRecord{}, err
	}

	// Fresh pool state, never the published snapshot (§ pre-trade race).
	snap, err := s.stats.FreshPoolState(ctx, market)
	if err != nil {
		return domain.LocalWagerRecord{}, fmt.Errorf("wager_service: pre-trade pool fetch: %w", err)
	}
	quote := pricing.QuoteFor(market, snap, req.OptionIdx, req.Outcome, req.Amount)

	encrypted, err := s.encrypt(ctx, req)
	if err != nil {
		return domain.LocalWagerRecord{}, err
	}

	sub, err := s.gateway.SubmitWager(ctx, encrypted)
	if err != nil {
		// No ledger or balance mutation on any submission failure.
		return domain.LocalWagerRecord{}, fmt.Errorf("wager_service: submit: %w", err)
	}

	// The record's timestamp is the mined block's: the contract stamps the
	// wager with block time, and reveal correlates the two sides on it. An
	// unconfirmed submission has no block time yet; reveal reconciles such a
	// record from the chain side later.
	placedAt := sub.MinedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
		s.logger.WarnContext(ctx, "wager_service: no mined timestamp, record keyed on local clock until reveal",
			slog.Uint64("market_id", req.MarketID),
			slog.String("tx", sub.TxHash),
		)
	}

	rec := domain.LocalWagerRecord{
		ID:           uuid.NewString(),
		Account:      s.account,
		ChainID:      s.chainID,
		MarketID:     req.MarketID,
		PlacedAt:     placedAt.Truncate(time.Second),
		OptionIdx:    req.OptionIdx,
		Outcome:      req.Outcome,
		Amount:       req.Amount,
		TxHash:       sub.TxHash,
		PriceAtWager: quote.Probability,
		// The submitter knows its own cleartext amount; nothing to reveal.
		Revealed: true,
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		// The wager is on chain; losing the local record is recoverable via
		// reveal, so report but do not fail the submission.
		s.logger.ErrorContext(ctx, "wager_service: ledger append failed after confirmed submission",
			slog.Uint64("market_id", req.MarketID),
			slog.String("tx", sub.TxHash),
			slog.String("error", err.Error()),
		)
	}

	if err := s.balances.ApplyDelta(ctx, s.account, s.chainID, -req.Amount); err != nil &&
		!errors.Is(err, domain.ErrBalanceUnknown) {
		s.logger.WarnContext(ctx, "wager_service: balance delta failed",
			slog.String("account", s.account),
			slog.String("error", err.Error()),
		)
	}

	if _, err := s.stats.Refresh(ctx, req.MarketID); err != nil {
		s.logger.WarnContext(ctx, "wager_service: post-trade stats refresh failed",
			slog.Uint64("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
	}

	// Best-effort hint mirror; never blocks the result.
	if hintErr := s.hints.RecordWager(ctx, domain.WagerHint{
		MarketID:  req.MarketID,
		Account:   s.account,
		OptionIdx: req.OptionIdx,
		Outcome:   req.Outcome,
		Amount:    req.Amount,
		TxHash:    sub.TxHash,
		PlacedAt:  rec.PlacedAt,
	}); hintErr != nil {
		s.logger.WarnContext(ctx, "wager_service: hint mirror failed",
			slog.Uint64("market_id", req.MarketID),
			slog.String("error", hintErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "wager_service: wager placed",
		slog.Uint64("market_id", req.MarketID),
		slog.Int("option_idx", req.OptionIdx),
		slog.Float64("amount", req.Amount),
		slog.Float64("price_at_wager", quote.Probability),
		slog.String("tx", sub.TxHash),
	)

	return rec, nil
}

// validate applies the submission preconditions. Validation failures never
// reach the gateway.
func (s *WagerService) validate(ctx context.Context, market domain.Market, req WagerRequest) error {
	now := time.Now()
	switch {
	case market.IsResolved:
		return domain.ErrMarketResolved
	case market.Expired(now):
		return domain.ErrMarketExpired
	case !market.IsActive:
		return domain.ErrMarketInactive
	}

	if req.OptionIdx < 0 {
		return domain.ErrNoOptionSelected
	}
	if req.OptionIdx >= len(market.Options) {
		return domain.ErrInvalidOption
	}
	if market.Kind == domain.MarketKindNested && req.Outcome == domain.OutcomeNone {
		return domain.ErrNoOutcomeSelected
	}

	if req.Amount < market.MinWager || (market.MaxWager > 0 && req.Amount > market.MaxWager) {
		return domain.ErrAmountOutOfBounds
	}

	// Balance check only when a decrypted balance is known. An unknown
	// balance is not a validation failure; the contract enforces funds.
	entry, err := s.balances.Get(ctx, s.account, s.chainID)
	if err == nil && req.Amount > entry.Balance {
		return domain.ErrInsufficientBalance
	}

	return nil
}

// encrypt produces the three ciphertexts of the wager payload.
func (s *WagerService) encrypt(ctx context.Context, req WagerRequest) (domain.EncryptedWager, error) {
	option, err := s.encryptor.Encrypt(ctx, uint64(req.OptionIdx))
	if err != nil {
		return domain.EncryptedWager{}, fmt.Errorf("wager_service: encrypt option: %w", err)
	}
	outcome, err := s.encryptor.Encrypt(ctx, outcomeToUnits(req.Outcome))
	if err != nil {
		return domain.EncryptedWager{}, fmt.Errorf("wager_service: encrypt outcome: %w", err)
	}
	amount, err := s.encryptor.Encrypt(ctx, domain.AmountToUnits(req.Amount))
	if err != nil {
		return domain.EncryptedWager{}, fmt.Errorf("wager_service: encrypt amount: %w", err)
	}

	return domain.EncryptedWager{
		MarketID: req.MarketID,
		Option:   option,
		Outcome:  outcome,
		Amount:   amount,
	}, nil
}

// outcomeToUnits maps an Outcome to the contract's integer encoding.
func outcomeToUnits(o domain.Outcome) uint64 {
	switch o {
	case domain.OutcomeYes:
		return 1
	case domain.OutcomeNo:
		return 2
	default:
		return 0
	}
}

// outcomeFromUnits is the inverse of outcomeToUnits, used by the reveal
// merge.
func outcomeFromUnits(u uint64) domain.Outcome {
	switch u {
	case 1:
		return domain.OutcomeYes
	case 2:
		return domain.OutcomeNo
	default:
		return domain.OutcomeNone
	}
}
