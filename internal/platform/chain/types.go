package chain

import (
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/veilbet/veilbet/internal/domain"
)

// Contract enums. Must match the Solidity definitions.
const (
	kindBinary         = 0
	kindMultipleChoice = 1
	kindNested         = 2

	outcomeEnumNone = 0
	outcomeEnumYes  = 1
	outcomeEnumNo   = 2
)

func kindFromEnum(k uint8) domain.MarketKind {
	switch k {
	case kindNested:
		return domain.MarketKindNested
	case kindMultipleChoice:
		return domain.MarketKindMultipleChoice
	default:
		return domain.MarketKindBinary
	}
}

func outcomeFromEnum(o uint8) domain.Outcome {
	switch o {
	case outcomeEnumYes:
		return domain.OutcomeYes
	case outcomeEnumNo:
		return domain.OutcomeNo
	default:
		return domain.OutcomeNone
	}
}

// marketResult mirrors the getMarket output tuple.
type marketResult struct {
	Question       string
	Kind           uint8
	OptionTitles   []string
	EndTime        *big.Int
	Liquidity      *big.Int
	MinWager       *big.Int
	MaxWager       *big.Int
	IsActive       bool
	IsResolved     bool
	WinningOption  *big.Int
	WinningOutcome uint8
}

func (r marketResult) toDomain(id uint64) domain.Market {
	opts := make([]domain.Option, 0, len(r.OptionTitles))
	for _, t := range r.OptionTitles {
		opts = append(opts, domain.Option{Title: t})
	}

	m := domain.Market{
		ID:            id,
		Kind:          kindFromEnum(r.Kind),
		Question:      r.Question,
		Options:       opts,
		EndTime:       time.Unix(r.EndTime.Int64(), 0).UTC(),
		Liquidity:     domain.AmountFromUnits(r.Liquidity.Uint64()),
		MinWager:      domain.AmountFromUnits(r.MinWager.Uint64()),
		MaxWager:      domain.AmountFromUnits(r.MaxWager.Uint64()),
		IsActive:      r.IsActive,
		IsResolved:    r.IsResolved,
		WinningOption: -1,
	}
	if r.IsResolved {
		m.WinningOption = int(r.WinningOption.Int64())
		m.WinningOutcome = outcomeFromEnum(r.WinningOutcome)
	}
	return m
}

// oracleResult mirrors the getOracleSnapshot output tuple.
type oracleResult struct {
	Decrypted    bool
	TotalVolume  *big.Int
	OptionTotals []*big.Int
	OptionYes    []*big.Int
	OptionNo     []*big.Int
	Traders      *big.Int
}

func (r oracleResult) toDomain() domain.OracleSnapshot {
	snap := domain.OracleSnapshot{
		Decrypted:   r.Decrypted,
		TotalVolume: domain.AmountFromUnits(r.TotalVolume.Uint64()),
		Traders:     r.Traders.Int64(),
	}
	snap.Options = make([]domain.OptionShares, 0, len(r.OptionTotals))
	for i := range r.OptionTotals {
		opt := domain.OptionShares{Total: domain.AmountFromUnits(r.OptionTotals[i].Uint64())}
		if i < len(r.OptionYes) {
			opt.Yes = domain.AmountFromUnits(r.OptionYes[i].Uint64())
		}
		if i < len(r.OptionNo) {
			opt.No = domain.AmountFromUnits(r.OptionNo[i].Uint64())
		}
		snap.Options = append(snap.Options, opt)
	}
	return snap
}

// handlesResult mirrors the getPoolHandles output tuple.
type handlesResult struct {
	TotalPool    [32]byte
	Traders      [32]byte
	OptionTotals [][32]byte
	OptionYes    [][32]byte
	OptionNo     [][32]byte
}

func (r handlesResult) toDomain() domain.PoolHandles {
	ph := domain.PoolHandles{
		TotalPool: handleFromBytes32(r.TotalPool),
		Traders:   handleFromBytes32(r.Traders),
	}
	ph.Options = make([]domain.OptionHandles, 0, len(r.OptionTotals))
	for i := range r.OptionTotals {
		oh := domain.OptionHandles{Total: handleFromBytes32(r.OptionTotals[i])}
		if i < len(r.OptionYes) {
			oh.Yes = handleFromBytes32(r.OptionYes[i])
		}
		if i < len(r.OptionNo) {
			oh.No = handleFromBytes32(r.OptionNo[i])
		}
		ph.Options = append(ph.Options, oh)
	}
	return ph
}

// wagersResult mirrors the getWagers output tuple (parallel arrays).
type wagersResult struct {
	PlacedAt  []*big.Int
	OptionIdx [][32]byte
	Outcome   [][32]byte
	Amount    [][32]byte
}

func (r wagersResult) toDomain() []domain.WagerCiphertexts {
	out := make([]domain.WagerCiphertexts, 0, len(r.PlacedAt))
	for i := range r.PlacedAt {
		w := domain.WagerCiphertexts{
			PlacedAt: time.Unix(r.PlacedAt[i].Int64(), 0).UTC(),
		}
		if i < len(r.OptionIdx) {
			w.OptionIdx = handleFromBytes32(r.OptionIdx[i])
		}
		if i < len(r.Outcome) {
			w.Outcome = handleFromBytes32(r.Outcome[i])
		}
		if i < len(r.Amount) {
			w.Amount = handleFromBytes32(r.Amount[i])
		}
		out = append(out, w)
	}
	return out
}

// payoutResult mirrors the payoutStatus output tuple.
type payoutResult struct {
	Participated bool
	Requested    bool
	Processed    bool
	Claimed      bool
	Won          bool
	Amount       *big.Int
}

func (r payoutResult) toDomain(marketID uint64, account string) domain.PayoutStatus {
	st := domain.PayoutStatus{
		MarketID:     marketID,
		Account:      account,
		HasRequested: r.Requested,
		IsProcessed:  r.Processed,
		Amount:       domain.AmountFromUnits(r.Amount.Uint64()),
	}
	switch {
	case !r.Participated:
		st.State = domain.PayoutNotParticipated
	case r.Processed && !r.Won:
		st.State = domain.PayoutLost
	case r.Claimed:
		st.State = domain.PayoutClaimed
	case r.Processed:
		st.State = domain.PayoutProcessed
	case r.Requested:
		st.State = domain.PayoutRequested
	default:
		st.State = domain.PayoutNotRequested
	}
	return st
}

func handleFromBytes32(b [32]byte) domain.Handle {
	return domain.Handle("0x" + hex.EncodeToString(b[:]))
}

// mapRevert translates the contract's revert reasons into the engine's
// sentinel errors so callers can branch on errors.Is. Unknown reasons pass
// through untouched.
func mapRevert(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "market expired"), strings.Contains(msg, "betting closed"):
		return domain.ErrMarketExpired
	case strings.Contains(msg, "market resolved"), strings.Contains(msg, "already resolved"):
		return domain.ErrMarketResolved
	case strings.Contains(msg, "market not active"), strings.Contains(msg, "market inactive"):
		return domain.ErrMarketInactive
	case strings.Contains(msg, "invalid option"):
		return domain.ErrInvalidOption
	}
	return err
}
