package domain

import (
	"context"
	"time"
)

// WagerHint is the cleartext mirror of a wager recorded in the off-chain
// hint store for fast UX reads. It carries no authority: the chain and the
// local ledger always win on divergence.
type WagerHint struct {
	MarketID  uint64    `json:"market_id"`
	Account   string    `json:"account"`
	OptionIdx int       `json:"option_idx"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Amount    float64   `json:"amount"`
	TxHash    string    `json:"tx_hash"`
	PlacedAt  time.Time `json:"placed_at"`
}

// HintStore is the best-effort off-chain record store. Every method may fail
// without affecting engine correctness; callers log and move on.
type HintStore interface {
	RecordWager(ctx context.Context, hint WagerHint) error
	// ResolvedLoss reports whether the store marks the account's position in
	// a resolved market as a loss. Used only to skip a payout query; a read
	// failure must fail open.
	ResolvedLoss(ctx context.Context, marketID uint64, account string) (bool, error)
}
