package domain

import "time"

// MarketKind distinguishes the three market layouts supported by the
// prediction contract.
type MarketKind string

const (
	// MarketKindBinary is a two-option market (one winner).
	MarketKindBinary MarketKind = "binary"
	// MarketKindMultipleChoice is an n-option market (one winner).
	MarketKindMultipleChoice MarketKind = "multiple_choice"
	// MarketKindNested is a market whose options are each a yes/no
	// sub-market of their own.
	MarketKindNested MarketKind = "nested"
)

// Outcome is the yes/no side of a nested option. It is empty for binary and
// multiple-choice markets, where the option index alone identifies the bet.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeYes  Outcome = "yes"
	OutcomeNo   Outcome = "no"
)

// Market represents one encrypted parimutuel market on the prediction
// contract. Share totals live in StatisticsSnapshot, not here: the contract
// only ever exposes them as ciphertext or via the statistics reconciler.
type Market struct {
	ID       uint64
	Kind     MarketKind
	Question string
	Options  []Option
	EndTime  time.Time

	// Liquidity is the phantom subsidy injected into pool math so an empty
	// market still quotes a price. It is returned to the market creator at
	// resolution and never distributed to winners.
	Liquidity float64

	// MinWager and MaxWager bound a single wager in display units.
	MinWager float64
	MaxWager float64

	IsActive   bool
	IsResolved bool

	// WinningOption is -1 until the market resolves.
	WinningOption int
	// WinningOutcome is set only for resolved nested markets.
	WinningOutcome Outcome
}

// Option is one side of a market. Title is the only per-option field the
// contract stores in cleartext.
type Option struct {
	Title string
}

// Expired reports whether the market's end time has passed.
func (m Market) Expired(now time.Time) bool {
	return !m.EndTime.IsZero() && now.After(m.EndTime)
}

// Tradable reports whether wagers can still be placed.
func (m Market) Tradable(now time.Time) bool {
	return m.IsActive && !m.IsResolved && !m.Expired(now)
}
