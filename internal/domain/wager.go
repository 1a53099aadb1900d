package domain

import "time"

// LocalWagerRecord is the engine's optimistic record of one of the user's own
// wagers. It is appended immediately after a successful on-chain submission
// (the submitter knows the cleartext amount even though the contract stores
// ciphertext) and later overwritten in place by the reveal service with
// oracle-confirmed values. PriceAtWager and TxHash survive that merge when
// the decrypted side lacks them.
type LocalWagerRecord struct {
	ID        string
	Account   string
	ChainID   int64
	MarketID  uint64
	PlacedAt  time.Time
	OptionIdx int
	Outcome   Outcome
	Amount    float64
	TxHash    string
	// PriceAtWager is the option probability (percent) quoted immediately
	// before this wager was applied to the pool.
	PriceAtWager float64
	Revealed     bool
}

// PositionAggregate is derived from LocalWagerRecords grouped by option (and
// outcome for nested markets). Never persisted; recomputed on every ledger or
// statistics change.
type PositionAggregate struct {
	OptionIdx int     `json:"option_idx"`
	Outcome   Outcome `json:"outcome,omitempty"`
	Amount    float64 `json:"amount"`
	// Shares is amount / (priceAtWager/100) summed per record. When no price
	// is known for a record its shares are 0 and SharesUnknown is set.
	Shares        float64 `json:"shares"`
	SharesUnknown bool    `json:"shares_unknown"`
	// CurrentValue marks the position to the latest pool snapshot.
	CurrentValue float64 `json:"current_value"`
	ProfitLoss   float64 `json:"profit_loss"`
}
