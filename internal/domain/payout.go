package domain

// PayoutState is the claim-lifecycle state of a resolved market for one
// account. Transitions only move forward; see payoutRank.
type PayoutState string

const (
	PayoutNotParticipated PayoutState = "not_participated"
	PayoutLost            PayoutState = "lost"
	PayoutNotRequested    PayoutState = "not_requested"
	PayoutRequested       PayoutState = "requested"
	PayoutProcessed       PayoutState = "processed"
	PayoutClaimed         PayoutState = "claimed"
)

// payoutRank orders the forward-only states. NotParticipated and Lost are
// absorbing and rank above everything a refresh could regress to.
var payoutRank = map[PayoutState]int{
	PayoutNotRequested:    0,
	PayoutRequested:       1,
	PayoutProcessed:       2,
	PayoutClaimed:         3,
	PayoutLost:            4,
	PayoutNotParticipated: 4,
}

// PayoutStatus is the per (market, account) claim state.
type PayoutStatus struct {
	MarketID     uint64      `json:"market_id"`
	Account      string      `json:"account"`
	State        PayoutState `json:"state"`
	HasRequested bool        `json:"has_requested"`
	IsProcessed  bool        `json:"is_processed"`
	// Amount is meaningful once IsProcessed; zero after processing means the
	// position lost.
	Amount float64 `json:"amount"`
}

// Merge applies a freshly queried status on top of a previously observed one,
// enforcing the monotonic floor: a refresh may re-confirm or advance the
// state but never silently regress it.
func (p PayoutStatus) Merge(fresh PayoutStatus) PayoutStatus {
	if payoutRank[fresh.State] >= payoutRank[p.State] {
		return fresh
	}
	return p
}
