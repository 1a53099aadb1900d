package domain

import "time"

// Provenance tags which of the three statistics tiers produced a snapshot.
type Provenance string

const (
	// ProvenanceOracle marks values from the periodically published oracle
	// snapshot. Authoritative: a live decrypt must not overwrite them.
	ProvenanceOracle Provenance = "oracle_decrypted"
	// ProvenanceLive marks values obtained by an on-demand batch decrypt of
	// the raw pool handles.
	ProvenanceLive Provenance = "live_decrypted"
	// ProvenanceDegraded marks an all-zero fallback emitted when decryption
	// failed. Consumers can tell these zeros apart from an empty pool by
	// this tag.
	ProvenanceDegraded Provenance = "degraded"
)

// OptionShares holds the decrypted share totals for one option. Total is
// used for binary/multiple-choice markets; Yes and No for nested markets.
type OptionShares struct {
	Total float64 `json:"total"`
	Yes   float64 `json:"yes"`
	No    float64 `json:"no"`
}

// StatisticsSnapshot is the single normalized statistics view published by
// the reconciler. All figures are cleartext display units.
type StatisticsSnapshot struct {
	MarketID    uint64         `json:"market_id"`
	TotalVolume float64        `json:"total_volume"`
	Options     []OptionShares `json:"options"`
	Traders     int64          `json:"traders"`
	Provenance  Provenance     `json:"provenance"`
	FetchedAt   time.Time      `json:"fetched_at"`
}

// Degraded reports whether the snapshot is the zero-filled fallback.
func (s StatisticsSnapshot) Degraded() bool {
	return s.Provenance == ProvenanceDegraded
}

// SharesFor returns the pool that a wager on the given option (and outcome,
// for nested markets) would join. Returns 0 for an out-of-range index.
func (s StatisticsSnapshot) SharesFor(optionIdx int, outcome Outcome) float64 {
	if optionIdx < 0 || optionIdx >= len(s.Options) {
		return 0
	}
	opt := s.Options[optionIdx]
	switch outcome {
	case OutcomeYes:
		return opt.Yes
	case OutcomeNo:
		return opt.No
	default:
		return opt.Total
	}
}
