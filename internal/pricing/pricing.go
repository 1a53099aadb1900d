// Package pricing computes option probabilities and projected parimutuel
// returns from decrypted pool aggregates. Everything here is pure: callers
// feed it the latest StatisticsSnapshot and re-derive on every change.
package pricing

import (
	"github.com/veilbet/veilbet/internal/domain"
)

// Probabilities are clamped away from the extremes: a parimutuel pool can
// never guarantee an outcome before resolution, so the engine never quotes
// absolute certainty.
const (
	MinProbability = 0.1
	MaxProbability = 99.9
)

func clamp(p float64) float64 {
	if p < MinProbability {
		return MinProbability
	}
	if p > MaxProbability {
		return MaxProbability
	}
	return p
}

// Probability returns the percent probability of one option in a binary or
// multiple-choice market. The liquidity subsidy is spread evenly across the
// options so an empty market quotes 100/optionCount instead of dividing by
// zero.
func Probability(optionShares, totalShares float64, optionCount int, liquidity float64) float64 {
	if optionCount <= 0 {
		return 0
	}
	perOption := liquidity / float64(optionCount)
	denom := totalShares + liquidity
	if denom <= 0 {
		return clamp(100 / float64(optionCount))
	}
	return clamp((optionShares + perOption) / denom * 100)
}

// NestedProbability returns the percent probability of one outcome of a
// nested option. The subsidy splits evenly across the two outcomes, and the
// two probabilities always sum to exactly 100.
func NestedProbability(yesShares, noShares, liquidity float64, outcome domain.Outcome) float64 {
	denom := yesShares + noShares + liquidity
	var pYes float64
	if denom <= 0 {
		pYes = 50
	} else {
		pYes = (yesShares + liquidity/2) / denom * 100
	}
	pYes = clamp(pYes)
	if outcome == domain.OutcomeNo {
		return 100 - pYes
	}
	return pYes
}

// ProjectedReturn estimates the payout and net profit of wagering amount on
// a pool that currently holds winnerPool of currentPool total volume. The
// subsidy is excluded from the distributable pool: it goes back to the
// market creator at resolution, not to winners. Net profit is floored at
// zero so a thin pool never projects a guaranteed loss as a negative win.
func ProjectedReturn(amount, currentPool, winnerPool, liquidity float64) (payout, netProfit float64) {
	if amount <= 0 {
		return 0, 0
	}
	newPool := currentPool + amount
	newWinnerPool := winnerPool + amount
	distributable := newPool - liquidity
	if newWinnerPool <= 0 || distributable <= 0 {
		return 0, 0
	}
	payout = amount / newWinnerPool * distributable
	netProfit = payout - amount
	if netProfit < 0 {
		netProfit = 0
	}
	return payout, netProfit
}

// Quote is the render-ready live quote for a candidate wager. Values are
// estimates: they move as other wagers land, which the surface labels.
type Quote struct {
	Probability     float64           `json:"probability"`
	EstimatedPayout float64           `json:"estimated_payout"`
	NetProfit       float64           `json:"net_profit"`
	Provenance      domain.Provenance `json:"provenance"`
}

// QuoteFor computes the pre-trade quote for wagering amount on the given
// option (and outcome, for nested markets) against the supplied snapshot.
func QuoteFor(m domain.Market, snap domain.StatisticsSnapshot, optionIdx int, outcome domain.Outcome, amount float64) Quote {
	q := Quote{Provenance: snap.Provenance}

	switch m.Kind {
	case domain.MarketKindNested:
		if optionIdx >= 0 && optionIdx < len(snap.Options) {
			opt := snap.Options[optionIdx]
			q.Probability = NestedProbability(opt.Yes, opt.No, m.Liquidity, outcome)
		}
	default:
		var total float64
		for _, opt := range snap.Options {
			total += opt.Total
		}
		q.Probability = Probability(snap.SharesFor(optionIdx, domain.OutcomeNone), total, len(m.Options), m.Liquidity)
	}

	q.EstimatedPayout, q.NetProfit = ProjectedReturn(
		amount, snap.TotalVolume, snap.SharesFor(optionIdx, outcome), m.Liquidity,
	)
	return q
}

// OptionQuote is one option's displayed probability.
type OptionQuote struct {
	OptionIdx      int     `json:"option_idx"`
	Probability    float64 `json:"probability,omitempty"`
	YesProbability float64 `json:"yes_probability,omitempty"`
	NoProbability  float64 `json:"no_probability,omitempty"`
}

// OptionQuotes returns the probability of every option in the market,
// derived entirely from the snapshot.
func OptionQuotes(m domain.Market, snap domain.StatisticsSnapshot) []OptionQuote {
	quotes := make([]OptionQuote, 0, len(m.Options))
	var total float64
	for _, opt := range snap.Options {
		total += opt.Total
	}

	for i := range m.Options {
		oq := OptionQuote{OptionIdx: i}
		if m.Kind == domain.MarketKindNested {
			var yes, no float64
			if i < len(snap.Options) {
				yes, no = snap.Options[i].Yes, snap.Options[i].No
			}
			oq.YesProbability = NestedProbability(yes, no, m.Liquidity, domain.OutcomeYes)
			oq.NoProbability = 100 - oq.YesProbability
		} else {
			oq.Probability = Probability(snap.SharesFor(i, domain.OutcomeNone), total, len(m.Options), m.Liquidity)
		}
		quotes = append(quotes, oq)
	}
	return quotes
}
