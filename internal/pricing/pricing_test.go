package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilbet/veilbet/internal/domain"
)

func TestProbability_EmptyPoolSplitsEvenly(t *testing.T) {
	// No real shares: every option quotes 100/optionCount regardless of the
	// subsidy size.
	assert.InDelta(t, 50.0, Probability(0, 0, 2, 100), 0.001)
	assert.InDelta(t, 25.0, Probability(0, 0, 4, 100), 0.001)
	// Zero liquidity and zero shares must not divide by zero.
	assert.InDelta(t, 50.0, Probability(0, 0, 2, 0), 0.001)
}

func TestProbability_WeightedPool(t *testing.T) {
	// 400 vs 100 real shares with a 100 subsidy across two options:
	// (400+50)/(500+100) = 75%.
	assert.InDelta(t, 75.0, Probability(400, 500, 2, 100), 0.001)
	assert.InDelta(t, 25.0, Probability(100, 500, 2, 100), 0.001)
}

func TestProbability_SumsToHundred(t *testing.T) {
	shares := []float64{120, 40, 300, 0, 15}
	var total float64
	for _, s := range shares {
		total += s
	}
	var sum float64
	for _, s := range shares {
		sum += Probability(s, total, len(shares), 75)
	}
	assert.InDelta(t, 100.0, sum, 0.01)
}

func TestProbability_Clamped(t *testing.T) {
	// One option holds essentially the whole pool: still never 100%.
	p := Probability(1e9, 1e9, 2, 0)
	assert.LessOrEqual(t, p, MaxProbability)
	p = Probability(0, 1e9, 2, 0)
	assert.GreaterOrEqual(t, p, MinProbability)
}

func TestNestedProbability_EmptyPool(t *testing.T) {
	assert.InDelta(t, 50.0, NestedProbability(0, 0, 100, domain.OutcomeYes), 0.001)
	assert.InDelta(t, 50.0, NestedProbability(0, 0, 0, domain.OutcomeNo), 0.001)
}

func TestNestedProbability_Complementary(t *testing.T) {
	cases := []struct{ yes, no, liq float64 }{
		{300, 100, 50},
		{0, 500, 100},
		{1e6, 1, 0},
		{42, 42, 7},
	}
	for _, c := range cases {
		pYes := NestedProbability(c.yes, c.no, c.liq, domain.OutcomeYes)
		pNo := NestedProbability(c.yes, c.no, c.liq, domain.OutcomeNo)
		assert.InDelta(t, 100.0, pYes+pNo, 0.0001)
	}
}

func TestNestedProbability_Weighted(t *testing.T) {
	// (300+25)/(300+100+50) = 72.2%
	assert.InDelta(t, 72.222, NestedProbability(300, 100, 50, domain.OutcomeYes), 0.01)
}

func TestProjectedReturn_SubsidyNotYetRecovered(t *testing.T) {
	// Empty market with a 100 subsidy: a $50 wager leaves the distributable
	// pool negative, so no profit is projected.
	payout, net := ProjectedReturn(50, 0, 0, 100)
	assert.Equal(t, 0.0, payout)
	assert.Equal(t, 0.0, net)
}

func TestProjectedReturn_BreakEvenOnHeavyFavourite(t *testing.T) {
	// $100 more on a 400-share favourite in a 500 pool with 100 subsidy:
	// newWinnerPool=500, distributable=600-100=500, payout=(100/500)*500=100.
	payout, net := ProjectedReturn(100, 500, 400, 100)
	assert.InDelta(t, 100.0, payout, 0.001)
	assert.Equal(t, 0.0, net)
}

func TestProjectedReturn_Underdog(t *testing.T) {
	// $100 on the 100-share underdog: newWinnerPool=200,
	// distributable=500, payout=(100/200)*500=250, profit 150.
	payout, net := ProjectedReturn(100, 500, 100, 100)
	assert.InDelta(t, 250.0, payout, 0.001)
	assert.InDelta(t, 150.0, net, 0.001)
}

func TestProjectedReturn_ZeroAmount(t *testing.T) {
	payout, net := ProjectedReturn(0, 500, 100, 100)
	assert.Equal(t, 0.0, payout)
	assert.Equal(t, 0.0, net)
}

func TestQuoteFor_Flat(t *testing.T) {
	m := domain.Market{
		Kind:      domain.MarketKindBinary,
		Options:   []domain.Option{{Title: "A"}, {Title: "B"}},
		Liquidity: 100,
	}
	snap := domain.StatisticsSnapshot{
		TotalVolume: 500,
		Options:     []domain.OptionShares{{Total: 400}, {Total: 100}},
		Provenance:  domain.ProvenanceOracle,
	}

	q := QuoteFor(m, snap, 0, domain.OutcomeNone, 100)
	assert.InDelta(t, 75.0, q.Probability, 0.001)
	assert.InDelta(t, 100.0, q.EstimatedPayout, 0.001)
	assert.Equal(t, 0.0, q.NetProfit)
	assert.Equal(t, domain.ProvenanceOracle, q.Provenance)
}

func TestQuoteFor_NestedUsesOutcomePool(t *testing.T) {
	m := domain.Market{
		Kind:      domain.MarketKindNested,
		Options:   []domain.Option{{Title: "Team X"}},
		Liquidity: 50,
	}
	snap := domain.StatisticsSnapshot{
		TotalVolume: 400,
		Options:     []domain.OptionShares{{Yes: 300, No: 100}},
		Provenance:  domain.ProvenanceLive,
	}

	qYes := QuoteFor(m, snap, 0, domain.OutcomeYes, 100)
	qNo := QuoteFor(m, snap, 0, domain.OutcomeNo, 100)
	assert.InDelta(t, 100.0, qYes.Probability+qNo.Probability, 0.0001)
	// The NO side joins the smaller pool and projects the bigger payout.
	assert.Greater(t, qNo.EstimatedPayout, qYes.EstimatedPayout)
}

func TestOptionQuotes_FlatSumsToHundred(t *testing.T) {
	m := domain.Market{
		Kind:      domain.MarketKindMultipleChoice,
		Options:   []domain.Option{{Title: "A"}, {Title: "B"}, {Title: "C"}},
		Liquidity: 30,
	}
	snap := domain.StatisticsSnapshot{
		Options: []domain.OptionShares{{Total: 10}, {Total: 200}, {Total: 55}},
	}

	quotes := OptionQuotes(m, snap)
	var sum float64
	for _, q := range quotes {
		sum += q.Probability
	}
	assert.InDelta(t, 100.0, sum, 0.01)
}

func TestOptionQuotes_NestedComplementaryPerOption(t *testing.T) {
	m := domain.Market{
		Kind:      domain.MarketKindNested,
		Options:   []domain.Option{{Title: "X"}, {Title: "Y"}},
		Liquidity: 80,
	}
	snap := domain.StatisticsSnapshot{
		Options: []domain.OptionShares{{Yes: 120, No: 30}, {Yes: 0, No: 0}},
	}

	quotes := OptionQuotes(m, snap)
	for _, q := range quotes {
		assert.InDelta(t, 100.0, q.YesProbability+q.NoProbability, 0.0001)
	}
	// The empty sub-market quotes 50/50.
	assert.InDelta(t, 50.0, quotes[1].YesProbability, 0.001)
}
