package signal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-advisor/internal/metrics"
	"equity-advisor/internal/types"
)

func missing() types.Measure { return types.Missing("n/a") }

// neutral returns a bundle in which no rule applies except the solvency band.
func neutral(solvency int) metrics.Bundle {
	return metrics.Bundle{
		Solvency:   metrics.SolvencyResult{Score: solvency},
		Bankruptcy: missing(),
		Valuation: metrics.ValuationResult{
			FairValue:         missing(),
			GrowthAdjustedPE:  missing(),
			CapitalEfficiency: missing(),
			EarningsYield:     missing(),
			CurrentRatio:      missing(),
		},
		Momentum: metrics.MomentumResult{MoM: missing(), YoY: missing()},
	}
}

func compose(b metrics.Bundle, snap types.MarketSnapshot) Result {
	return NewComposer(DefaultThresholds()).Compose(b, snap)
}

func TestSolvencyBands(t *testing.T) {
	cases := []struct {
		score int
		want  int
	}{
		{9, 2}, {8, 2}, {7, 1}, {5, 1}, {4, 0}, {3, -2}, {0, -2},
	}
	for _, tc := range cases {
		r := compose(neutral(tc.score), types.MarketSnapshot{})
		assert.Equal(t, tc.want, r.TotalScore, "solvency %d", tc.score)
		if tc.want == 0 {
			assert.Empty(t, r.Reasons)
		} else {
			assert.Len(t, r.Reasons, 1)
		}
	}
}

func TestBankruptcyBands(t *testing.T) {
	cases := []struct {
		z    types.Measure
		want int
		n    int
	}{
		{types.Value(3.5), 1, 1},
		{types.Value(2.99), 0, 0},
		{types.Value(1.81), 0, 0},
		{types.Value(1.2), -3, 1},
		{types.NotApplicableBecause("financial sector"), 0, 1},
		{missing(), 0, 0},
	}
	for _, tc := range cases {
		b := neutral(4)
		b.Bankruptcy = tc.z
		r := compose(b, types.MarketSnapshot{})
		assert.Equal(t, tc.want, r.TotalScore, tc.z.String())
		assert.Len(t, r.Reasons, tc.n, tc.z.String())
	}
}

func TestDiscountBands(t *testing.T) {
	cases := []struct {
		name    string
		price   float64
		healthy bool
		want    int
	}{
		{"deep healthy", 60, true, 3},
		{"deep unhealthy", 60, false, 2},
		{"moderate healthy", 80, true, 2},
		{"moderate unhealthy", 80, false, 1},
		{"at fair healthy", 100, true, 1},
		{"at fair unhealthy", 100, false, 0},
		{"above fair", 120, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := neutral(4)
			b.Valuation.FairValue = types.Value(100)
			if tc.healthy {
				b.Valuation.CurrentRatio = types.Value(1.5)
			} else {
				b.Valuation.CurrentRatio = types.Value(1.2)
			}
			r := compose(b, types.MarketSnapshot{Price: tc.price})
			assert.Equal(t, tc.want, r.TotalScore)
		})
	}
}

func TestGrowthAdjustedPEBands(t *testing.T) {
	for v, want := range map[float64]int{0.3: 2, 0.5: 1, 0.9: 1, 1.0: 0, 2.0: 0, 2.5: -1} {
		b := neutral(4)
		b.Valuation.GrowthAdjustedPE = types.Value(v)
		assert.Equal(t, want, compose(b, types.MarketSnapshot{}).TotalScore, "peg %.1f", v)
	}
}

func TestCapitalEfficiencyNeedsBoth(t *testing.T) {
	b := neutral(4)
	b.Valuation.CapitalEfficiency = types.Value(0.30)
	b.Valuation.EarningsYield = types.Value(0.12)
	assert.Equal(t, 2, compose(b, types.MarketSnapshot{}).TotalScore)

	b.Valuation.EarningsYield = types.Value(0.08)
	assert.Equal(t, 0, compose(b, types.MarketSnapshot{}).TotalScore)
}

func TestMomentumBands(t *testing.T) {
	cases := []struct {
		yoy, mom float64
		want     int
	}{
		{25, 3, 2}, {20, 0.1, 2}, {10, 2, 1}, {25, -1, 0}, {-5, 4, 0},
	}
	for _, tc := range cases {
		b := neutral(4)
		b.Momentum = metrics.MomentumResult{YoY: types.Value(tc.yoy), MoM: types.Value(tc.mom)}
		assert.Equal(t, tc.want, compose(b, types.MarketSnapshot{}).TotalScore, "yoy %.0f mom %.1f", tc.yoy, tc.mom)
	}
}

func TestLiquidityTrap(t *testing.T) {
	b := neutral(4)
	assert.Equal(t, -2, compose(b, types.MarketSnapshot{AverageVolume: 1000}).TotalScore)
	assert.Equal(t, 0, compose(b, types.MarketSnapshot{AverageVolume: 2_000_000}).TotalScore)
	// unknown volume is not a trap
	assert.Equal(t, 0, compose(b, types.MarketSnapshot{}).TotalScore)
}

func TestActionBreakpoints(t *testing.T) {
	assert.Equal(t, StrongBuy, ActionFor(5))
	assert.Equal(t, StrongBuy, ActionFor(11))
	assert.Equal(t, BuyHold, ActionFor(4))
	assert.Equal(t, BuyHold, ActionFor(3))
	assert.Equal(t, Watch, ActionFor(2))
	assert.Equal(t, Watch, ActionFor(0))
	assert.Equal(t, SellAvoid, ActionFor(-1))
}

func TestReasonsFollowRuleOrder(t *testing.T) {
	b := neutral(9)
	b.Bankruptcy = types.Value(3.5)
	b.Valuation.FairValue = types.Value(100)
	b.Valuation.CurrentRatio = types.Value(2)
	b.Momentum = metrics.MomentumResult{YoY: types.Value(30), MoM: types.Value(5)}
	b.Flow = metrics.FlowResult{SustainedBuying: true, ForeignObservations: 3, ConcentratedAccumulation: true, TrustObservations: 10, TrustNet: 50}
	snap := types.MarketSnapshot{Price: 60, AverageVolume: 100}

	r := compose(b, snap)
	require.Len(t, r.Reasons, 7)
	prefixes := []string{"[+2] quality", "[+1] bankruptcy", "[+3] price", "[+2] revenue", "[+1] foreign", "[+2] investment", "[-2] average"}
	for i, p := range prefixes {
		assert.True(t, strings.HasPrefix(r.Reasons[i], p), "reason %d = %q", i, r.Reasons[i])
	}
	assert.Equal(t, 9, r.TotalScore)
	assert.Equal(t, StrongBuy, r.Action)

	// determinism
	again := compose(b, snap)
	assert.Equal(t, r, again)
}

func TestDegradedSkipsStatementRules(t *testing.T) {
	b := neutral(0)
	b.Degraded = true
	b.Bankruptcy = types.NotApplicableBecause("financial statements missing")
	b.Flow = metrics.FlowResult{SustainedBuying: true, ForeignObservations: 3}

	r := compose(b, types.MarketSnapshot{})
	assert.True(t, r.LowConfidence)
	assert.Equal(t, 1, r.TotalScore)
	assert.Equal(t, Watch, r.Action)
	require.Len(t, r.Reasons, 2)
	assert.Contains(t, r.Reasons[0], "low confidence")
}

func TestCustomRuleTable(t *testing.T) {
	always := Rule{Name: "always", Eval: func(Input) (int, string, bool) { return 5, "always", true }}
	r := NewComposer(DefaultThresholds(), always).Compose(neutral(0), types.MarketSnapshot{})
	assert.Equal(t, 5, r.TotalScore)
	assert.Equal(t, []string{"[+5] always"}, r.Reasons)
}

func TestOrderGuidance(t *testing.T) {
	assert.Len(t, OrderGuidance(StrongBuy), 3)
	assert.Len(t, OrderGuidance(BuyHold), 3)
	assert.Equal(t, []string{"no action"}, OrderGuidance(Watch))
	assert.Equal(t, []string{"no action"}, OrderGuidance(SellAvoid))
}

func TestStrongFundamentalsAtFairValue(t *testing.T) {
	b := neutral(9)
	b.Bankruptcy = types.Value(3.5)
	b.Valuation.FairValue = types.Value(80)
	b.Valuation.CurrentRatio = types.Value(2.5)

	r := compose(b, types.MarketSnapshot{Price: 80})
	assert.GreaterOrEqual(t, r.TotalScore, 3)
	assert.True(t, r.Action.IsBuy())
}

func TestDistressedCompany(t *testing.T) {
	b := neutral(2)
	b.Bankruptcy = types.Value(1.2)

	r := compose(b, types.MarketSnapshot{Price: 15})
	assert.LessOrEqual(t, r.TotalScore, -2)
	assert.Equal(t, SellAvoid, r.Action)
}
