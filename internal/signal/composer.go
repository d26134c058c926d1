// Package signal combines a metrics.Bundle into one scored, explained action.
package signal

import (
	"fmt"

	"equity-advisor/internal/metrics"
	"equity-advisor/internal/types"
)

// Input is what every rule sees.
type Input struct {
	Bundle     metrics.Bundle
	Snapshot   types.MarketSnapshot
	Thresholds Thresholds
}

// Rule is one row of the scoring table. Eval returns the score delta and the
// reason text; applied=false leaves both score and reasons untouched.
// Statement rules are skipped when the bundle is degraded.
type Rule struct {
	Name      string
	Statement bool
	Eval      func(in Input) (delta int, reason string, applied bool)
}

const lowConfidenceReason = "low confidence: financial statements unavailable, statement rules skipped"

// DefaultRules is the scoring table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "solvency", Statement: true, Eval: solvencyRule},
		{Name: "bankruptcy_risk", Statement: true, Eval: bankruptcyRule},
		{Name: "valuation_discount", Statement: true, Eval: discountRule},
		{Name: "growth_adjusted_pe", Statement: true, Eval: growthAdjustedPERule},
		{Name: "capital_efficiency", Statement: true, Eval: efficiencyRule},
		{Name: "revenue_momentum", Eval: momentumRule},
		{Name: "sustained_buying", Eval: sustainedBuyingRule},
		{Name: "concentrated_accumulation", Eval: accumulationRule},
		{Name: "liquidity_trap", Eval: liquidityRule},
	}
}

type Composer struct {
	rules      []Rule
	thresholds Thresholds
}

func NewComposer(th Thresholds, rules ...Rule) *Composer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Composer{rules: rules, thresholds: th}
}

// Compose evaluates the rule table in order. It is deterministic: the same
// bundle and snapshot always give the same score and reason order.
func (c *Composer) Compose(b metrics.Bundle, snap types.MarketSnapshot) Result {
	in := Input{Bundle: b, Snapshot: snap, Thresholds: c.thresholds}
	var r Result
	r.Reasons = []string{}
	if b.Degraded {
		r.LowConfidence = true
		r.Reasons = append(r.Reasons, reason(0, lowConfidenceReason))
	}
	for _, rule := range c.rules {
		if rule.Statement && b.Degraded {
			continue
		}
		delta, text, ok := rule.Eval(in)
		if !ok {
			continue
		}
		r.TotalScore += delta
		r.Reasons = append(r.Reasons, reason(delta, text))
	}
	r.Action = ActionFor(r.TotalScore)
	return r
}

func reason(delta int, text string) string {
	return fmt.Sprintf("[%+d] %s", delta, text)
}

func solvencyRule(in Input) (int, string, bool) {
	s := in.Bundle.Solvency.Score
	switch {
	case s >= 8:
		return 2, fmt.Sprintf("quality score %d/9 is strong", s), true
	case s >= 5:
		return 1, fmt.Sprintf("quality score %d/9 is adequate", s), true
	case s <= 3:
		return -2, fmt.Sprintf("quality score %d/9 is weak", s), true
	}
	return 0, "", false
}

func bankruptcyRule(in Input) (int, string, bool) {
	z := in.Bundle.Bankruptcy
	switch {
	case z.Status == types.NotApplicable:
		return 0, "bankruptcy risk not applicable: " + z.Note, true
	case !z.Ok():
		return 0, "", false
	case z.Value > 2.99:
		return 1, fmt.Sprintf("bankruptcy risk %.2f in the safe zone", z.Value), true
	case z.Value < 1.81:
		return -3, fmt.Sprintf("bankruptcy risk %.2f in the distress zone", z.Value), true
	}
	return 0, "", false
}

func healthyLiquidity(in Input) bool {
	cr := in.Bundle.Valuation.CurrentRatio
	return cr.Ok() && cr.Value >= in.Thresholds.HealthyCurrentRatio
}

func discountRule(in Input) (int, string, bool) {
	fv := in.Bundle.Valuation.FairValue
	price := in.Snapshot.Price
	if !fv.Ok() || fv.Value <= 0 || price <= 0 {
		return 0, "", false
	}
	margin := (fv.Value - price) / fv.Value
	healthy := healthyLiquidity(in)
	desc := fmt.Sprintf("price %.2f vs fair value %.2f (%.0f%% margin of safety", price, fv.Value, margin*100)
	if healthy {
		desc += ", healthy liquidity)"
	} else {
		desc += ")"
	}
	switch {
	case margin >= 0.30 && healthy:
		return 3, desc, true
	case margin >= 0.30:
		return 2, desc, true
	case margin >= 0.15 && healthy:
		return 2, desc, true
	case margin >= 0.15:
		return 1, desc, true
	case margin >= 0 && healthy:
		return 1, desc, true
	}
	return 0, "", false
}

func growthAdjustedPERule(in Input) (int, string, bool) {
	g := in.Bundle.Valuation.GrowthAdjustedPE
	if !g.Ok() {
		return 0, "", false
	}
	switch {
	case g.Value < 0.5:
		return 2, fmt.Sprintf("growth-adjusted PE %.2f is deeply undervalued", g.Value), true
	case g.Value < 1.0:
		return 1, fmt.Sprintf("growth-adjusted PE %.2f is undervalued", g.Value), true
	case g.Value > 2.0:
		return -1, fmt.Sprintf("growth-adjusted PE %.2f is expensive", g.Value), true
	}
	return 0, "", false
}

func efficiencyRule(in Input) (int, string, bool) {
	ce, ey := in.Bundle.Valuation.CapitalEfficiency, in.Bundle.Valuation.EarningsYield
	if !ce.Ok() || !ey.Ok() {
		return 0, "", false
	}
	if ce.Value > in.Thresholds.CapitalEfficiencyMin && ey.Value > in.Thresholds.EarningsYieldMin {
		return 2, fmt.Sprintf("return on capital %.0f%% and earnings yield %.0f%%", ce.Value*100, ey.Value*100), true
	}
	return 0, "", false
}

func momentumRule(in Input) (int, string, bool) {
	m := in.Bundle.Momentum
	if !m.YoY.Ok() || !m.MoM.Ok() {
		return 0, "", false
	}
	desc := fmt.Sprintf("revenue YoY %.1f%%, MoM %.1f%%", m.YoY.Value, m.MoM.Value)
	switch {
	case m.YoY.Value >= 20 && m.MoM.Value > 0:
		return 2, desc + " (strong momentum)", true
	case m.YoY.Value > 0 && m.MoM.Value > 0:
		return 1, desc, true
	}
	return 0, "", false
}

func sustainedBuyingRule(in Input) (int, string, bool) {
	f := in.Bundle.Flow
	if !f.SustainedBuying {
		return 0, "", false
	}
	return 1, fmt.Sprintf("foreign investors net buyers for %d sessions", f.ForeignObservations), true
}

func accumulationRule(in Input) (int, string, bool) {
	f := in.Bundle.Flow
	if !f.ConcentratedAccumulation {
		return 0, "", false
	}
	return 2, fmt.Sprintf("investment trusts accumulating a small cap (net %.0f over %d sessions)", f.TrustNet, f.TrustObservations), true
}

func liquidityRule(in Input) (int, string, bool) {
	v := in.Snapshot.AverageVolume
	if v <= 0 || v >= in.Thresholds.MinAverageVolume {
		return 0, "", false
	}
	return -2, fmt.Sprintf("average volume %.0f below %.0f, liquidity trap", v, in.Thresholds.MinAverageVolume), true
}
