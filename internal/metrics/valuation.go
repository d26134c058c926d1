package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"equity-advisor/internal/fieldmap"
	"equity-advisor/internal/statement"
	"equity-advisor/internal/types"
)

// grahamMultiplier is 15x earnings times 1.5x book.
const grahamMultiplier = 22.5

// trailingPeriods is the number of quarters in a trailing twelve months.
const trailingPeriods = 4

func (e *Engine) Valuation(s statement.Set, p periods, snap types.MarketSnapshot, mom MomentumResult) ValuationResult {
	bs, is := s.Table(types.BalanceSheet), s.Table(types.IncomeStatement)
	var v ValuationResult

	v.AnnualizedEPS = e.annualizedEPS(is)
	v.BookValuePerShare = e.bookValuePerShare(bs, p, snap)
	v.FairValue = FairValue(v.AnnualizedEPS, v.BookValuePerShare)
	v.RevenueGrowthYoY = e.revenueGrowth(is, p, mom)
	v.GrowthAdjustedPE = GrowthAdjustedPE(snap.TrailingPE, v.RevenueGrowthYoY, snap.DividendYieldPct)
	v.TrailingEBIT = e.trailingEBIT(is)

	var ca, cl, fixed, tl, cash float64
	if p.okBS {
		ca = e.res.Value(bs, p.bs, fieldmap.CurrentAssets)
		cl = e.res.Value(bs, p.bs, fieldmap.CurrentLiabilities)
		fixed = e.res.Value(bs, p.bs, fieldmap.FixedAssets)
		tl = e.res.Value(bs, p.bs, fieldmap.Liabilities)
		cash = e.res.Value(bs, p.bs, fieldmap.Cash)
	}

	if cl > 0 {
		v.CurrentRatio = types.Value(ca / cl)
	} else {
		v.CurrentRatio = types.Missing("current liabilities not reported")
	}

	v.CapitalEfficiency = ratio(v.TrailingEBIT, fixed+(ca-cl), "invested capital not positive")

	if snap.MarketCap <= 0 {
		v.EarningsYield = types.Missing("market cap unknown")
	} else {
		v.EarningsYield = ratio(v.TrailingEBIT, snap.MarketCap+tl-cash, "enterprise value not positive")
	}
	return v
}

func ratio(num types.Measure, den float64, why string) types.Measure {
	if !num.Ok() {
		return num
	}
	if den <= 0 {
		return types.NotApplicableBecause(why)
	}
	return types.Value(num.Value / den)
}

// FairValue is sqrt(22.5 x EPS x BVPS), defined only for a positive product.
func FairValue(eps, bvps types.Measure) types.Measure {
	if !eps.Ok() {
		return eps
	}
	if !bvps.Ok() {
		return bvps
	}
	product := grahamMultiplier * eps.Value * bvps.Value
	if product <= 0 || eps.Value <= 0 {
		return types.NotApplicableBecause("non-positive earnings or book value")
	}
	return types.Value(math.Sqrt(product))
}

// GrowthAdjustedPE is PE / (growth% + dividend yield%).
func GrowthAdjustedPE(pe float64, growth types.Measure, dividendYieldPct float64) types.Measure {
	if pe <= 0 {
		return types.Missing("trailing PE unknown")
	}
	if !growth.Ok() {
		return growth
	}
	den := growth.Value + dividendYieldPct
	if den <= 0 {
		return types.NotApplicableBecause("growth plus yield not positive")
	}
	return types.Value(pe / den)
}

// annualizedEPS averages EPS over the most recent periods that report it and
// scales the quarterly mean to a year.
func (e *Engine) annualizedEPS(is statement.Table) types.Measure {
	var eps []float64
	for _, d := range is.Dates() {
		if len(eps) == e.cfg.EPSPeriods {
			break
		}
		if x, ok := e.res.Lookup(is, d, fieldmap.EPS); ok {
			eps = append(eps, x)
		}
	}
	if len(eps) == 0 {
		return types.Missing("EPS not reported")
	}
	return types.Value(stat.Mean(eps, nil) * trailingPeriods)
}

func (e *Engine) bookValuePerShare(bs statement.Table, p periods, snap types.MarketSnapshot) types.Measure {
	switch {
	case snap.BookValuePerShare > 0:
		return types.Value(snap.BookValuePerShare)
	case snap.Price > 0 && snap.PriceToBook > 0:
		return types.Value(snap.Price / snap.PriceToBook)
	}
	if !p.okBS {
		return types.Missing("book value unknown")
	}
	equity, ok := e.res.Lookup(bs, p.bs, fieldmap.Equity)
	if !ok {
		return types.Missing("equity not reported")
	}
	shares := snap.SharesOutstanding
	if shares <= 0 {
		shares = e.res.Value(bs, p.bs, fieldmap.CommonStock) / e.cfg.ParValue
	}
	if shares <= 0 {
		return types.Missing("share count unknown")
	}
	return types.Value(equity / shares)
}

// revenueGrowth is the year-over-year revenue change in percent, from the
// income statement when the prior-year quarter exists and otherwise from
// monthly revenue.
func (e *Engine) revenueGrowth(is statement.Table, p periods, mom MomentumResult) types.Measure {
	if p.okIS {
		cur, ok := e.res.Lookup(is, p.is, fieldmap.Revenue)
		prev := e.res.PriorYear(is, p.is, fieldmap.Revenue)
		if ok && prev.Ok() && prev.Value > 0 {
			return types.Value((cur/prev.Value - 1) * 100)
		}
	}
	if mom.YoY.Ok() {
		return mom.YoY
	}
	return types.Missing("no year-over-year revenue")
}

// trailingEBIT sums the four most recent periods, or scales the mean of
// fewer to four.
func (e *Engine) trailingEBIT(is statement.Table) types.Measure {
	var vals []float64
	for _, d := range is.Dates() {
		if len(vals) == trailingPeriods {
			break
		}
		if x, ok := e.ebitAt(is, d); ok {
			vals = append(vals, x)
		}
	}
	switch len(vals) {
	case 0:
		return types.Missing("EBIT not derivable")
	case trailingPeriods:
		return types.Value(floats.Sum(vals))
	default:
		return types.Value(stat.Mean(vals, nil) * trailingPeriods)
	}
}
