package metrics

import (
	"strings"
	"time"

	"equity-advisor/internal/fieldmap"
	"equity-advisor/internal/statement"
	"equity-advisor/internal/types"
)

// Altman weights for working capital, retained earnings, EBIT, market value
// of equity and sales, each scaled by total assets (MVE by total liabilities).
const (
	zWeightWC    = 1.2
	zWeightRE    = 1.4
	zWeightEBIT  = 3.3
	zWeightMVE   = 0.6
	zWeightSales = 1.0
)

// Excluded reports whether the sector or industry code falls outside the
// bankruptcy-risk model.
func (c Config) Excluded(snap types.MarketSnapshot) bool {
	sector := strings.ToLower(snap.Sector)
	for _, m := range c.ExcludedSectors {
		if m != "" && strings.Contains(sector, strings.ToLower(m)) {
			return true
		}
	}
	for _, p := range c.ExcludedIndustryPrefixes {
		if p != "" && strings.HasPrefix(snap.IndustryCode, p) {
			return true
		}
	}
	return false
}

// ebitAt returns reported EBIT, or pre-tax income plus interest expense.
func (e *Engine) ebitAt(is statement.Table, d time.Time) (float64, bool) {
	if v, ok := e.res.Lookup(is, d, fieldmap.EBIT); ok {
		return v, true
	}
	pre, ok := e.res.Lookup(is, d, fieldmap.PreTaxIncome)
	if !ok {
		return 0, false
	}
	return pre + e.res.Value(is, d, fieldmap.InterestExpense), true
}

// Bankruptcy computes the five-factor bankruptcy-risk score.
func (e *Engine) Bankruptcy(s statement.Set, p periods, snap types.MarketSnapshot) types.Measure {
	if e.cfg.Excluded(snap) {
		return types.NotApplicableBecause("financial sector")
	}
	bs, is := s.Table(types.BalanceSheet), s.Table(types.IncomeStatement)
	if bs.Empty() || is.Empty() || !p.okBS {
		return types.NotApplicableBecause("statements missing")
	}

	ta := e.res.Value(bs, p.bs, fieldmap.Assets)
	tl := e.res.Value(bs, p.bs, fieldmap.Liabilities)
	if ta == 0 || tl == 0 {
		return types.NotApplicableBecause("total assets or liabilities not reported")
	}

	wc := e.res.Value(bs, p.bs, fieldmap.CurrentAssets) - e.res.Value(bs, p.bs, fieldmap.CurrentLiabilities)
	re := e.res.Value(bs, p.bs, fieldmap.RetainedEarnings)
	var ebit, sales float64
	if p.okIS {
		ebit, _ = e.ebitAt(is, p.is)
		sales = e.res.Value(is, p.is, fieldmap.Revenue)
	}

	z := zWeightWC*wc/ta +
		zWeightRE*re/ta +
		zWeightEBIT*ebit/ta +
		zWeightMVE*snap.MarketCap/tl +
		zWeightSales*sales/ta

	m := types.Value(z)
	if snap.MarketCap <= 0 {
		m.Note = "market cap unknown"
	}
	return m
}
