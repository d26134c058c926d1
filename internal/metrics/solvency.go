package metrics

import (
	"fmt"
	"time"

	"equity-advisor/internal/fieldmap"
	"equity-advisor/internal/statement"
	"equity-advisor/internal/types"
)

// ShareIssuanceTolerance is how much share capital may grow year over year
// before the dilution check fails.
const ShareIssuanceTolerance = 1.05

// check outcome: pass adds one point, skip records why it was not evaluated.
type outcome struct {
	pass   bool
	skip   string
	reason string
}

func passed(reason string) outcome { return outcome{pass: true, reason: reason} }
func failed() outcome { return outcome{} }
func skipped(why string) outcome { return outcome{skip: why} }

type solvencyCheck struct {
	name string
	eval func(v solvencyView) outcome
}

// solvencyView resolves concepts at the pinned current and prior-year rows.
type solvencyView struct {
	res statement.Resolver
	set statement.Set
	p   periods
}

func (v solvencyView) cur(kind types.StatementKind, c fieldmap.Concept) (float64, bool) {
	d, ok := v.date(kind)
	if !ok {
		return 0, false
	}
	return v.res.Lookup(v.set.Table(kind), d, c)
}

// need resolves every concept at the current period and reports the first
// one that is not reported.
func (v solvencyView) need(kind types.StatementKind, cs ...fieldmap.Concept) ([]float64, string) {
	out := make([]float64, len(cs))
	for i, c := range cs {
		x, ok := v.cur(kind, c)
		if !ok {
			return nil, string(c) + " not reported"
		}
		out[i] = x
	}
	return out, ""
}

func (v solvencyView) prev(kind types.StatementKind, c fieldmap.Concept) types.Measure {
	d, ok := v.date(kind)
	if !ok {
		return types.Missing("no current period")
	}
	return v.res.PriorYear(v.set.Table(kind), d, c)
}

func (v solvencyView) date(kind types.StatementKind) (time.Time, bool) {
	switch kind {
	case types.IncomeStatement:
		return v.p.is, v.p.okIS
	case types.BalanceSheet:
		return v.p.bs, v.p.okBS
	default:
		return v.p.cf, v.p.okCF
	}
}

// longTermDebt prefers the reported non-current liabilities and otherwise
// derives them from total minus current liabilities.
func (v solvencyView) longTermDebt(prior bool) types.Measure {
	if prior {
		if m := v.prev(types.BalanceSheet, fieldmap.NonCurrentLiabilities); m.Ok() {
			return m
		}
		tl := v.prev(types.BalanceSheet, fieldmap.Liabilities)
		if !tl.Ok() {
			return tl
		}
		cl := v.prev(types.BalanceSheet, fieldmap.CurrentLiabilities)
		if !cl.Ok() {
			return cl
		}
		return types.Value(tl.Value - cl.Value)
	}
	if x, ok := v.cur(types.BalanceSheet, fieldmap.NonCurrentLiabilities); ok {
		return types.Value(x)
	}
	tl, ok := v.cur(types.BalanceSheet, fieldmap.Liabilities)
	if !ok {
		return types.Missing("total liabilities not reported")
	}
	cl, ok := v.cur(types.BalanceSheet, fieldmap.CurrentLiabilities)
	if !ok {
		return types.Missing("current liabilities not reported")
	}
	return types.Value(tl - cl)
}

// grossProfit prefers the reported figure and otherwise derives it from
// revenue minus operating costs. Neither being reported is Unavailable.
func (v solvencyView) grossProfit(prior bool) types.Measure {
	get := func(c fieldmap.Concept) types.Measure {
		if prior {
			return v.prev(types.IncomeStatement, c)
		}
		if x, ok := v.cur(types.IncomeStatement, c); ok {
			return types.Value(x)
		}
		return types.Missing(string(c) + " not reported")
	}
	if gp := get(fieldmap.GrossProfit); gp.Ok() {
		return gp
	}
	rev, cost := get(fieldmap.Revenue), get(fieldmap.OperatingCosts)
	if !rev.Ok() || !cost.Ok() {
		return types.Missing("gross profit not derivable")
	}
	return types.Value(rev.Value - cost.Value)
}

var solvencyChecks = []solvencyCheck{
	{"return on assets", func(v solvencyView) outcome {
		ta, why := v.need(types.BalanceSheet, fieldmap.Assets)
		if why != "" || ta[0] == 0 {
			return skipped("total assets not reported")
		}
		ni, why := v.need(types.IncomeStatement, fieldmap.NetIncome)
		if why != "" {
			return skipped(why)
		}
		roa := ni[0] / ta[0]
		if roa > 0 {
			return passed(fmt.Sprintf("ROA positive (%.2f%%)", roa*100))
		}
		return failed()
	}},
	{"operating cash flow", func(v solvencyView) outcome {
		cfo, ok := v.cur(types.CashFlow, fieldmap.OperatingCashFlow)
		if !ok {
			return skipped("operating cash flow not reported")
		}
		if cfo > 0 {
			return passed("operating cash flow positive")
		}
		return failed()
	}},
	{"return on assets trend", func(v solvencyView) outcome {
		prevNI := v.prev(types.IncomeStatement, fieldmap.NetIncome)
		prevTA := v.prev(types.BalanceSheet, fieldmap.Assets)
		if !prevNI.Ok() || !prevTA.Ok() || prevTA.Value == 0 {
			return skipped("prior-year ROA unavailable")
		}
		ta, why := v.need(types.BalanceSheet, fieldmap.Assets)
		if why != "" || ta[0] == 0 {
			return skipped("total assets not reported")
		}
		ni, why := v.need(types.IncomeStatement, fieldmap.NetIncome)
		if why != "" {
			return skipped(why)
		}
		if ni[0]/ta[0] > prevNI.Value/prevTA.Value {
			return passed("ROA improved year over year")
		}
		return failed()
	}},
	{"accruals", func(v solvencyView) outcome {
		cfo, ok := v.cur(types.CashFlow, fieldmap.OperatingCashFlow)
		if !ok {
			return skipped("operating cash flow not reported")
		}
		ni, why := v.need(types.IncomeStatement, fieldmap.NetIncome)
		if why != "" {
			return skipped(why)
		}
		if cfo > ni[0] {
			return passed("operating cash flow exceeds net income")
		}
		return failed()
	}},
	{"leverage", func(v solvencyView) outcome {
		prevTA := v.prev(types.BalanceSheet, fieldmap.Assets)
		prevLTD := v.longTermDebt(true)
		if !prevTA.Ok() || !prevLTD.Ok() || prevTA.Value == 0 {
			return skipped("prior-year leverage unavailable")
		}
		ta, why := v.need(types.BalanceSheet, fieldmap.Assets)
		if why != "" || ta[0] == 0 {
			return skipped("total assets not reported")
		}
		ltd := v.longTermDebt(false)
		if !ltd.Ok() {
			return skipped(ltd.Note)
		}
		if ltd.Value/ta[0] <= prevLTD.Value/prevTA.Value {
			return passed("long-term debt ratio did not increase")
		}
		return failed()
	}},
	{"liquidity", func(v solvencyView) outcome {
		prevCA := v.prev(types.BalanceSheet, fieldmap.CurrentAssets)
		prevCL := v.prev(types.BalanceSheet, fieldmap.CurrentLiabilities)
		if !prevCA.Ok() || !prevCL.Ok() || prevCL.Value == 0 {
			return skipped("prior-year current ratio unavailable")
		}
		x, why := v.need(types.BalanceSheet, fieldmap.CurrentAssets, fieldmap.CurrentLiabilities)
		if why != "" {
			return skipped(why)
		}
		if x[1] == 0 {
			return skipped("current liabilities not reported")
		}
		if x[0]/x[1] > prevCA.Value/prevCL.Value {
			return passed("current ratio improved")
		}
		return failed()
	}},
	{"dilution", func(v solvencyView) outcome {
		prev := v.prev(types.BalanceSheet, fieldmap.CommonStock)
		if !prev.Ok() {
			return skipped("prior-year share capital unavailable")
		}
		cs, ok := v.cur(types.BalanceSheet, fieldmap.CommonStock)
		if !ok {
			return skipped("share capital not reported")
		}
		if cs <= prev.Value*ShareIssuanceTolerance {
			return passed("no significant share issuance")
		}
		return failed()
	}},
	{"gross margin", func(v solvencyView) outcome {
		prevRev := v.prev(types.IncomeStatement, fieldmap.Revenue)
		gp, prevGP := v.grossProfit(false), v.grossProfit(true)
		if !prevRev.Ok() || !prevGP.Ok() || prevRev.Value <= 0 {
			return skipped("prior-year gross margin unavailable")
		}
		rev, ok := v.cur(types.IncomeStatement, fieldmap.Revenue)
		if !gp.Ok() || !ok || rev <= 0 {
			return skipped("gross margin not derivable")
		}
		if gp.Value/rev > prevGP.Value/prevRev.Value {
			return passed("gross margin improved")
		}
		return failed()
	}},
	{"asset turnover", func(v solvencyView) outcome {
		prevRev := v.prev(types.IncomeStatement, fieldmap.Revenue)
		prevTA := v.prev(types.BalanceSheet, fieldmap.Assets)
		if !prevRev.Ok() || !prevTA.Ok() || prevTA.Value == 0 {
			return skipped("prior-year asset turnover unavailable")
		}
		ta, why := v.need(types.BalanceSheet, fieldmap.Assets)
		if why != "" || ta[0] == 0 {
			return skipped("total assets not reported")
		}
		rev, why := v.need(types.IncomeStatement, fieldmap.Revenue)
		if why != "" {
			return skipped(why)
		}
		if rev[0]/ta[0] > prevRev.Value/prevTA.Value {
			return passed("asset turnover improved")
		}
		return failed()
	}},
}

// Solvency runs the nine quality checks. A check whose inputs are missing is
// skipped rather than awarded or penalized.
func (e *Engine) Solvency(s statement.Set, p periods) SolvencyResult {
	if s.Table(types.BalanceSheet).Empty() || s.Table(types.IncomeStatement).Empty() {
		return SolvencyResult{Reasons: []string{DataMissingReason}}
	}
	v := solvencyView{res: e.res, set: s, p: p}
	var r SolvencyResult
	for _, c := range solvencyChecks {
		o := c.eval(v)
		switch {
		case o.skip != "":
			r.Skipped = append(r.Skipped, c.name+": "+o.skip)
		case o.pass:
			r.Score++
			r.Reasons = append(r.Reasons, o.reason)
		}
	}
	return r
}
