// Package metrics turns normalized statements, market data and flow series
// into a Bundle of independent risk, quality and valuation measures.
//
// Every sub-model is a pure function of its inputs. None of them returns an
// error: a missing input produces an Unavailable or NotApplicable measure and
// the other models are unaffected.
package metrics

import (
	"time"

	"equity-advisor/internal/statement"
	"equity-advisor/internal/types"
)

// DataMissingReason is the solvency reason emitted when statements are absent.
const DataMissingReason = "data missing: balance sheet or income statement unavailable"

type Config struct {
	// ExcludedSectors are case-insensitive markers; a sector label containing
	// any of them gets no bankruptcy-risk score.
	ExcludedSectors []string
	// ExcludedIndustryPrefixes match the start of the industry code.
	ExcludedIndustryPrefixes []string
	// SmallCapThreshold is the absolute market cap under which trust
	// accumulation counts as concentrated.
	SmallCapThreshold float64
	// ParValue converts share capital into a share count.
	ParValue            float64
	EPSPeriods          int
	MarginLookback      int
	RevenueYoYTolerance time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExcludedSectors:          []string{"Financial", "Bank", "Insurance"},
		ExcludedIndustryPrefixes: []string{"28"},
		SmallCapThreshold:        50_000_000_000,
		ParValue:                 10,
		EPSPeriods:               20,
		MarginLookback:           5,
		RevenueYoYTolerance:      5 * 24 * time.Hour,
	}
}

// Inputs is everything one run feeds the engine. Zero values mean the
// dataset was empty.
type Inputs struct {
	Tables   statement.Set
	Snapshot types.MarketSnapshot
	Revenue  []types.RevenuePoint
	Flows    []types.FlowRecord
	Margin   []types.MarginRecord
}

type Engine struct {
	cfg Config
	res statement.Resolver
}

func NewEngine(cfg Config, res statement.Resolver) *Engine {
	def := DefaultConfig()
	if cfg.EPSPeriods <= 0 {
		cfg.EPSPeriods = def.EPSPeriods
	}
	if cfg.MarginLookback <= 0 {
		cfg.MarginLookback = def.MarginLookback
	}
	if cfg.RevenueYoYTolerance <= 0 {
		cfg.RevenueYoYTolerance = def.RevenueYoYTolerance
	}
	if cfg.ParValue <= 0 {
		cfg.ParValue = def.ParValue
	}
	return &Engine{cfg: cfg, res: res}
}

// Compute runs every sub-model.
func (e *Engine) Compute(in Inputs) Bundle {
	bs := in.Tables.Table(types.BalanceSheet)
	is := in.Tables.Table(types.IncomeStatement)

	var b Bundle
	b.Momentum = e.Momentum(in.Revenue)
	b.Flow = e.Flow(in.Flows, in.Margin, in.Snapshot.MarketCap)

	if bs.Empty() && is.Empty() {
		b.Degraded = true
		b.Solvency = SolvencyResult{Reasons: []string{DataMissingReason}}
		b.Bankruptcy = types.NotApplicableBecause("financial statements missing")
		b.Valuation = emptyValuation("financial statements missing")
		b.Notes = append(b.Notes, "statement-driven metrics skipped")
		return b
	}

	p := e.periods(in.Tables)
	b.AsOf = p.current
	if bs.Empty() {
		b.Notes = append(b.Notes, "balance sheet missing")
	}
	if is.Empty() {
		b.Notes = append(b.Notes, "income statement missing")
	}
	if in.Tables.Table(types.CashFlow).Empty() {
		b.Notes = append(b.Notes, "cash flow statement missing")
	}

	b.Solvency = e.Solvency(in.Tables, p)
	b.Bankruptcy = e.Bankruptcy(in.Tables, p, in.Snapshot)
	b.Valuation = e.Valuation(in.Tables, p, in.Snapshot, b.Momentum)
	return b
}

// periods pins the current row of every statement. The income statement's
// newest date is the anchor; the other statements use their row nearest to it.
// Prior-year rows are found relative to these.
type periods struct {
	current time.Time

	is, bs, cf       time.Time
	okIS, okBS, okCF bool
}

func (e *Engine) periods(s statement.Set) periods {
	var p periods
	is := s.Table(types.IncomeStatement)
	bs := s.Table(types.BalanceSheet)
	cf := s.Table(types.CashFlow)

	anchor, ok := is.Latest()
	if !ok {
		anchor, _ = bs.Latest()
	}
	p.current = anchor

	p.is, p.okIS = e.res.Aligned(is, anchor)
	p.bs, p.okBS = e.res.Aligned(bs, anchor)
	p.cf, p.okCF = e.res.Aligned(cf, anchor)
	return p
}

func emptyValuation(note string) ValuationResult {
	m := types.Missing(note)
	return ValuationResult{
		AnnualizedEPS:     m,
		BookValuePerShare: m,
		FairValue:         m,
		RevenueGrowthYoY:  m,
		GrowthAdjustedPE:  m,
		TrailingEBIT:      m,
		CapitalEfficiency: m,
		EarningsYield:     m,
		CurrentRatio:      m,
	}
}
