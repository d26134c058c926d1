package metrics

import (
	"time"

	"equity-advisor/internal/types"
)

// SolvencyResult is the nine-check quality score. Skipped lists checks that
// could not be evaluated; they neither add nor subtract.
type SolvencyResult struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
	Skipped []string `json:"skipped,omitempty"`
}

type ValuationResult struct {
	AnnualizedEPS     types.Measure `json:"annualized_eps"`
	BookValuePerShare types.Measure `json:"book_value_per_share"`
	FairValue         types.Measure `json:"fair_value"`
	RevenueGrowthYoY  types.Measure `json:"revenue_growth_yoy"`
	GrowthAdjustedPE  types.Measure `json:"growth_adjusted_pe"`
	TrailingEBIT      types.Measure `json:"trailing_ebit"`
	CapitalEfficiency types.Measure `json:"capital_efficiency"`
	EarningsYield     types.Measure `json:"earnings_yield"`
	CurrentRatio      types.Measure `json:"current_ratio"`
}

// MomentumPoint is MoM and YoY growth, in percent, for one month.
type MomentumPoint struct {
	Date    time.Time     `json:"date"`
	Revenue float64       `json:"revenue"`
	MoM     types.Measure `json:"mom"`
	YoY     types.Measure `json:"yoy"`
}

type MomentumResult struct {
	Latest time.Time       `json:"latest,omitempty"`
	MoM    types.Measure   `json:"mom"`
	YoY    types.Measure   `json:"yoy"`
	Series []MomentumPoint `json:"series,omitempty"`
}

type Direction string

const (
	Rising  Direction = "rising"
	Falling Direction = "falling"
	Flat    Direction = "flat"
	Unknown Direction = "unknown"
)

type MarginTrend struct {
	Direction Direction     `json:"direction"`
	Latest    float64       `json:"latest"`
	Base      float64       `json:"base"`
	Lookback  int           `json:"lookback"`
	ChangePct types.Measure `json:"change_pct"`
}

type FlowResult struct {
	ForeignNet               float64     `json:"foreign_net_3"`
	ForeignObservations      int         `json:"foreign_observations"`
	SustainedBuying          bool        `json:"sustained_buying"`
	TrustNet                 float64     `json:"trust_net_10"`
	TrustObservations        int         `json:"trust_observations"`
	ConcentratedAccumulation bool        `json:"concentrated_accumulation"`
	Margin                   MarginTrend `json:"margin"`
}

// Bundle is every metric computed for one run. It is not modified after
// Compute returns.
type Bundle struct {
	AsOf       time.Time       `json:"as_of,omitempty"`
	Solvency   SolvencyResult  `json:"solvency"`
	Bankruptcy types.Measure   `json:"bankruptcy"`
	Valuation  ValuationResult `json:"valuation"`
	Momentum   MomentumResult  `json:"momentum"`
	Flow       FlowResult      `json:"flow"`
	// Degraded is set when both the balance sheet and the income statement
	// are empty, so statement-driven metrics carry no information.
	Degraded bool     `json:"degraded"`
	Notes    []string `json:"notes,omitempty"`
}
