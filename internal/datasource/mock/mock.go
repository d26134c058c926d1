// Package mock is an offline provider that serves deterministic data for
// every dataset. The same symbol always yields the same company.
package mock

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/types"
)

type Provider struct {
	now func() time.Time
}

var (
	_ interfaces.FundamentalsProvider = (*Provider)(nil)
	_ interfaces.PriceProvider        = (*Provider)(nil)
	_ interfaces.FlowProvider         = (*Provider)(nil)
)

type Option func(*Provider)

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func New(opts ...Option) *Provider {
	p := &Provider{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// company is the generated profile for one symbol.
type company struct {
	scale    float64 // quarterly revenue of the oldest quarter
	growth   float64 // quarter-on-quarter revenue growth
	margin   float64 // net margin
	shares   float64
	price    float64
	volume   float64
	trustBuy bool
}

func profile(symbol string) company {
	seed := int64(0)
	for _, c := range symbol {
		seed = seed*31 + int64(c)
	}
	r := rand.New(rand.NewSource(seed))
	return company{
		scale:    1e9 * (1 + r.Float64()*9),
		growth:   0.01 + r.Float64()*0.04,
		margin:   0.08 + r.Float64()*0.12,
		shares:   1e8 * (1 + r.Float64()*4),
		price:    40 + r.Float64()*160,
		volume:   2e5 + r.Float64()*2e6,
		trustBuy: r.Intn(2) == 0,
	}
}

const quarters = 12

// quarterEnds returns the last n quarter-end dates before now, oldest first.
func quarterEnds(now time.Time, n int) []time.Time {
	q := (int(now.Month()) - 1) / 3
	end := time.Date(now.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	out := make([]time.Time, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = end
		end = time.Date(end.Year(), end.Month()-2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	}
	return out
}

func rec(d time.Time, field string, v float64) types.RawStatementRecord {
	return types.RawStatementRecord{Date: d, Field: field, Value: decimal.NewFromFloat(v).Round(2)}
}

func (p *Provider) Statements(ctx context.Context, symbol string, kind types.StatementKind, start time.Time) ([]types.RawStatementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := profile(symbol)
	var out []types.RawStatementRecord
	for i, d := range quarterEnds(p.now(), quarters) {
		if d.Before(start) {
			continue
		}
		f := 1 + float64(i)*c.growth
		revenue := c.scale * f
		net := revenue * c.margin
		assets := c.scale * 8 * (1 + float64(i)*0.01)
		liabilities := assets * (0.40 - float64(i)*0.005)
		switch kind {
		case types.BalanceSheet:
			out = append(out,
				rec(d, "TotalAssets", assets),
				rec(d, "Liabilities", liabilities),
				rec(d, "CurrentAssets", assets*0.45),
				rec(d, "CurrentLiabilities", liabilities*0.45*(1-float64(i)*0.01)),
				rec(d, "NonCurrentLiabilities", liabilities*0.55),
				rec(d, "RetainedEarnings", assets*0.30),
				rec(d, "Equity", assets-liabilities),
				rec(d, "OrdinaryShare", c.shares*10),
				rec(d, "CashAndCashEquivalents", assets*0.15),
				rec(d, "PropertyPlantAndEquipment", assets*0.35),
			)
		case types.IncomeStatement:
			gross := revenue * (0.40 + float64(i)*0.002)
			out = append(out,
				rec(d, "Revenue", revenue),
				rec(d, "CostOfGoodsSold", revenue-gross),
				rec(d, "GrossProfit", gross),
				rec(d, "OperatingIncome", net*1.3),
				rec(d, "PreTaxIncome", net*1.2),
				rec(d, "InterestExpense", net*0.05),
				rec(d, "IncomeAfterTaxes", net),
				rec(d, "EPS", net/c.shares),
			)
		case types.CashFlow:
			out = append(out, rec(d, "CashFlowsFromOperatingActivities", net*1.25))
		}
	}
	return out, nil
}

func (p *Provider) MonthlyRevenue(ctx context.Context, symbol string, start time.Time) ([]types.RevenuePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := profile(symbol)
	now := p.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var out []types.RevenuePoint
	for i := 24; i >= 1; i-- {
		d := first.AddDate(0, -i, 0)
		if d.Before(start) {
			continue
		}
		month := 24 - i
		out = append(out, types.RevenuePoint{Date: d, Revenue: c.scale / 3 * (1 + float64(month)*c.growth/3)})
	}
	return out, nil
}

// sessions returns weekday dates from start (or one year back) to now.
func (p *Provider) sessions(start time.Time) []time.Time {
	now := p.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if start.IsZero() || start.Before(end.AddDate(-2, 0, 0)) {
		start = end.AddDate(-1, 0, 0)
	}
	var out []time.Time
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func (p *Provider) History(ctx context.Context, symbol string, start time.Time) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := profile(symbol)
	days := p.sessions(start)
	out := make([]types.Candle, 0, len(days))
	for i, d := range days {
		// gentle drift towards today's price
		px := c.price * (0.85 + 0.15*float64(i+1)/float64(len(days)))
		out = append(out, types.Candle{
			Ts:    d.Unix(),
			Open:  px * 0.995,
			High:  px * 1.01,
			Low:   px * 0.99,
			Close: px,
			Vol:   c.volume,
		})
	}
	return out, nil
}

func (p *Provider) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return types.MarketSnapshot{}, err
	}
	c := profile(symbol)
	return types.MarketSnapshot{
		Symbol:            symbol,
		Price:             c.price,
		MarketCap:         c.price * c.shares,
		Sector:            "Technology",
		TrailingPE:        c.price / (c.scale * 4 * c.margin / c.shares),
		SharesOutstanding: c.shares,
		DividendYieldPct:  2,
		Currency:          "TWD",
	}, nil
}

func (p *Provider) InstitutionalFlows(ctx context.Context, symbol string, start time.Time) ([]types.FlowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := profile(symbol)
	days := p.sessions(start)
	if len(days) > 30 {
		days = days[len(days)-30:]
	}
	var out []types.FlowRecord
	for i, d := range days {
		foreign := c.volume * 0.05
		if i%4 == 0 {
			foreign = -foreign / 2
		}
		trust := c.volume * 0.01
		if !c.trustBuy {
			trust = -trust
		}
		out = append(out,
			flow(d, "Foreign_Investor", foreign),
			flow(d, "Investment_Trust", trust),
			flow(d, "Dealer_self", c.volume*0.002),
		)
	}
	return out, nil
}

func flow(d time.Time, label string, net float64) types.FlowRecord {
	if net >= 0 {
		return types.FlowRecord{Date: d, Label: label, Buy: net}
	}
	return types.FlowRecord{Date: d, Label: label, Sell: -net}
}

func (p *Provider) MarginBalance(ctx context.Context, symbol string, start time.Time) ([]types.MarginRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := profile(symbol)
	days := p.sessions(start)
	if len(days) > 30 {
		days = days[len(days)-30:]
	}
	out := make([]types.MarginRecord, 0, len(days))
	for i, d := range days {
		out = append(out, types.MarginRecord{Date: d, Balance: c.volume * (1 - float64(i)*0.005)})
	}
	return out, nil
}
