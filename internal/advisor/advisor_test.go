package advisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-advisor/internal/acquire"
	"equity-advisor/internal/api"
	"equity-advisor/internal/metrics"
	"equity-advisor/internal/signal"
	"equity-advisor/internal/types"
)

var now = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func rows(date string, fields map[string]float64) []types.RawStatementRecord {
	out := make([]types.RawStatementRecord, 0, len(fields))
	for f, v := range fields {
		out = append(out, types.RawStatementRecord{Date: day(date), Field: f, Value: decimal.NewFromFloat(v)})
	}
	return out
}

type fakeFundamentals struct {
	statements map[types.StatementKind][]types.RawStatementRecord
	revenue    []types.RevenuePoint
}

func (f *fakeFundamentals) Statements(_ context.Context, _ string, kind types.StatementKind, _ time.Time) ([]types.RawStatementRecord, error) {
	return f.statements[kind], nil
}

func (f *fakeFundamentals) MonthlyRevenue(context.Context, string, time.Time) ([]types.RevenuePoint, error) {
	return f.revenue, nil
}

type fakePrices struct {
	candles    []types.Candle
	snap       types.MarketSnapshot
	historyErr error
	calls      atomic.Int32
}

func (f *fakePrices) History(context.Context, string, time.Time) ([]types.Candle, error) {
	f.calls.Add(1)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.candles, nil
}

func (f *fakePrices) Snapshot(context.Context, string) (types.MarketSnapshot, error) {
	return f.snap, nil
}

type fakeFlows struct {
	flows  []types.FlowRecord
	margin []types.MarginRecord
}

func (f *fakeFlows) InstitutionalFlows(context.Context, string, time.Time) ([]types.FlowRecord, error) {
	return f.flows, nil
}

func (f *fakeFlows) MarginBalance(context.Context, string, time.Time) ([]types.MarginRecord, error) {
	return f.margin, nil
}

type fakeRevenue struct {
	points []types.RevenuePoint
	calls  atomic.Int32
}

func (f *fakeRevenue) MonthlyRevenue(context.Context, string, time.Time) ([]types.RevenuePoint, error) {
	f.calls.Add(1)
	return f.points, nil
}

// sessions returns n daily candles, newest first, so ordering is exercised.
func sessions(n int, close, vol float64) []types.Candle {
	out := make([]types.Candle, 0, n)
	for i := 0; i < n; i++ {
		d := now.AddDate(0, 0, -i)
		out = append(out, types.Candle{Ts: d.Unix(), Open: close, High: close, Low: close, Close: close, Vol: vol})
	}
	return out
}

func newAnalyzer(t *testing.T, src Sources) *Analyzer {
	t.Helper()
	acq := acquire.New(
		acquire.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		acquire.WithClock(func() time.Time { return now }),
	)
	a, err := New(src, acq, DefaultConfig(),
		WithClock(func() time.Time { return now }),
		WithRunID(func() string { return "run-1" }))
	require.NoError(t, err)
	return a
}

func healthyStatements() map[types.StatementKind][]types.RawStatementRecord {
	bs := append(rows("2024-03-31", map[string]float64{
		"TotalAssets": 1000, "TotalLiabilities": 400, "CurrentAssets": 500, "CurrentLiabilities": 200,
		"NonCurrentLiabilities": 200, "RetainedEarnings": 300, "TotalEquity": 600, "CommonStock": 100,
		"CashAndCashEquivalents": 100, "PropertyPlantAndEquipment": 300,
	}), rows("2023-03-31", map[string]float64{
		"TotalAssets": 900, "TotalLiabilities": 400, "CurrentAssets": 400, "CurrentLiabilities": 200,
		"NonCurrentLiabilities": 200, "RetainedEarnings": 250, "TotalEquity": 500, "CommonStock": 100,
	})...)
	is := append(rows("2024-03-31", map[string]float64{
		"Revenue": 500, "OperatingCosts": 300, "IncomeAfterTaxes": 80, "PreTaxIncome": 100,
		"InterestExpense": 10, "EPS": 2,
	}), rows("2023-03-31", map[string]float64{
		"Revenue": 400, "OperatingCosts": 260, "IncomeAfterTaxes": 60, "PreTaxIncome": 75,
		"InterestExpense": 10, "EPS": 1.5,
	})...)
	return map[types.StatementKind][]types.RawStatementRecord{
		types.BalanceSheet:    bs,
		types.IncomeStatement: is,
		types.CashFlow:        rows("2024-03-31", map[string]float64{"CashFlowsFromOperatingActivities": 120}),
	}
}

func countPrefix(reasons []string, substr string) int {
	n := 0
	for _, r := range reasons {
		if strings.Contains(r, substr) {
			n++
		}
	}
	return n
}

func TestAnalyzeHealthyCompanyAtFairValue(t *testing.T) {
	prices := &fakePrices{
		candles: sessions(30, 97, 1_000_000),
		snap:    types.MarketSnapshot{Price: 97, MarketCap: 2000, TrailingPE: 10},
	}
	a := newAnalyzer(t, Sources{
		Fundamentals: &fakeFundamentals{statements: healthyStatements()},
		Prices:       prices,
	})

	r, err := a.Analyze(context.Background(), " 2330 ")
	require.NoError(t, err)

	assert.Equal(t, "2330", r.Symbol)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, now, r.GeneratedAt)
	assert.Equal(t, 9, r.Bundle.Solvency.Score)
	require.True(t, r.Bundle.Bankruptcy.Ok())
	assert.Greater(t, r.Bundle.Bankruptcy.Value, 2.99)
	assert.InDelta(t, 97.2111, r.Bundle.Valuation.FairValue.Value, 1e-4)

	assert.GreaterOrEqual(t, r.Result.TotalScore, 3)
	assert.True(t, r.Result.Action.IsBuy())
	assert.Len(t, r.Guidance, 3)
	assert.Zero(t, countPrefix(r.Result.Reasons, "liquidity trap"))

	assert.InDelta(t, 1_000_000.0, r.Snapshot.AverageVolume, 1e-9)
	require.Len(t, r.Prices, 30)
	assert.Less(t, r.Prices[0].Ts, r.Prices[29].Ts)
	assert.Empty(t, r.Unavailable())
	assert.False(t, r.Tables.Table(types.BalanceSheet).Empty())
}

func TestAnalyzePrefersSnapshotAverageVolume(t *testing.T) {
	a := newAnalyzer(t, Sources{
		Fundamentals: &fakeFundamentals{statements: healthyStatements()},
		Prices: &fakePrices{
			candles: sessions(30, 97, 100),
			snap:    types.MarketSnapshot{Price: 97, MarketCap: 2000, TrailingPE: 10, AverageVolume: 2_000_000},
		},
	})

	r, err := a.Analyze(context.Background(), "2330")
	require.NoError(t, err)

	assert.Equal(t, 2_000_000.0, r.Snapshot.AverageVolume)
	assert.Zero(t, countPrefix(r.Result.Reasons, "liquidity trap"))
}

func TestAnalyzeDistressedCompany(t *testing.T) {
	statements := map[types.StatementKind][]types.RawStatementRecord{
		types.BalanceSheet: append(
			rows("2024-03-31", map[string]float64{"TotalAssets": 1000, "TotalLiabilities": 900, "CurrentAssets": 100, "CurrentLiabilities": 300, "CommonStock": 200}),
			rows("2023-03-31", map[string]float64{"TotalAssets": 1000, "TotalLiabilities": 500, "CurrentAssets": 300, "CurrentLiabilities": 200, "CommonStock": 100})...,
		),
		types.IncomeStatement: append(
			rows("2024-03-31", map[string]float64{"Revenue": 300, "OperatingCosts": 290, "NetIncome": -50}),
			rows("2023-03-31", map[string]float64{"Revenue": 400, "OperatingCosts": 300, "NetIncome": 20})...,
		),
		types.CashFlow: rows("2024-03-31", map[string]float64{"CashFlowsFromOperatingActivities": -80}),
	}
	a := newAnalyzer(t, Sources{
		Fundamentals: &fakeFundamentals{statements: statements},
		Prices: &fakePrices{
			candles: sessions(30, 15, 2_000_000),
			snap:    types.MarketSnapshot{Price: 15, MarketCap: 100},
		},
	})

	r, err := a.Analyze(context.Background(), "1234")
	require.NoError(t, err)

	assert.LessOrEqual(t, r.Bundle.Solvency.Score, 2)
	require.True(t, r.Bundle.Bankruptcy.Ok())
	assert.Less(t, r.Bundle.Bankruptcy.Value, 1.81)
	assert.LessOrEqual(t, r.Result.TotalScore, -2)
	assert.Equal(t, signal.SellAvoid, r.Result.Action)
	assert.Equal(t, []string{"no action"}, r.Guidance)
}

func TestAnalyzeWithoutStatements(t *testing.T) {
	a := newAnalyzer(t, Sources{
		Fundamentals: &fakeFundamentals{},
		Prices:       &fakePrices{candles: sessions(5, 50, 1_000_000), snap: types.MarketSnapshot{MarketCap: 1e12}},
	})

	r, err := a.Analyze(context.Background(), "2330")
	require.NoError(t, err)

	assert.True(t, r.Bundle.Degraded)
	assert.Equal(t, 0, r.Bundle.Solvency.Score)
	assert.Equal(t, []string{metrics.DataMissingReason}, r.Bundle.Solvency.Reasons)
	assert.Equal(t, types.NotApplicable, r.Bundle.Bankruptcy.Status)

	assert.True(t, r.Result.LowConfidence)
	require.NotEmpty(t, r.Result.Reasons)
	assert.Contains(t, r.Result.Reasons[0], "low confidence")
	assert.Equal(t, signal.Watch, r.Result.Action)
	// price falls back to the last close when the snapshot has none
	assert.Equal(t, 50.0, r.Snapshot.Price)
}

func TestAnalyzeFlowBonusesApplyOnce(t *testing.T) {
	start := now.AddDate(0, 0, -12)
	var flows []types.FlowRecord
	for i := 0; i < 10; i++ {
		d := start.AddDate(0, 0, i)
		flows = append(flows,
			types.FlowRecord{Date: d, Label: "Foreign_Investor", Buy: 300, Sell: 100},
			types.FlowRecord{Date: d, Label: "Investment_Trust", Buy: 20, Sell: 5},
		)
	}
	a := newAnalyzer(t, Sources{
		Fundamentals: &fakeFundamentals{},
		Prices:       &fakePrices{candles: sessions(30, 40, 800_000), snap: types.MarketSnapshot{Price: 40, MarketCap: 10_000_000_000}},
		Flows:        &fakeFlows{flows: flows},
	})

	r, err := a.Analyze(context.Background(), "6488")
	require.NoError(t, err)

	assert.True(t, r.Bundle.Flow.SustainedBuying)
	assert.True(t, r.Bundle.Flow.ConcentratedAccumulation)
	assert.Equal(t, 1, countPrefix(r.Result.Reasons, "foreign investors net buyers"))
	assert.Equal(t, 1, countPrefix(r.Result.Reasons, "investment trusts accumulating"))
	assert.Equal(t, 3, r.Result.TotalScore)

	var datasets []string
	for _, s := range r.Acquisition {
		datasets = append(datasets, s.Dataset)
	}
	assert.Contains(t, datasets, DatasetFlows)
	assert.Contains(t, datasets, DatasetMargin)
}

func TestAnalyzeReportsExhaustedDatasets(t *testing.T) {
	prices := &fakePrices{historyErr: api.Permanent(errors.New("symbol not listed"))}
	a := newAnalyzer(t, Sources{
		Fundamentals: &fakeFundamentals{statements: healthyStatements()},
		Prices:       prices,
	})

	r, err := a.Analyze(context.Background(), "9999")
	require.NoError(t, err)

	assert.Equal(t, []string{DatasetPrices}, r.Unavailable())
	// one attempt per history window
	assert.Equal(t, int32(3), prices.calls.Load())
	assert.Empty(t, r.Prices)
	assert.Zero(t, r.Snapshot.AverageVolume)
	assert.Equal(t, 9, r.Bundle.Solvency.Score)
}

func TestAnalyzeFallsBackToSecondaryRevenue(t *testing.T) {
	var pts []types.RevenuePoint
	for i := 0; i < 14; i++ {
		pts = append(pts, types.RevenuePoint{Date: time.Date(2023, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC), Revenue: float64(100 + 10*i)})
	}
	fallback := &fakeRevenue{points: pts}
	a := newAnalyzer(t, Sources{
		Fundamentals: &fakeFundamentals{statements: healthyStatements()},
		Prices:       &fakePrices{candles: sessions(30, 97, 1_000_000)},
		Revenue:      fallback,
	})

	r, err := a.Analyze(context.Background(), "2330")
	require.NoError(t, err)

	assert.Equal(t, int32(1), fallback.calls.Load())
	assert.True(t, r.Bundle.Momentum.YoY.Ok())
	last := r.Acquisition[len(r.Acquisition)-1]
	assert.Equal(t, DatasetRevenueFallback, last.Dataset)
	assert.Equal(t, 14, last.Rows)
}

func TestAnalyzeSkipsFallbackWhenRevenuePresent(t *testing.T) {
	fallback := &fakeRevenue{}
	a := newAnalyzer(t, Sources{
		Fundamentals: &fakeFundamentals{revenue: []types.RevenuePoint{{Date: day("2024-05-01"), Revenue: 10}}},
		Prices:       &fakePrices{},
		Revenue:      fallback,
	})
	_, err := a.Analyze(context.Background(), "2330")
	require.NoError(t, err)
	assert.Zero(t, fallback.calls.Load())
}

func TestAnalyzeRejectsEmptySymbol(t *testing.T) {
	a := newAnalyzer(t, Sources{Fundamentals: &fakeFundamentals{}, Prices: &fakePrices{}})
	_, err := a.Analyze(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptySymbol)
}

func TestAnalyzeCancelled(t *testing.T) {
	a := newAnalyzer(t, Sources{Fundamentals: &fakeFundamentals{}, Prices: &fakePrices{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, "2330")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresProviders(t *testing.T) {
	_, err := New(Sources{Prices: &fakePrices{}}, nil, DefaultConfig())
	assert.Error(t, err)
	_, err = New(Sources{Fundamentals: &fakeFundamentals{}}, nil, DefaultConfig())
	assert.Error(t, err)
}
