// Package advisor runs one advisory end to end: it acquires every dataset for
// a security, normalizes the statements, computes the metrics bundle and
// composes the scored recommendation.
package advisor

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"equity-advisor/internal/acquire"
	"equity-advisor/internal/fieldmap"
	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/logger"
	"equity-advisor/internal/metrics"
	"equity-advisor/internal/report"
	"equity-advisor/internal/signal"
	"equity-advisor/internal/statement"
	"equity-advisor/internal/ta"
	"equity-advisor/internal/types"
)

// Dataset names as they appear in acquisition summaries.
const (
	DatasetPrices          = "price_history"
	DatasetSnapshot        = "snapshot"
	DatasetRevenue         = "monthly_revenue"
	DatasetRevenueFallback = "monthly_revenue_fallback"
	DatasetFlows           = "institutional_flows"
	DatasetMargin          = "margin_balance"
)

var ErrEmptySymbol = errors.New("advisor: empty symbol")

// Sources are the providers one run reads from. Fundamentals and Prices are
// required; Flows and Revenue may be nil.
type Sources struct {
	Fundamentals interfaces.FundamentalsProvider
	Prices       interfaces.PriceProvider
	Flows        interfaces.FlowProvider
	Revenue      interfaces.RevenueSource
}

// Policies assigns a retry plan to each dataset class.
type Policies struct {
	Fundamentals acquire.Policy
	Flows        acquire.Policy
	Prices       acquire.Policy
	Snapshot     acquire.Policy
}

func DefaultPolicies() Policies {
	return Policies{
		Fundamentals: acquire.Cold(),
		Flows:        acquire.Hot(),
		Prices:       acquire.Price(),
		Snapshot:     acquire.Snapshot(),
	}
}

type Config struct {
	Fields             fieldmap.Map
	PriorYearTolerance time.Duration
	Metrics            metrics.Config
	Thresholds         signal.Thresholds
	Policies           Policies
	// AverageVolumeSessions is how many trailing sessions feed the average
	// volume used by the liquidity rule.
	AverageVolumeSessions int
	// Concurrency caps simultaneous dataset fetches.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		Fields:                fieldmap.Default(),
		PriorYearTolerance:    statement.DefaultTolerance,
		Metrics:               metrics.DefaultConfig(),
		Thresholds:            signal.DefaultThresholds(),
		Policies:              DefaultPolicies(),
		AverageVolumeSessions: 20,
		Concurrency:           4,
	}
}

type Option func(*Analyzer)

func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithRunID replaces the random run identifier, for reproducible output.
func WithRunID(gen func() string) Option {
	return func(a *Analyzer) { a.runID = gen }
}

type Analyzer struct {
	src      Sources
	acq      *acquire.Acquirer
	cfg      Config
	engine   *metrics.Engine
	composer *signal.Composer
	now      func() time.Time
	runID    func() string
}

var _ interfaces.Advisor = (*Analyzer)(nil)

func New(src Sources, acq *acquire.Acquirer, cfg Config, opts ...Option) (*Analyzer, error) {
	if src.Fundamentals == nil {
		return nil, errors.New("advisor: fundamentals provider is required")
	}
	if src.Prices == nil {
		return nil, errors.New("advisor: price provider is required")
	}
	if acq == nil {
		acq = acquire.New()
	}
	if cfg.AverageVolumeSessions <= 0 {
		cfg.AverageVolumeSessions = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	a := &Analyzer{
		src:      src,
		acq:      acq,
		cfg:      cfg,
		engine:   metrics.NewEngine(cfg.Metrics, statement.NewResolver(cfg.Fields, cfg.PriorYearTolerance)),
		composer: signal.NewComposer(cfg.Thresholds),
		now:      time.Now,
		runID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// datasets collects every acquisition of one run. Each field is written by
// exactly one goroutine.
type datasets struct {
	prices     acquire.Result[types.Candle]
	snapshot   acquire.Result[types.MarketSnapshot]
	statements [3]acquire.Result[types.RawStatementRecord]
	revenue    acquire.Result[types.RevenuePoint]
	flows      acquire.Result[types.FlowRecord]
	margin     acquire.Result[types.MarginRecord]
	fallback   *acquire.Result[types.RevenuePoint]
}

func (d *datasets) summaries(withFlows bool) []acquire.Summary {
	out := []acquire.Summary{d.prices.Summary(), d.snapshot.Summary()}
	for _, s := range d.statements {
		out = append(out, s.Summary())
	}
	out = append(out, d.revenue.Summary())
	if d.fallback != nil {
		out = append(out, d.fallback.Summary())
	}
	if withFlows {
		out = append(out, d.flows.Summary(), d.margin.Summary())
	}
	return out
}

// Analyze produces the advisory for symbol. Dataset failures never fail the
// run: they surface as exhausted acquisition summaries and missing measures.
// Only an empty symbol or a cancelled context returns an error.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*report.Report, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	d := a.acquireAll(ctx, symbol)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prices := append([]types.Candle(nil), d.prices.Rows...)
	sort.Slice(prices, func(i, j int) bool { return prices[i].Ts < prices[j].Ts })

	snap, _ := d.snapshot.First()
	snap.Symbol = symbol
	if snap.AverageVolume <= 0 && len(prices) > 0 {
		snap.AverageVolume = ta.AverageVolume(prices, a.cfg.AverageVolumeSessions)
	}
	if snap.Price <= 0 {
		if last, ok := ta.LastClose(prices); ok {
			snap.Price = last
		}
	}

	raw := make(map[types.StatementKind][]types.RawStatementRecord, len(types.StatementKinds))
	for i, kind := range types.StatementKinds {
		raw[kind] = d.statements[i].Rows
	}
	tables := statement.NormalizeSet(raw)

	revenue := d.revenue.Rows
	if d.fallback != nil && len(d.fallback.Rows) > 0 {
		revenue = d.fallback.Rows
	}

	bundle := a.engine.Compute(metrics.Inputs{
		Tables:   tables,
		Snapshot: snap,
		Revenue:  revenue,
		Flows:    d.flows.Rows,
		Margin:   d.margin.Rows,
	})
	result := a.composer.Compose(bundle, snap)

	r := &report.Report{
		Symbol:      symbol,
		RunID:       a.runID(),
		GeneratedAt: a.now(),
		Result:      result,
		Guidance:    signal.OrderGuidance(result.Action),
		Snapshot:    snap,
		Bundle:      bundle,
		Acquisition: d.summaries(a.src.Flows != nil),
		Prices:      prices,
		Tables:      tables,
	}

	logger.Advisory(ctx, symbol, string(result.Action), result.TotalScore, result.Reasons,
		"run_id", r.RunID,
		"low_confidence", result.LowConfidence,
		"unavailable", r.Unavailable())
	return r, nil
}

// acquireAll fetches every dataset concurrently, then consults the secondary
// revenue source if the primary series came back empty.
func (a *Analyzer) acquireAll(ctx context.Context, symbol string) *datasets {
	op := logger.StartOperation(ctx, "advisor.acquire", "symbol", symbol)
	ctx = op.GetContext()

	var d datasets
	pol := a.cfg.Policies
	key := func(dataset string) acquire.Key { return acquire.Key{Symbol: symbol, Dataset: dataset} }

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)

	g.Go(func() error {
		d.prices = acquire.Fetch(ctx, a.acq, key(DatasetPrices), pol.Prices,
			func(ctx context.Context, start time.Time) ([]types.Candle, error) {
				return a.src.Prices.History(ctx, symbol, start)
			})
		return nil
	})
	g.Go(func() error {
		d.snapshot = acquire.FetchOne(ctx, a.acq, key(DatasetSnapshot), pol.Snapshot,
			func(ctx context.Context) (types.MarketSnapshot, error) {
				return a.src.Prices.Snapshot(ctx, symbol)
			})
		return nil
	})
	for i, kind := range types.StatementKinds {
		g.Go(func() error {
			d.statements[i] = acquire.Fetch(ctx, a.acq, key(string(kind)), pol.Fundamentals,
				func(ctx context.Context, start time.Time) ([]types.RawStatementRecord, error) {
					return a.src.Fundamentals.Statements(ctx, symbol, kind, start)
				})
			return nil
		})
	}
	g.Go(func() error {
		d.revenue = acquire.Fetch(ctx, a.acq, key(DatasetRevenue), pol.Fundamentals,
			func(ctx context.Context, start time.Time) ([]types.RevenuePoint, error) {
				return a.src.Fundamentals.MonthlyRevenue(ctx, symbol, start)
			})
		return nil
	})
	if a.src.Flows != nil {
		g.Go(func() error {
			d.flows = acquire.Fetch(ctx, a.acq, key(DatasetFlows), pol.Flows,
				func(ctx context.Context, start time.Time) ([]types.FlowRecord, error) {
					return a.src.Flows.InstitutionalFlows(ctx, symbol, start)
				})
			return nil
		})
		g.Go(func() error {
			d.margin = acquire.Fetch(ctx, a.acq, key(DatasetMargin), pol.Flows,
				func(ctx context.Context, start time.Time) ([]types.MarginRecord, error) {
					return a.src.Flows.MarginBalance(ctx, symbol, start)
				})
			return nil
		})
	}
	_ = g.Wait()

	if len(d.revenue.Rows) == 0 && a.src.Revenue != nil && ctx.Err() == nil {
		logger.Info(ctx, "Monthly revenue empty, trying secondary source", "symbol", symbol)
		fb := acquire.Fetch(ctx, a.acq, key(DatasetRevenueFallback), pol.Fundamentals,
			func(ctx context.Context, start time.Time) ([]types.RevenuePoint, error) {
				return a.src.Revenue.MonthlyRevenue(ctx, symbol, start)
			})
		d.fallback = &fb
	}

	exhausted := 0
	for _, s := range d.summaries(a.src.Flows != nil) {
		if s.State == acquire.Exhausted {
			exhausted++
		}
	}
	if err := ctx.Err(); err != nil {
		op.EndWithError(err, "exhausted", exhausted)
		return &d
	}
	op.End("exhausted", exhausted)
	return &d
}
