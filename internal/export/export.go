// Package export writes a report's tables and scores as CSV files for
// spreadsheets and charting front ends.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/journal"
	"equity-advisor/internal/report"
	"equity-advisor/internal/statement"
	"equity-advisor/internal/types"
)

type CSVExporter struct {
	dir string
}

var _ interfaces.Exporter = (*CSVExporter)(nil)

func New(dir string) *CSVExporter {
	return &CSVExporter{dir: dir}
}

func (e *CSVExporter) runDir(r *report.Report) string {
	return filepath.Join(e.dir, r.Symbol, r.GeneratedAt.UTC().Format("20060102-150405"))
}

// Export writes one file per non-empty statement table, the price series, a
// metric summary and the ordered reasons. It returns the paths written.
func (e *CSVExporter) Export(ctx context.Context, r *report.Report) ([]string, error) {
	dir := e.runDir(r)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	write := func(name string, records [][]string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(dir, name)
		if err := writeCSV(p, records); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, p)
		return nil
	}

	for _, kind := range types.StatementKinds {
		t := r.Tables.Table(kind)
		if t.Empty() {
			continue
		}
		if err := write(string(kind)+".csv", tableRecords(t)); err != nil {
			return paths, err
		}
	}
	if len(r.Prices) > 0 {
		if err := write("prices.csv", priceRecords(r.Prices)); err != nil {
			return paths, err
		}
	}
	if err := write("summary.csv", summaryRecords(r)); err != nil {
		return paths, err
	}
	reasons := [][]string{{"order", "reason"}}
	for i, reason := range r.Result.Reasons {
		reasons = append(reasons, []string{strconv.Itoa(i + 1), reason})
	}
	if err := write("reasons.csv", reasons); err != nil {
		return paths, err
	}
	return paths, nil
}

func writeCSV(p string, records [][]string) error {
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// tableRecords lays a statement table out with one row per date, newest
// first. Fields a date does not report are left blank.
func tableRecords(t statement.Table) [][]string {
	cols := t.Columns()
	out := [][]string{append([]string{"date"}, cols...)}
	for _, row := range t.Rows() {
		rec := make([]string, 0, len(cols)+1)
		rec = append(rec, row.Date.Format("2006-01-02"))
		for _, c := range cols {
			if v, ok := row.Values[c]; ok {
				rec = append(rec, num(v))
			} else {
				rec = append(rec, "")
			}
		}
		out = append(out, rec)
	}
	return out
}

func priceRecords(cs []types.Candle) [][]string {
	out := [][]string{{"date", "open", "high", "low", "close", "volume"}}
	for _, c := range cs {
		out = append(out, []string{
			time.Unix(c.Ts, 0).UTC().Format("2006-01-02"),
			num(c.Open), num(c.High), num(c.Low), num(c.Close), num(c.Vol),
		})
	}
	return out
}

func measureRecord(name string, m types.Measure) []string {
	v := ""
	if m.Ok() {
		v = num(m.Value)
	}
	return []string{name, v, m.Status.String(), m.Note}
}

func summaryRecords(r *report.Report) [][]string {
	b := r.Bundle
	val := b.Valuation
	out := [][]string{
		{"metric", "value", "status", "note"},
		{"action", string(r.Result.Action), "", ""},
		{"total_score", strconv.Itoa(r.Result.TotalScore), "", ""},
		{"low_confidence", strconv.FormatBool(r.Result.LowConfidence), "", ""},
		{"price", num(r.Snapshot.Price), "", ""},
		{"average_volume", num(r.Snapshot.AverageVolume), "", ""},
		{"solvency_score", strconv.Itoa(b.Solvency.Score), "", ""},
		measureRecord("bankruptcy_risk", b.Bankruptcy),
		measureRecord("annualized_eps", val.AnnualizedEPS),
		measureRecord("book_value_per_share", val.BookValuePerShare),
		measureRecord("fair_value", val.FairValue),
		measureRecord("revenue_growth_yoy", val.RevenueGrowthYoY),
		measureRecord("growth_adjusted_pe", val.GrowthAdjustedPE),
		measureRecord("trailing_ebit", val.TrailingEBIT),
		measureRecord("capital_efficiency", val.CapitalEfficiency),
		measureRecord("earnings_yield", val.EarningsYield),
		measureRecord("current_ratio", val.CurrentRatio),
		measureRecord("revenue_mom", b.Momentum.MoM),
		measureRecord("revenue_yoy", b.Momentum.YoY),
		{"foreign_net_3", num(b.Flow.ForeignNet), "", ""},
		{"trust_net_10", num(b.Flow.TrustNet), "", ""},
		{"margin_direction", string(b.Flow.Margin.Direction), "", ""},
	}
	for _, s := range r.Acquisition {
		out = append(out, []string{"dataset:" + s.Dataset, strconv.Itoa(s.Rows), string(s.State), s.Error})
	}
	return out
}

// WriteDigest summarizes one day of journal entries into
// <dir>/digest/<date>.csv: the latest run per symbol, then a count per action.
// It writes nothing and returns "" when there are no entries.
func (e *CSVExporter) WriteDigest(day time.Time, entries []journal.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	latest := map[string]journal.Entry{}
	runs := map[string]int{}
	for _, en := range entries {
		latest[en.Symbol] = en
		runs[en.Symbol]++
	}
	symbols := make([]string, 0, len(latest))
	for s := range latest {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	records := [][]string{{"symbol", "runs", "action", "score", "solvency", "price", "fair_value", "low_confidence", "time"}}
	actions := map[string]int{}
	for _, s := range symbols {
		en := latest[s]
		actions[en.Action]++
		fv := ""
		if en.FairValue != nil {
			fv = fmt.Sprintf("%.2f", *en.FairValue)
		}
		records = append(records, []string{
			s, strconv.Itoa(runs[s]), en.Action, strconv.Itoa(en.Score), strconv.Itoa(en.Solvency),
			fmt.Sprintf("%.2f", en.Price), fv, strconv.FormatBool(en.LowConfidence), en.Time,
		})
	}
	for _, a := range []string{"StrongBuy", "BuyHold", "Watch", "SellAvoid"} {
		records = append(records, []string{"TOTAL", strconv.Itoa(actions[a]), a, "", "", "", "", "", ""})
	}

	p := filepath.Join(e.dir, "digest", day.Format("2006-01-02")+".csv")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	if err := writeCSV(p, records); err != nil {
		return "", err
	}
	return p, nil
}
