// Package report is the output of one advisory run as handed to the
// presentation layer.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"equity-advisor/internal/acquire"
	"equity-advisor/internal/metrics"
	"equity-advisor/internal/signal"
	"equity-advisor/internal/statement"
	"equity-advisor/internal/types"
)

type Report struct {
	Symbol      string               `json:"symbol"`
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Result      signal.Result        `json:"result"`
	Guidance    []string             `json:"order_guidance"`
	Snapshot    types.MarketSnapshot `json:"snapshot"`
	Bundle      metrics.Bundle       `json:"metrics"`
	Acquisition []acquire.Summary    `json:"acquisition"`

	// Prices and Tables feed charts and exports; they are too large for the
	// JSON summary.
	Prices []types.Candle `json:"-"`
	Tables statement.Set  `json:"-"`
}

// Unavailable lists the datasets that came back exhausted.
func (r *Report) Unavailable() []string {
	var out []string
	for _, s := range r.Acquisition {
		if s.State == acquire.Exhausted {
			out = append(out, s.Dataset)
		}
	}
	return out
}

// WriteText renders the report for a terminal.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  (score %+d)\n", r.Symbol, r.Result.Action, r.Result.TotalScore)
	if r.Snapshot.Price > 0 {
		fmt.Fprintf(&b, "price %.2f", r.Snapshot.Price)
		if fv := r.Bundle.Valuation.FairValue; fv.Ok() {
			fmt.Fprintf(&b, "  fair value %.2f", fv.Value)
		}
		b.WriteString("\n")
	}
	if r.Result.LowConfidence {
		b.WriteString("LOW CONFIDENCE\n")
	}
	b.WriteString("\nreasons:\n")
	for _, reason := range r.Result.Reasons {
		fmt.Fprintf(&b, "  %s\n", reason)
	}
	b.WriteString("\nquality checks:\n")
	for _, reason := range r.Bundle.Solvency.Reasons {
		fmt.Fprintf(&b, "  + %s\n", reason)
	}
	for _, skipped := range r.Bundle.Solvency.Skipped {
		fmt.Fprintf(&b, "  ? %s\n", skipped)
	}
	b.WriteString("\norder guidance:\n")
	for _, g := range r.Guidance {
		fmt.Fprintf(&b, "  - %s\n", g)
	}
	if missing := r.Unavailable(); len(missing) > 0 {
		fmt.Fprintf(&b, "\nunavailable datasets: %s\n", strings.Join(missing, ", "))
	}
	fmt.Fprintf(&b, "\nrun %s at %s\n", r.RunID, r.GeneratedAt.Format(time.RFC3339))

	_, err := io.WriteString(w, b.String())
	return err
}
