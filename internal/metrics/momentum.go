package metrics

import (
	"sort"
	"time"

	"equity-advisor/internal/types"
)

// Momentum computes month-over-month and year-over-year revenue growth. Both
// comparisons are matched by date, not by position, so gaps in the series
// never shift them: a month whose predecessor is missing has no MoM.
func (e *Engine) Momentum(series []types.RevenuePoint) MomentumResult {
	pts := make([]types.RevenuePoint, len(series))
	copy(pts, series)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	if len(pts) < 2 {
		return MomentumResult{MoM: types.Missing("no data"), YoY: types.Missing("no data")}
	}

	out := MomentumResult{Series: make([]MomentumPoint, len(pts))}
	for i, pt := range pts {
		mp := MomentumPoint{Date: pt.Date, Revenue: pt.Revenue, MoM: types.Missing("no previous month")}
		if j, ok := previousMonth(pts[:i], pt.Date); ok {
			mp.MoM = growthPct(pt.Revenue, pts[j].Revenue)
		}
		mp.YoY = types.Missing("no year-ago month")
		if j, ok := anniversary(pts[:i], pt.Date, e.cfg.RevenueYoYTolerance); ok {
			mp.YoY = growthPct(pt.Revenue, pts[j].Revenue)
		}
		out.Series[i] = mp
	}

	last := out.Series[len(out.Series)-1]
	out.Latest, out.MoM, out.YoY = last.Date, last.MoM, last.YoY
	return out
}

// previousMonth returns the index in pts (ascending) of the latest
// observation falling in the calendar month before d.
func previousMonth(pts []types.RevenuePoint, d time.Time) (int, bool) {
	want := time.Date(d.Year(), d.Month()-1, 1, 0, 0, 0, 0, d.Location())
	for j := len(pts) - 1; j >= 0; j-- {
		pd := pts[j].Date
		if pd.Year() == want.Year() && pd.Month() == want.Month() {
			return j, true
		}
		if pd.Before(want) {
			break
		}
	}
	return -1, false
}

// anniversary returns the index in pts (ascending) of the observation
// nearest one year before d, within tol.
func anniversary(pts []types.RevenuePoint, d time.Time, tol time.Duration) (int, bool) {
	target := d.AddDate(-1, 0, 0)
	best, bestD := -1, time.Duration(0)
	for i, p := range pts {
		diff := p.Date.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff > tol {
			continue
		}
		if best < 0 || diff <= bestD {
			best, bestD = i, diff
		}
	}
	return best, best >= 0
}

func growthPct(cur, prev float64) types.Measure {
	if prev <= 0 {
		return types.Missing("non-positive base")
	}
	return types.Value((cur/prev - 1) * 100)
}
