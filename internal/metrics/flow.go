package metrics

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"

	"equity-advisor/internal/types"
)

// InvestorClass groups institutional flow labels.
type InvestorClass string

const (
	Foreign         InvestorClass = "foreign"
	InvestmentTrust InvestorClass = "investment_trust"
	Dealer          InvestorClass = "dealer"
	OtherInvestor   InvestorClass = "other"
)

const (
	sustainedWindow    = 3
	accumulationWindow = 10
)

// Label markers after folding, tested in order: a foreign-owned dealer
// ("外資自營商", "Foreign_Dealer_Self") is foreign.
var classMarkers = []struct {
	class   InvestorClass
	markers []string
}{
	{InvestmentTrust, []string{"investmenttrust", "投信"}},
	{Foreign, []string{"foreign", "外資", "外陸資", "外资"}},
	{Dealer, []string{"dealer", "自營商", "自营商"}},
}

// Classify maps a provider label to an investor class regardless of case,
// full-width characters, separators or language.
func Classify(label string) InvestorClass {
	s := cases.Fold().String(width.Fold.String(strings.TrimSpace(label)))
	s = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
	for _, cm := range classMarkers {
		for _, m := range cm.markers {
			if strings.Contains(s, m) {
				return cm.class
			}
		}
	}
	return OtherInvestor
}

// netByDate sums nets per date for one class, ascending by date.
func netByDate(records []types.FlowRecord, class InvestorClass) []float64 {
	sums := make(map[time.Time]float64)
	for _, r := range records {
		if Classify(r.Label) != class {
			continue
		}
		y, m, d := r.Date.Date()
		sums[time.Date(y, m, d, 0, 0, 0, 0, time.UTC)] += r.Net()
	}
	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = sums[d]
	}
	return out
}

func tail(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

// Flow derives the foreign and trust flow flags and the margin trend.
func (e *Engine) Flow(records []types.FlowRecord, margin []types.MarginRecord, marketCap float64) FlowResult {
	var r FlowResult

	foreign := tail(netByDate(records, Foreign), sustainedWindow)
	r.ForeignObservations = len(foreign)
	r.SustainedBuying = len(foreign) == sustainedWindow
	for _, x := range foreign {
		r.ForeignNet += x
		if x <= 0 {
			r.SustainedBuying = false
		}
	}

	trust := tail(netByDate(records, InvestmentTrust), accumulationWindow)
	r.TrustObservations = len(trust)
	for _, x := range trust {
		r.TrustNet += x
	}
	r.ConcentratedAccumulation = len(trust) > 0 && r.TrustNet > 0 &&
		marketCap > 0 && marketCap < e.cfg.SmallCapThreshold

	r.Margin = e.marginTrend(margin)
	return r
}

func (e *Engine) marginTrend(series []types.MarginRecord) MarginTrend {
	pts := make([]types.MarginRecord, len(series))
	copy(pts, series)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	if len(pts) < 2 {
		return MarginTrend{Direction: Unknown, ChangePct: types.Missing("no data")}
	}
	lookback := e.cfg.MarginLookback
	if lookback > len(pts)-1 {
		lookback = len(pts) - 1
	}
	t := MarginTrend{
		Latest:   pts[len(pts)-1].Balance,
		Base:     pts[len(pts)-1-lookback].Balance,
		Lookback: lookback,
	}
	switch {
	case t.Latest > t.Base:
		t.Direction = Rising
	case t.Latest < t.Base:
		t.Direction = Falling
	default:
		t.Direction = Flat
	}
	t.ChangePct = growthPct(t.Latest, t.Base)
	return t
}
