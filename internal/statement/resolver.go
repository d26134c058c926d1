package statement

import (
	"time"

	"equity-advisor/internal/fieldmap"
	"equity-advisor/internal/types"
)

// DefaultTolerance is how far from the exact anniversary a prior-year row may sit.
const DefaultTolerance = 45 * 24 * time.Hour

// Resolver looks canonical concepts up in normalized tables.
type Resolver struct {
	Fields    fieldmap.Map
	Tolerance time.Duration
}

func NewResolver(fields fieldmap.Map, tolerance time.Duration) Resolver {
	if fields == nil {
		fields = fieldmap.Default()
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Resolver{Fields: fields, Tolerance: tolerance}
}

// Lookup returns the value of the first synonym of c present at date.
func (r Resolver) Lookup(t Table, date time.Time, c fieldmap.Concept) (float64, bool) {
	if t.Empty() || !t.Has(date) {
		return 0, false
	}
	for _, name := range r.Fields.Synonyms(c) {
		if v, ok := t.Get(date, name); ok {
			return v, true
		}
	}
	return 0, false
}

// Value is Lookup with absence read as 0, for point-in-time arithmetic.
func (r Resolver) Value(t Table, date time.Time, c fieldmap.Concept) float64 {
	v, _ := r.Lookup(t, date, c)
	return v
}

// PriorYearDate finds the row closest to one calendar year before current.
func (r Resolver) PriorYearDate(t Table, current time.Time) (time.Time, bool) {
	return t.Nearest(Day(current).AddDate(-1, 0, 0), r.Tolerance)
}

// PriorYear resolves c one year before current. A missing row or a row
// without any synonym of c is Unavailable, never zero.
func (r Resolver) PriorYear(t Table, current time.Time, c fieldmap.Concept) types.Measure {
	d, ok := r.PriorYearDate(t, current)
	if !ok {
		return types.Missing("no prior-year period")
	}
	v, ok := r.Lookup(t, d, c)
	if !ok {
		return types.Missing("prior-year " + string(c) + " not reported")
	}
	return types.Value(v)
}

// Aligned returns the date in t that corresponds to anchor: anchor itself
// when present, otherwise the nearest row within the tolerance.
func (r Resolver) Aligned(t Table, anchor time.Time) (time.Time, bool) {
	if t.Has(anchor) {
		return Day(anchor), true
	}
	return t.Nearest(anchor, r.Tolerance)
}
