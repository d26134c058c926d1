// Package statement pivots long-format statement records into per-date tables
// and resolves canonical concepts against them.
package statement

import (
	"sort"
	"time"

	"equity-advisor/internal/types"
)

// Row is every field reported for one statement date.
type Row struct {
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// Table is a wide statement table ordered newest first. Dates are unique and
// truncated to the calendar day. A Table is never modified after Normalize.
type Table struct {
	rows  []Row
	index map[time.Time]int
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize groups records by date and pivots field names into columns.
// When a (date, field) pair repeats, the later record wins.
func Normalize(records []types.RawStatementRecord) Table {
	byDate := make(map[time.Time]map[string]float64)
	for _, rec := range records {
		if rec.Field == "" || rec.Date.IsZero() {
			continue
		}
		d := Day(rec.Date)
		vals, ok := byDate[d]
		if !ok {
			vals = make(map[string]float64)
			byDate[d] = vals
		}
		vals[rec.Field] = rec.Value.InexactFloat64()
	}

	rows := make([]Row, 0, len(byDate))
	for d, vals := range byDate {
		rows = append(rows, Row{Date: d, Values: vals})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })

	index := make(map[time.Time]int, len(rows))
	for i, r := range rows {
		index[r.Date] = i
	}
	return Table{rows: rows, index: index}
}

func (t Table) Len() int    { return len(t.rows) }
func (t Table) Empty() bool { return len(t.rows) == 0 }

// Rows returns a copy of the rows, newest first.
func (t Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Dates returns the row dates, newest first.
func (t Table) Dates() []time.Time {
	out := make([]time.Time, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Date
	}
	return out
}

// Latest returns the newest date.
func (t Table) Latest() (time.Time, bool) {
	if len(t.rows) == 0 {
		return time.Time{}, false
	}
	return t.rows[0].Date, true
}

// Has reports whether the table has a row for date.
func (t Table) Has(date time.Time) bool {
	_, ok := t.index[Day(date)]
	return ok
}

// Get returns the raw field value at date.
func (t Table) Get(date time.Time, field string) (float64, bool) {
	i, ok := t.index[Day(date)]
	if !ok {
		return 0, false
	}
	v, ok := t.rows[i].Values[field]
	return v, ok
}

// Nearest returns the row date closest to target within tol. Equal distances
// resolve to the newer date.
func (t Table) Nearest(target time.Time, tol time.Duration) (time.Time, bool) {
	target = Day(target)
	var (
		best  time.Time
		found bool
		bestD time.Duration
	)
	for _, r := range t.rows {
		d := r.Date.Sub(target)
		if d < 0 {
			d = -d
		}
		if d > tol {
			continue
		}
		if !found || d < bestD || (d == bestD && r.Date.After(best)) {
			best, bestD, found = r.Date, d, true
		}
	}
	return best, found
}

// Columns returns the union of field names across all rows, sorted.
func (t Table) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range t.rows {
		for f := range r.Values {
			seen[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Set holds the normalized tables of one analysis run.
type Set map[types.StatementKind]Table

// NormalizeSet normalizes each statement batch independently.
func NormalizeSet(raw map[types.StatementKind][]types.RawStatementRecord) Set {
	s := make(Set, len(types.StatementKinds))
	for _, k := range types.StatementKinds {
		s[k] = Normalize(raw[k])
	}
	return s
}

// Table returns the table for kind, or an empty table.
func (s Set) Table(kind types.StatementKind) Table {
	return s[kind]
}
