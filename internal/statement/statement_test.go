package statement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-advisor/internal/fieldmap"
	"equity-advisor/internal/types"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func rec(d, field string, v float64) types.RawStatementRecord {
	return types.RawStatementRecord{Date: date(d), Field: field, Value: decimal.NewFromFloat(v)}
}

func TestNormalizeEmpty(t *testing.T) {
	tbl := Normalize(nil)
	assert.True(t, tbl.Empty())
	assert.Equal(t, 0, tbl.Len())
	_, ok := tbl.Latest()
	assert.False(t, ok)
}

func TestNormalizeOrdersNewestFirstAndPivots(t *testing.T) {
	tbl := Normalize([]types.RawStatementRecord{
		rec("2023-03-31", "Revenue", 10),
		rec("2024-03-31", "Revenue", 12),
		rec("2023-12-31", "Revenue", 11),
		rec("2024-03-31", "NetIncome", 3),
	})
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []time.Time{date("2024-03-31"), date("2023-12-31"), date("2023-03-31")}, tbl.Dates())

	v, ok := tbl.Get(date("2024-03-31"), "NetIncome")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, []string{"NetIncome", "Revenue"}, tbl.Columns())
}

func TestNormalizeDuplicateLastWins(t *testing.T) {
	tbl := Normalize([]types.RawStatementRecord{
		rec("2024-03-31", "Revenue", 1),
		rec("2024-03-31", "Revenue", 2),
	})
	v, _ := tbl.Get(date("2024-03-31"), "Revenue")
	assert.Equal(t, 2.0, v)
}

func TestNormalizeTruncatesToDay(t *testing.T) {
	r := rec("2024-03-31", "Revenue", 5)
	r.Date = r.Date.Add(15 * time.Hour)
	tbl := Normalize([]types.RawStatementRecord{r, rec("2024-03-31", "Cost", 2)})
	assert.Equal(t, 1, tbl.Len())
}

func TestResolverSynonymPriority(t *testing.T) {
	r := NewResolver(fieldmap.Default(), 0)
	tbl := Normalize([]types.RawStatementRecord{
		rec("2024-03-31", "OperatingRevenue", 100),
		rec("2024-03-31", "TotalOperatingRevenue", 90),
	})
	// "Revenue" is absent, so the second synonym wins over the third
	assert.Equal(t, 100.0, r.Value(tbl, date("2024-03-31"), fieldmap.Revenue))

	tbl = Normalize([]types.RawStatementRecord{
		rec("2024-03-31", "Revenue", 120),
		rec("2024-03-31", "OperatingRevenue", 100),
	})
	assert.Equal(t, 120.0, r.Value(tbl, date("2024-03-31"), fieldmap.Revenue))
}

func TestResolverAbsentIsZero(t *testing.T) {
	r := NewResolver(nil, 0)
	tbl := Normalize([]types.RawStatementRecord{rec("2024-03-31", "Revenue", 1)})

	assert.Equal(t, 0.0, r.Value(Table{}, date("2024-03-31"), fieldmap.Revenue))
	assert.Equal(t, 0.0, r.Value(tbl, date("2023-03-31"), fieldmap.Revenue))
	assert.Equal(t, 0.0, r.Value(tbl, date("2024-03-31"), fieldmap.EBIT))

	_, ok := r.Lookup(tbl, date("2024-03-31"), fieldmap.EBIT)
	assert.False(t, ok)
}

func TestResolverUnmappedConceptUsesLiteralName(t *testing.T) {
	r := NewResolver(fieldmap.Default(), 0)
	tbl := Normalize([]types.RawStatementRecord{rec("2024-03-31", "Inventories", 7)})
	assert.Equal(t, 7.0, r.Value(tbl, date("2024-03-31"), fieldmap.Concept("Inventories")))
}

func TestPriorYearWithinTolerance(t *testing.T) {
	r := NewResolver(fieldmap.Default(), 0)
	tbl := Normalize([]types.RawStatementRecord{
		rec("2024-03-31", "TotalAssets", 200),
		// reported a few days off the anniversary
		rec("2023-04-05", "TotalAssets", 150),
		rec("2022-03-31", "TotalAssets", 100),
	})
	m := r.PriorYear(tbl, date("2024-03-31"), fieldmap.Assets)
	require.True(t, m.Ok())
	assert.Equal(t, 150.0, m.Value)
}

func TestPriorYearOutsideToleranceIsUnavailable(t *testing.T) {
	r := NewResolver(fieldmap.Default(), 30*24*time.Hour)
	tbl := Normalize([]types.RawStatementRecord{
		rec("2024-03-31", "TotalAssets", 200),
		rec("2023-06-30", "TotalAssets", 150),
	})
	m := r.PriorYear(tbl, date("2024-03-31"), fieldmap.Assets)
	assert.Equal(t, types.Unavailable, m.Status)
	assert.Equal(t, 0.0, m.Value)
}

func TestPriorYearMissingFieldIsUnavailable(t *testing.T) {
	r := NewResolver(fieldmap.Default(), 0)
	tbl := Normalize([]types.RawStatementRecord{
		rec("2024-03-31", "TotalAssets", 200),
		rec("2023-03-31", "Revenue", 150),
	})
	m := r.PriorYear(tbl, date("2024-03-31"), fieldmap.Assets)
	assert.Equal(t, types.Unavailable, m.Status)
}

func TestPriorYearLeapDay(t *testing.T) {
	r := NewResolver(fieldmap.Default(), 0)
	tbl := Normalize([]types.RawStatementRecord{
		rec("2024-02-29", "TotalAssets", 2),
		rec("2023-02-28", "TotalAssets", 1),
	})
	m := r.PriorYear(tbl, date("2024-02-29"), fieldmap.Assets)
	require.True(t, m.Ok())
	assert.Equal(t, 1.0, m.Value)
}

func TestNearestTieGoesToNewer(t *testing.T) {
	tbl := Normalize([]types.RawStatementRecord{
		rec("2023-03-21", "X", 1),
		rec("2023-04-10", "X", 2),
	})
	d, ok := tbl.Nearest(date("2023-03-31"), DefaultTolerance)
	require.True(t, ok)
	assert.Equal(t, date("2023-04-10"), d)
}

func TestAligned(t *testing.T) {
	r := NewResolver(nil, 0)
	tbl := Normalize([]types.RawStatementRecord{rec("2024-03-30", "X", 1)})
	d, ok := r.Aligned(tbl, date("2024-03-31"))
	require.True(t, ok)
	assert.Equal(t, date("2024-03-30"), d)

	_, ok = r.Aligned(Table{}, date("2024-03-31"))
	assert.False(t, ok)
}

func TestNormalizeSet(t *testing.T) {
	s := NormalizeSet(map[types.StatementKind][]types.RawStatementRecord{
		types.BalanceSheet: {rec("2024-03-31", "TotalAssets", 1)},
	})
	assert.Equal(t, 1, s.Table(types.BalanceSheet).Len())
	assert.True(t, s.Table(types.IncomeStatement).Empty())
	assert.True(t, s.Table(types.CashFlow).Empty())
}
