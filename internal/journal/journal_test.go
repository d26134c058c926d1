package journal

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-advisor/internal/acquire"
	"equity-advisor/internal/metrics"
	"equity-advisor/internal/report"
	"equity-advisor/internal/signal"
	"equity-advisor/internal/types"
)

var now = time.Date(2024, 6, 30, 14, 0, 0, 0, time.UTC)

func sample(symbol string) *report.Report {
	return &report.Report{
		Symbol:   symbol,
		RunID:    "run-" + symbol,
		Result:   signal.Result{TotalScore: 4, Action: signal.BuyHold, Reasons: []string{"[+2] quality score 9/9 is strong"}},
		Snapshot: types.MarketSnapshot{Price: 97},
		Bundle: metrics.Bundle{
			Solvency:  metrics.SolvencyResult{Score: 9},
			Valuation: metrics.ValuationResult{FairValue: types.Value(100)},
		},
		Acquisition: []acquire.Summary{{Dataset: "margin_balance", State: acquire.Exhausted}},
	}
}

func newJournal(t *testing.T) *Journal {
	return New(t.TempDir(), WithLocation(time.UTC), WithClock(func() time.Time { return now }))
}

func TestAppendAndReadDay(t *testing.T) {
	j := newJournal(t)
	p, err := j.Append(sample("2330"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(j.Dir(), "2024-06-30.jsonl"), p)
	_, err = j.Append(sample("2317"))
	require.NoError(t, err)

	entries, err := j.ReadDay(now)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	e := entries[0]
	assert.Equal(t, "2330", e.Symbol)
	assert.Equal(t, "BuyHold", e.Action)
	assert.Equal(t, 4, e.Score)
	assert.Equal(t, 9, e.Solvency)
	require.NotNil(t, e.FairValue)
	assert.Equal(t, 100.0, *e.FairValue)
	assert.Equal(t, []string{"margin_balance"}, e.Unavailable)
	assert.Equal(t, "2024-06-30T14:00:00Z", e.Time)
	assert.Equal(t, "2317", entries[1].Symbol)
}

func TestReadDayWithoutFile(t *testing.T) {
	entries, err := newJournal(t).ReadDay(now.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadDaySkipsMalformedLines(t *testing.T) {
	j := newJournal(t)
	_, err := j.Append(sample("2330"))
	require.NoError(t, err)
	f, err := os.OpenFile(j.dailyFilepath(now), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, _ = f.WriteString("not json\n")
	require.NoError(t, f.Close())

	entries, err := j.ReadDay(now)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCompressOlder(t *testing.T) {
	j := newJournal(t)
	old := filepath.Join(j.Dir(), "2024-05-01.jsonl")
	fresh := filepath.Join(j.Dir(), "2024-06-29.jsonl")
	require.NoError(t, os.WriteFile(old, []byte(`{"symbol":"2330"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte(`{"symbol":"2317"}`+"\n"), 0o644))
	oldTime := now.AddDate(0, 0, -60)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))
	require.NoError(t, os.Chtimes(fresh, now, now))

	n, err := j.CompressOlder(30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)

	f, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "2330"))
}

func TestCompressOlderDisabled(t *testing.T) {
	n, err := newJournal(t).CompressOlder(0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompressOlderMissingDir(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "absent"))
	n, err := j.CompressOlder(7)
	require.NoError(t, err)
	assert.Zero(t, n)
}
