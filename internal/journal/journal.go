// Package journal appends one JSON line per advisory run to a per-day file
// and gzips files past the retention period.
package journal

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"equity-advisor/internal/report"
)

const ext = ".jsonl"

type Entry struct {
	Time          string   `json:"time"`
	RunID         string   `json:"run_id"`
	Symbol        string   `json:"symbol"`
	Action        string   `json:"action"`
	Score         int      `json:"score"`
	LowConfidence bool     `json:"low_confidence,omitempty"`
	Price         float64  `json:"price"`
	FairValue     *float64 `json:"fair_value,omitempty"`
	Solvency      int      `json:"solvency"`
	Reasons       []string `json:"reasons"`
	Unavailable   []string `json:"unavailable,omitempty"`
}

// EntryFor flattens a report into its journal line.
func EntryFor(r *report.Report) Entry {
	e := Entry{
		RunID:         r.RunID,
		Symbol:        r.Symbol,
		Action:        string(r.Result.Action),
		Score:         r.Result.TotalScore,
		LowConfidence: r.Result.LowConfidence,
		Price:         r.Snapshot.Price,
		Solvency:      r.Bundle.Solvency.Score,
		Reasons:       r.Result.Reasons,
		Unavailable:   r.Unavailable(),
	}
	if fv := r.Bundle.Valuation.FairValue; fv.Ok() {
		v := fv.Value
		e.FairValue = &v
	}
	return e
}

type Journal struct {
	mu  sync.Mutex
	dir string
	loc *time.Location
	now func() time.Time
}

type Option func(*Journal)

// WithLocation sets the zone that decides which day file a run lands in.
func WithLocation(loc *time.Location) Option {
	return func(j *Journal) { j.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

func New(dir string, opts ...Option) *Journal {
	j := &Journal{dir: dir, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) dailyFilepath(t time.Time) string {
	return filepath.Join(j.dir, t.In(j.loc).Format("2006-01-02")+ext)
}

// Append writes one line for r and returns the file it went to.
func (j *Journal) Append(r *report.Report) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now().In(j.loc)
	e := EntryFor(r)
	e.Time = now.Format(time.RFC3339)

	p := j.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintln(f, string(b)); err != nil {
		return "", err
	}
	return p, nil
}

// ReadDay returns the entries written on the day of t. A day without runs
// has no file and yields no entries. Malformed lines are skipped.
func (j *Journal) ReadDay(t time.Time) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.dailyFilepath(t))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// CompressOlder gzips day files last modified more than retentionDays ago
// and removes the originals. It returns the number of files compressed.
func (j *Journal) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		// an earlier run compressed it but could not remove the original
		if _, err := os.Stat(p + ".gz"); err == nil {
			return os.Remove(p)
		}
		if err := gzipFile(p); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		compressed++
		return nil
	})
	return compressed, err
}

func gzipFile(p string) error {
	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	gz := p + ".gz"
	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	closeErr := errors.Join(gw.Close(), out.Close())
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(gz)
		return err
	}
	in.Close()
	return os.Remove(p)
}
