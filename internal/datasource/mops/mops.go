// Package mops scrapes monthly revenue from the Market Observation Post
// System summary pages. It is the fallback when the fundamentals feed has
// no revenue series yet.
package mops

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"equity-advisor/internal/api"
	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/logger"
	"equity-advisor/internal/types"
)

const DefaultBaseURL = "https://mops.twse.com.tw"

// Markets are the board codes in the page path: listed, then OTC.
var Markets = []string{"sii", "otc"}

type Scraper struct {
	baseURL string
	timeout time.Duration
	// maxMonths bounds the number of pages fetched per call.
	maxMonths int
	now       func() time.Time
}

var _ interfaces.RevenueSource = (*Scraper)(nil)

type Option func(*Scraper)

func WithTimeout(d time.Duration) Option { return func(s *Scraper) { s.timeout = d } }

func WithMaxMonths(n int) Option { return func(s *Scraper) { s.maxMonths = n } }

func WithClock(now func() time.Time) Option { return func(s *Scraper) { s.now = now } }

func New(baseURL string, opts ...Option) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	s := &Scraper{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   20 * time.Second,
		maxMonths: 15,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pageURL is the per-month summary page. Years are in the ROC calendar.
func (s *Scraper) pageURL(market string, month time.Time) string {
	return fmt.Sprintf("%s/nas/t21/%s/t21sc03_%d_%d_0.html", s.baseURL, market, month.Year()-1911, int(month.Month()))
}

// MonthlyRevenue walks month pages from the latest completed month back to
// start. Months whose page is not published are skipped.
func (s *Scraper) MonthlyRevenue(ctx context.Context, symbol string, start time.Time) ([]types.RevenuePoint, error) {
	symbol = strings.TrimSpace(symbol)
	now := s.now().UTC()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	markets := Markets
	var out []types.RevenuePoint
	for i := 0; i < s.maxMonths && !month.Before(firstOfMonth(start)); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, market := range markets {
			rev, found, err := s.scrapeMonth(ctx, market, month, symbol)
			if err != nil {
				return nil, err
			}
			if found {
				out = append(out, types.RevenuePoint{Date: month, Revenue: rev})
				// the company stays on the same board
				markets = []string{market}
				break
			}
		}
		month = month.AddDate(0, -1, 0)
	}
	logger.Debug(ctx, "MOPS revenue scraped", "symbol", symbol, "months", len(out))

	// ascending, like every other series
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out, nil
}

func firstOfMonth(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (s *Scraper) scrapeMonth(ctx context.Context, market string, month time.Time, symbol string) (float64, bool, error) {
	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)
	c.DetectCharset = true

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", api.BrowserHeaders()["User-Agent"])
	})

	var (
		revenue float64
		found   bool
		status  int
	)
	c.OnHTML("tr", func(e *colly.HTMLElement) {
		if found {
			return
		}
		revenue, found = revenueCell(e.DOM, symbol)
	})
	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
	})

	url := s.pageURL(market, month)
	if err := c.Visit(url); err != nil {
		if status == http.StatusNotFound {
			return 0, false, nil
		}
		if status != 0 {
			return 0, false, fmt.Errorf("mops %s: %w", url, &api.StatusError{StatusCode: status, Body: err.Error()})
		}
		return 0, false, fmt.Errorf("mops %s: %w", url, err)
	}
	c.Wait()
	return revenue, found, nil
}

// revenueCell reads the current-month revenue column of a company row.
// Figures are published in thousands.
func revenueCell(row *goquery.Selection, symbol string) (float64, bool) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < 3 || strings.TrimSpace(cells.Eq(0).Text()) != symbol {
		return 0, false
	}
	text := strings.ReplaceAll(strings.TrimSpace(cells.Eq(2).Text()), ",", "")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v * 1000, true
}
