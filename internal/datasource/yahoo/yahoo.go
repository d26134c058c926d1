// Package yahoo reads daily price history and the market snapshot from the
// Yahoo Finance chart and quoteSummary endpoints.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"equity-advisor/internal/api"
	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/logger"
	"equity-advisor/internal/types"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// ErrNoData is returned when a ticker resolves but carries no rows.
var ErrNoData = errors.New("yahoo: no data for ticker")

type Provider struct {
	http     *api.Client
	suffix   string
	fallback string

	mu       sync.Mutex
	resolved map[string]string
}

var _ interfaces.PriceProvider = (*Provider)(nil)

// New builds a provider. Bare symbols get suffix appended; when the listing
// is not found under suffix, fallback is tried (".TW" then ".TWO" for the
// two Taiwanese boards).
func New(baseURL, suffix, fallback string, opts ...api.ClientOption) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	all := append([]api.ClientOption{api.WithBaseURL(strings.TrimRight(baseURL, "/")), api.WithTimeout(20 * time.Second)}, opts...)
	return &Provider{
		http:     api.NewClient(all...),
		suffix:   suffix,
		fallback: fallback,
		resolved: make(map[string]string),
	}
}

// candidates lists the tickers to try for symbol, the resolved one first.
func (p *Provider) candidates(symbol string) []string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	p.mu.Lock()
	known, ok := p.resolved[symbol]
	p.mu.Unlock()
	if ok {
		return []string{known}
	}
	if strings.Contains(symbol, ".") || p.suffix == "" {
		return []string{symbol}
	}
	out := []string{symbol + p.suffix}
	if p.fallback != "" && p.fallback != p.suffix {
		out = append(out, symbol+p.fallback)
	}
	return out
}

func (p *Provider) remember(symbol, ticker string) {
	p.mu.Lock()
	p.resolved[strings.ToUpper(strings.TrimSpace(symbol))] = ticker
	p.mu.Unlock()
}

// notListed reports whether err means the ticker does not exist, so the
// next suffix is worth trying.
func notListed(err error) bool {
	if errors.Is(err, ErrNoData) {
		return true
	}
	var se *api.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// each calls fn for every candidate ticker until one is listed.
func each[T any](ctx context.Context, p *Provider, symbol string, fn func(ticker string) (T, error)) (T, error) {
	var (
		zero T
		last error
	)
	for i, ticker := range p.candidates(symbol) {
		v, err := fn(ticker)
		if err == nil {
			p.remember(symbol, ticker)
			return v, nil
		}
		last = err
		if !notListed(err) {
			return zero, err
		}
		logger.Debug(ctx, "Ticker not listed, trying next suffix", "symbol", symbol, "ticker", ticker, "candidate", i)
	}
	// every board said no: retrying later will not help
	return zero, api.Permanent(last)
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns daily candles from start to now in ascending order.
// Sessions with a missing close are dropped.
func (p *Provider) History(ctx context.Context, symbol string, start time.Time) ([]types.Candle, error) {
	return each(ctx, p, symbol, func(ticker string) ([]types.Candle, error) {
		params := url.Values{
			"interval": {"1d"},
			"period1":  {strconv.FormatInt(start.Unix(), 10)},
			"period2":  {strconv.FormatInt(time.Now().Unix(), 10)},
		}
		if start.IsZero() {
			params.Del("period1")
			params.Del("period2")
			params.Set("range", "2y")
		}
		var resp chartResponse
		if err := p.http.GetJSON(ctx, "/v8/finance/chart/"+url.PathEscape(ticker), params, &resp, api.YahooFinanceHeaders()); err != nil {
			return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
		}
		if e := resp.Chart.Error; e != nil {
			return nil, fmt.Errorf("yahoo chart %s: %s: %w", ticker, e.Description, ErrNoData)
		}
		if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
			return nil, fmt.Errorf("yahoo chart %s: %w", ticker, ErrNoData)
		}
		res := resp.Chart.Result[0]
		q := res.Indicators.Quote[0]
		out := make([]types.Candle, 0, len(res.Timestamp))
		for i, ts := range res.Timestamp {
			c := at(q.Close, i)
			if c == nil {
				continue
			}
			out = append(out, types.Candle{
				Ts:    ts,
				Open:  deref(at(q.Open, i)),
				High:  deref(at(q.High, i)),
				Low:   deref(at(q.Low, i)),
				Close: *c,
				Vol:   deref(at(q.Volume, i)),
			})
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("yahoo chart %s: %w", ticker, ErrNoData)
		}
		return out, nil
	})
}

func at(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

type raw struct {
	Raw float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				RegularMarketPrice raw    `json:"regularMarketPrice"`
				MarketCap          raw    `json:"marketCap"`
				Currency           string `json:"currency"`
			} `json:"price"`
			SummaryDetail struct {
				TrailingPE    raw `json:"trailingPE"`
				AverageVolume raw `json:"averageVolume"`
				DividendYield raw `json:"dividendYield"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				PriceToBook       raw `json:"priceToBook"`
				BookValue         raw `json:"bookValue"`
				SharesOutstanding raw `json:"sharesOutstanding"`
			} `json:"defaultKeyStatistics"`
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Snapshot reads the quote, key statistics and profile in one call.
// Dividend yield is converted to percent.
func (p *Provider) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	return each(ctx, p, symbol, func(ticker string) (types.MarketSnapshot, error) {
		params := url.Values{"modules": {"price,summaryDetail,defaultKeyStatistics,assetProfile"}}
		var resp quoteSummaryResponse
		if err := p.http.GetJSON(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(ticker), params, &resp, api.YahooFinanceHeaders()); err != nil {
			return types.MarketSnapshot{}, fmt.Errorf("yahoo quoteSummary %s: %w", ticker, err)
		}
		if e := resp.QuoteSummary.Error; e != nil || len(resp.QuoteSummary.Result) == 0 {
			return types.MarketSnapshot{}, fmt.Errorf("yahoo quoteSummary %s: %w", ticker, ErrNoData)
		}
		r := resp.QuoteSummary.Result[0]
		return types.MarketSnapshot{
			Symbol:            ticker,
			Price:             r.Price.RegularMarketPrice.Raw,
			MarketCap:         r.Price.MarketCap.Raw,
			Currency:          r.Price.Currency,
			Sector:            r.AssetProfile.Sector,
			TrailingPE:        r.SummaryDetail.TrailingPE.Raw,
			AverageVolume:     r.SummaryDetail.AverageVolume.Raw,
			DividendYieldPct:  r.SummaryDetail.DividendYield.Raw * 100,
			PriceToBook:       r.DefaultKeyStatistics.PriceToBook.Raw,
			BookValuePerShare: r.DefaultKeyStatistics.BookValue.Raw,
			SharesOutstanding: r.DefaultKeyStatistics.SharesOutstanding.Raw,
		}, nil
	})
}
