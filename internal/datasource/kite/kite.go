// Package kite serves prices from Zerodha Kite Connect. It is the price
// source for NSE/BSE listings; fundamentals still come from the
// fundamentals provider.
package kite

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"equity-advisor/internal/api"
	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/types"
)

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string
	// BaseURI overrides the API root, for tests.
	BaseURI string
}

type Provider struct {
	kc       *kiteconnect.Client
	exchange string
	tokens   *instrumentMapper
	now      func() time.Time
}

var _ interfaces.PriceProvider = (*Provider)(nil)

func New(p Params) (*Provider, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("kite: missing API key/access token")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	if p.BaseURI != "" {
		kc.SetBaseURI(p.BaseURI)
	}
	exchange := p.Exchange
	if exchange == "" {
		exchange = "NSE"
	}
	return &Provider{kc: kc, exchange: exchange, tokens: newInstrumentMapper(), now: time.Now}, nil
}

func (p *Provider) instrument(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(symbol, ":") {
		return symbol
	}
	return p.exchange + ":" + symbol
}

// convert maps client errors onto the shared HTTP error types so the
// acquisition layer can classify them.
func convert(err error) error {
	var ke kiteconnect.Error
	if !errors.As(err, &ke) {
		return err
	}
	se := &api.StatusError{StatusCode: ke.Code, Body: ke.Message}
	if ke.Code == http.StatusTooManyRequests {
		return &api.RateLimitError{StatusError: se}
	}
	return se
}

func (p *Provider) quote(ctx context.Context, symbol string) (string, kiteQuote, error) {
	if err := ctx.Err(); err != nil {
		return "", kiteQuote{}, err
	}
	inst := p.instrument(symbol)
	quotes, err := p.kc.GetQuote(inst)
	if err != nil {
		return inst, kiteQuote{}, fmt.Errorf("kite quote %s: %w", inst, convert(err))
	}
	q, ok := quotes[inst]
	if !ok {
		return inst, kiteQuote{}, api.Permanent(fmt.Errorf("kite quote %s: instrument not found", inst))
	}
	p.tokens.addMapping(inst, q.InstrumentToken)
	return inst, kiteQuote{token: q.InstrumentToken, last: q.LastPrice}, nil
}

type kiteQuote struct {
	token int
	last  float64
}

// History returns daily candles from start to now.
func (p *Provider) History(ctx context.Context, symbol string, start time.Time) ([]types.Candle, error) {
	inst := p.instrument(symbol)
	token, ok := p.tokens.getToken(inst)
	if !ok {
		_, q, err := p.quote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		token = q.token
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	to := p.now()
	if start.IsZero() {
		start = to.AddDate(-2, 0, 0)
	}
	data, err := p.kc.GetHistoricalData(token, "day", start, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("kite history %s: %w", inst, convert(err))
	}
	out := make([]types.Candle, 0, len(data))
	for _, d := range data {
		out = append(out, types.Candle{
			Ts:    d.Date.Unix(),
			Open:  d.Open,
			High:  d.High,
			Low:   d.Low,
			Close: d.Close,
			Vol:   float64(d.Volume),
		})
	}
	return out, nil
}

// Snapshot carries only the last price. Average volume is left to the
// caller, which derives it from History.
func (p *Provider) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	inst, q, err := p.quote(ctx, symbol)
	if err != nil {
		return types.MarketSnapshot{}, err
	}
	return types.MarketSnapshot{
		Symbol:   inst,
		Price:    q.last,
		Currency: "INR",
	}, nil
}
