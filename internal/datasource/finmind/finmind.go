// Package finmind reads Taiwan-listed company statements, monthly revenue and
// institutional flows from the FinMind v4 data API.
package finmind

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"equity-advisor/internal/api"
	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/types"
)

const DefaultBaseURL = "https://api.finmindtrade.com/api/v4"

// Dataset names as published by the API.
const (
	DatasetBalanceSheet  = "TaiwanStockBalanceSheet"
	DatasetIncome        = "TaiwanStockFinancialStatements"
	DatasetCashFlow      = "TaiwanStockCashFlowsStatement"
	DatasetMonthRevenue  = "TaiwanStockMonthRevenue"
	DatasetInstitutional = "TaiwanStockInstitutionalInvestorsBuySell"
	DatasetMargin        = "TaiwanStockMarginPurchaseShortSale"
)

var statementDatasets = map[types.StatementKind]string{
	types.BalanceSheet:    DatasetBalanceSheet,
	types.IncomeStatement: DatasetIncome,
	types.CashFlow:        DatasetCashFlow,
}

type Client struct {
	http  *api.Client
	token string
}

var (
	_ interfaces.FundamentalsProvider = (*Client)(nil)
	_ interfaces.FlowProvider         = (*Client)(nil)
)

// New builds a client. An empty token means free-tier access, which the
// caller is expected to throttle.
func New(baseURL, token string, opts ...api.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	all := append([]api.ClientOption{api.WithBaseURL(strings.TrimRight(baseURL, "/")), api.WithTimeout(30 * time.Second)}, opts...)
	return &Client{http: api.NewClient(all...), token: strings.TrimSpace(token)}
}

// Free reports whether requests go out without a token.
func (c *Client) Free() bool { return c.token == "" }

type envelope[T any] struct {
	Msg    string `json:"msg"`
	Status int    `json:"status"`
	Data   []T    `json:"data"`
}

// get runs one dataset query. The API reports quota exhaustion either as an
// HTTP 402 or inside a 200 body; both come back as *api.RateLimitError.
func get[T any](ctx context.Context, c *Client, dataset, symbol string, start time.Time) ([]T, error) {
	params := url.Values{
		"dataset": {dataset},
		"data_id": {symbol},
	}
	if !start.IsZero() {
		params.Set("start_date", start.Format("2006-01-02"))
	}
	var headers []map[string]string
	if c.token != "" {
		headers = append(headers, map[string]string{"Authorization": "Bearer " + c.token})
	}

	var env envelope[T]
	if err := c.http.GetJSON(ctx, "/data", params, &env, headers...); err != nil {
		return nil, fmt.Errorf("finmind %s %s: %w", dataset, symbol, err)
	}
	if env.Status != 0 && env.Status != 200 {
		se := &api.StatusError{StatusCode: env.Status, Body: env.Msg}
		if env.Status == 402 || strings.Contains(strings.ToLower(env.Msg), "upper limit") {
			return nil, fmt.Errorf("finmind %s %s: %w", dataset, symbol, &api.RateLimitError{StatusError: se})
		}
		return nil, fmt.Errorf("finmind %s %s: %w", dataset, symbol, se)
	}
	return env.Data, nil
}

type statementRow struct {
	Date   string          `json:"date"`
	Type   string          `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Origin string          `json:"origin_name"`
}

func (c *Client) Statements(ctx context.Context, symbol string, kind types.StatementKind, start time.Time) ([]types.RawStatementRecord, error) {
	dataset, ok := statementDatasets[kind]
	if !ok {
		return nil, api.Permanent(fmt.Errorf("finmind: unknown statement kind %q", kind))
	}
	rows, err := get[statementRow](ctx, c, dataset, symbol, start)
	if err != nil {
		return nil, err
	}
	out := make([]types.RawStatementRecord, 0, len(rows))
	for _, r := range rows {
		d, err := parseDate(r.Date)
		if err != nil || r.Type == "" {
			continue
		}
		out = append(out, types.RawStatementRecord{Date: d, Field: r.Type, Value: r.Value})
	}
	return out, nil
}

type revenueRow struct {
	Date         string          `json:"date"`
	Revenue      decimal.Decimal `json:"revenue"`
	RevenueMonth int             `json:"revenue_month"`
	RevenueYear  int             `json:"revenue_year"`
}

// MonthlyRevenue dates each point on the first day of the month the revenue
// belongs to, not the publication date.
func (c *Client) MonthlyRevenue(ctx context.Context, symbol string, start time.Time) ([]types.RevenuePoint, error) {
	rows, err := get[revenueRow](ctx, c, DatasetMonthRevenue, symbol, start)
	if err != nil {
		return nil, err
	}
	out := make([]types.RevenuePoint, 0, len(rows))
	for _, r := range rows {
		var d time.Time
		if r.RevenueYear > 0 && r.RevenueMonth >= 1 && r.RevenueMonth <= 12 {
			d = time.Date(r.RevenueYear, time.Month(r.RevenueMonth), 1, 0, 0, 0, 0, time.UTC)
		} else if d, err = parseDate(r.Date); err != nil {
			continue
		}
		out = append(out, types.RevenuePoint{Date: d, Revenue: r.Revenue.InexactFloat64()})
	}
	return out, nil
}

type institutionalRow struct {
	Date string          `json:"date"`
	Name string          `json:"name"`
	Buy  decimal.Decimal `json:"buy"`
	Sell decimal.Decimal `json:"sell"`
}

func (c *Client) InstitutionalFlows(ctx context.Context, symbol string, start time.Time) ([]types.FlowRecord, error) {
	rows, err := get[institutionalRow](ctx, c, DatasetInstitutional, symbol, start)
	if err != nil {
		return nil, err
	}
	out := make([]types.FlowRecord, 0, len(rows))
	for _, r := range rows {
		d, err := parseDate(r.Date)
		if err != nil {
			continue
		}
		out = append(out, types.FlowRecord{
			Date:  d,
			Label: r.Name,
			Buy:   r.Buy.InexactFloat64(),
			Sell:  r.Sell.InexactFloat64(),
		})
	}
	return out, nil
}

type marginRow struct {
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"MarginPurchaseTodayBalance"`
}

func (c *Client) MarginBalance(ctx context.Context, symbol string, start time.Time) ([]types.MarginRecord, error) {
	rows, err := get[marginRow](ctx, c, DatasetMargin, symbol, start)
	if err != nil {
		return nil, err
	}
	out := make([]types.MarginRecord, 0, len(rows))
	for _, r := range rows {
		d, err := parseDate(r.Date)
		if err != nil {
			continue
		}
		out = append(out, types.MarginRecord{Date: d, Balance: r.Balance.InexactFloat64()})
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}
