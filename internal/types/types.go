package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementKind identifies one of the three financial statements.
type StatementKind string

const (
	BalanceSheet    StatementKind = "balance_sheet"
	IncomeStatement StatementKind = "income_statement"
	CashFlow        StatementKind = "cash_flow"
)

// StatementKinds lists every statement in a fixed order.
var StatementKinds = []StatementKind{BalanceSheet, IncomeStatement, CashFlow}

// RawStatementRecord is one long-format line item as delivered by a provider.
// Several records share a date; the field vocabulary differs between vintages.
type RawStatementRecord struct {
	Date  time.Time       `json:"date"`
	Field string          `json:"field"`
	Value decimal.Decimal `json:"value"`
}

type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// MarketSnapshot is the point-in-time quote data. Zero means unknown.
type MarketSnapshot struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	MarketCap         float64 `json:"market_cap"`
	Sector            string  `json:"sector"`
	IndustryCode      string  `json:"industry_code,omitempty"`
	TrailingPE        float64 `json:"trailing_pe"`
	PriceToBook       float64 `json:"price_to_book"`
	BookValuePerShare float64 `json:"book_value_per_share,omitempty"`
	SharesOutstanding float64 `json:"shares_outstanding,omitempty"`
	DividendYieldPct  float64 `json:"dividend_yield_pct"`
	AverageVolume     float64 `json:"average_volume"`
	Currency          string  `json:"currency,omitempty"`
}

// RevenuePoint is one monthly revenue observation.
type RevenuePoint struct {
	Date    time.Time `json:"date"`
	Revenue float64   `json:"revenue"`
}

// FlowRecord is one net buy/sell line for a single investor-class label on a date.
type FlowRecord struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
	Buy   float64   `json:"buy"`
	Sell  float64   `json:"sell"`
}

// Net returns buy minus sell.
func (f FlowRecord) Net() float64 { return f.Buy - f.Sell }

// MarginRecord is one margin (leveraged purchase) balance observation.
type MarginRecord struct {
	Date    time.Time `json:"date"`
	Balance float64   `json:"balance"`
}
