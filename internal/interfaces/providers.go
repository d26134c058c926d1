package interfaces

import (
	"context"
	"time"

	"equity-advisor/internal/types"
)

// FundamentalsProvider serves long-format statement records and the monthly
// revenue series. An empty batch is a valid answer, not an error.
type FundamentalsProvider interface {
	Statements(ctx context.Context, symbol string, kind types.StatementKind, start time.Time) ([]types.RawStatementRecord, error)
	MonthlyRevenue(ctx context.Context, symbol string, start time.Time) ([]types.RevenuePoint, error)
}

// PriceProvider serves daily candles and the current market snapshot.
type PriceProvider interface {
	History(ctx context.Context, symbol string, start time.Time) ([]types.Candle, error)
	Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error)
}

// FlowProvider serves institutional net buying and margin balances.
type FlowProvider interface {
	InstitutionalFlows(ctx context.Context, symbol string, start time.Time) ([]types.FlowRecord, error)
	MarginBalance(ctx context.Context, symbol string, start time.Time) ([]types.MarginRecord, error)
}

// RevenueSource is a secondary monthly revenue feed consulted when the
// fundamentals provider returns none.
type RevenueSource interface {
	MonthlyRevenue(ctx context.Context, symbol string, start time.Time) ([]types.RevenuePoint, error)
}
