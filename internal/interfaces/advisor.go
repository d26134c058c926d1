package interfaces

import (
	"context"

	"equity-advisor/internal/report"
)

type Advisor interface {
	Analyze(ctx context.Context, symbol string) (*report.Report, error)
}

// Exporter writes a report somewhere a presentation layer can read it and
// returns the paths written.
type Exporter interface {
	Export(ctx context.Context, r *report.Report) ([]string, error)
}
