package exportobs

import (
	"context"
	"time"

	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/logger"
	"equity-advisor/internal/report"
	"equity-advisor/internal/trace"
)

type observableExporter struct {
	exporter interfaces.Exporter
}

var _ interfaces.Exporter = (*observableExporter)(nil)

func Wrap(e interfaces.Exporter) interfaces.Exporter {
	return &observableExporter{
		exporter: e,
	}
}

func (oe *observableExporter) Export(ctx context.Context, r *report.Report) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "export.Export")
	defer span.End()

	start := time.Now()

	paths, err := oe.exporter.Export(ctx, r)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Report export failed", err,
			"symbol", r.Symbol,
			"written", len(paths),
		)
		return paths, err
	}

	logger.InfoSkip(ctx, 1, "Report exported",
		"symbol", r.Symbol,
		"files", len(paths),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return paths, nil
}
