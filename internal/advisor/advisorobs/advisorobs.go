package advisorobs

import (
	"context"
	"time"

	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/logger"
	"equity-advisor/internal/report"
	"equity-advisor/internal/trace"
)

type observableAdvisor struct {
	advisor interfaces.Advisor
}

var _ interfaces.Advisor = (*observableAdvisor)(nil)

func Wrap(a interfaces.Advisor) interfaces.Advisor {
	return &observableAdvisor{
		advisor: a,
	}
}

func (oa *observableAdvisor) Analyze(ctx context.Context, symbol string) (*report.Report, error) {
	ctx, span := trace.StartSpan(ctx, "advisor.Analyze")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting advisory run",
		"symbol", symbol,
	)

	r, err := oa.advisor.Analyze(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Advisory run failed", err,
			"symbol", symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Advisory run completed",
		"symbol", r.Symbol,
		"run_id", r.RunID,
		"action", r.Result.Action,
		"score", r.Result.TotalScore,
		"low_confidence", r.Result.LowConfidence,
		"unavailable", r.Unavailable(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return r, nil
}
