package advisorobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-advisor/internal/report"
	"equity-advisor/internal/signal"
)

type stubAdvisor struct {
	r   *report.Report
	err error
}

func (s stubAdvisor) Analyze(context.Context, string) (*report.Report, error) {
	return s.r, s.err
}

func TestWrapPassesThrough(t *testing.T) {
	want := &report.Report{Symbol: "2330", Result: signal.Result{Action: signal.Watch}}
	got, err := Wrap(stubAdvisor{r: want}).Analyze(context.Background(), "2330")
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestWrapReturnsError(t *testing.T) {
	boom := errors.New("boom")
	got, err := Wrap(stubAdvisor{err: boom}).Analyze(context.Background(), "2330")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}
