package acquire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-advisor/internal/api"
)

var fixedNow = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestAcquirer(opts ...Option) (*Acquirer, *recorder) {
	rec := &recorder{}
	base := []Option{WithSleeper(rec.sleep), WithClock(func() time.Time { return fixedNow })}
	return New(append(base, opts...)...), rec
}

var key = Key{Symbol: "2330", Dataset: "balance_sheet"}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	a, rec := newTestAcquirer()
	calls := 0
	res := Fetch(context.Background(), a, key, Cold(), func(ctx context.Context, start time.Time) ([]int, error) {
		calls++
		assert.Equal(t, fixedNow.Add(-5*365*day), start)
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return []int{1, 2}, nil
	})

	assert.Equal(t, Success, res.State)
	assert.Equal(t, []int{1, 2}, res.Rows)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 5*365*day, res.Window)
	assert.Equal(t, []time.Duration{2 * time.Second, 5 * time.Second}, rec.waits)
	assert.Equal(t, []State{Idle, Requesting, RetryWait, Requesting, RetryWait, Requesting, Success}, res.Trail)
	assert.NoError(t, res.Err)
}

func TestFetchHonoursRateLimitDelay(t *testing.T) {
	a, rec := newTestAcquirer()
	calls := 0
	res := Fetch(context.Background(), a, key, Cold(), func(ctx context.Context, _ time.Time) ([]int, error) {
		calls++
		switch calls {
		case 1:
			return nil, &api.RateLimitError{StatusError: &api.StatusError{StatusCode: 429}, RetryAfter: 30 * time.Second}
		case 2:
			return nil, &api.RateLimitError{StatusError: &api.StatusError{StatusCode: 402}}
		}
		return []int{7}, nil
	})

	require.Equal(t, Success, res.State)
	// the server's delay wins when longer, the policy floor otherwise
	assert.Equal(t, []time.Duration{30 * time.Second, 10 * time.Second}, rec.waits)
}

func TestPermanentErrorShrinksWindow(t *testing.T) {
	a, rec := newTestAcquirer()
	var starts []time.Time
	res := Fetch(context.Background(), a, key, Cold(), func(ctx context.Context, start time.Time) ([]int, error) {
		starts = append(starts, start)
		if len(starts) < 3 {
			return nil, &api.StatusError{StatusCode: 400, Body: "range too large"}
		}
		return []int{1}, nil
	})

	assert.Equal(t, Success, res.State)
	assert.Equal(t, 365*day, res.Window)
	assert.Equal(t, 3, res.Attempts)
	assert.Empty(t, rec.waits)
	assert.Equal(t, []time.Time{
		fixedNow.Add(-5 * 365 * day),
		fixedNow.Add(-3 * 365 * day),
		fixedNow.Add(-365 * day),
	}, starts)
	assert.Equal(t, []State{Idle, Requesting, Degraded, Requesting, Degraded, Requesting, Success}, res.Trail)
}

func TestAllWindowsExhausted(t *testing.T) {
	a, rec := newTestAcquirer()
	res := Fetch(context.Background(), a, Key{Symbol: "9999", Dataset: "flows"}, Hot(), func(ctx context.Context, _ time.Time) ([]int, error) {
		return nil, &api.StatusError{StatusCode: 503}
	})

	assert.True(t, res.Unavailable())
	assert.Nil(t, res.Rows)
	assert.Equal(t, 9, res.Attempts)
	// two waits per window, none after a window's last attempt
	assert.Len(t, rec.waits, 6)
	assert.Equal(t, Exhausted, res.Trail[len(res.Trail)-1])
	assert.Error(t, res.Err)

	s := res.Summary()
	assert.Equal(t, "flows", s.Dataset)
	assert.Equal(t, Exhausted, s.State)
	assert.Equal(t, 0, s.Rows)
	assert.Contains(t, s.Error, "503")
}

func TestFetchUsesCache(t *testing.T) {
	a, _ := newTestAcquirer(WithCache(time.Hour))
	calls := 0
	fetch := func(ctx context.Context, _ time.Time) ([]int, error) {
		calls++
		return []int{42}, nil
	}

	first := Fetch(context.Background(), a, key, Price(), fetch)
	second := Fetch(context.Background(), a, key, Price(), fetch)

	assert.Equal(t, 1, calls)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, []int{42}, second.Rows)
	assert.Equal(t, 0, second.Attempts)

	other := Fetch(context.Background(), a, Key{Symbol: "2317", Dataset: key.Dataset}, Price(), fetch)
	assert.False(t, other.Cached)
	assert.Equal(t, 2, calls)
}

func TestFetchStopsOnCancel(t *testing.T) {
	a, _ := newTestAcquirer()
	ctx, cancel := context.WithCancel(context.Background())
	res := Fetch(ctx, a, key, Cold(), func(ctx context.Context, _ time.Time) ([]int, error) {
		cancel()
		return nil, ctx.Err()
	})

	assert.True(t, res.Unavailable())
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestFetchOne(t *testing.T) {
	a, _ := newTestAcquirer()
	res := FetchOne(context.Background(), a, Key{Symbol: "2330", Dataset: "snapshot"}, Snapshot(), func(ctx context.Context) (string, error) {
		return "quote", nil
	})
	v, ok := res.First()
	require.True(t, ok)
	assert.Equal(t, "quote", v)
	assert.Equal(t, time.Duration(0), res.Window)

	failed := FetchOne(context.Background(), a, Key{Symbol: "2330", Dataset: "snapshot"}, Snapshot(), func(ctx context.Context) (string, error) {
		return "", api.Permanent(errors.New("unknown symbol"))
	})
	_, ok = failed.First()
	assert.False(t, ok)
	assert.Equal(t, 1, failed.Attempts)
}

func TestPolicyHelpers(t *testing.T) {
	p := Policy{Backoff: []time.Duration{time.Second, 2 * time.Second}}
	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(5))
	assert.Equal(t, 1, p.attempts())
	assert.Equal(t, []time.Duration{0}, p.windows())
	assert.Equal(t, []time.Duration{30 * day, 7 * day}, DaysToWindows([]int{30, 7}))
	assert.Equal(t, 24*time.Hour, Cold().cacheTTL())
	assert.Equal(t, time.Hour, Price().cacheTTL())
	assert.Equal(t, time.Duration(0), p.cacheTTL())
}
