package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"equity-advisor/internal/api"
	"equity-advisor/internal/logger"
)

type State string

const (
	Idle       State = "idle"
	Requesting State = "requesting"
	Success    State = "success"
	RetryWait  State = "retry_wait"
	Degraded   State = "degraded"
	Exhausted  State = "exhausted"
)

// Key identifies a dataset for one security.
type Key struct {
	Symbol  string
	Dataset string
}

func (k Key) cacheKey(window time.Duration) string {
	return fmt.Sprintf("%s|%s|%d", k.Symbol, k.Dataset, int64(window/day))
}

// Result is the outcome of one dataset acquisition. Exhausted results carry
// no rows; Err is the last failure seen, kept for diagnostics only.
type Result[T any] struct {
	Dataset  string
	Rows     []T
	State    State
	Window   time.Duration
	Attempts int
	Trail    []State
	Cached   bool
	Err      error
}

// Unavailable reports whether every window was exhausted.
func (r Result[T]) Unavailable() bool { return r.State == Exhausted }

func (r *Result[T]) enter(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

// Summary is the type-erased view of a Result for reports.
type Summary struct {
	Dataset    string  `json:"dataset"`
	State      State   `json:"state"`
	WindowDays int     `json:"window_days"`
	Attempts   int     `json:"attempts"`
	Rows       int     `json:"rows"`
	Cached     bool    `json:"cached,omitempty"`
	Trail      []State `json:"trail"`
	Error      string  `json:"error,omitempty"`
}

func (r Result[T]) Summary() Summary {
	s := Summary{
		Dataset:    r.Dataset,
		State:      r.State,
		WindowDays: int(r.Window / day),
		Attempts:   r.Attempts,
		Rows:       len(r.Rows),
		Cached:     r.Cached,
		Trail:      r.Trail,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquirer holds the state shared by every fetch: the request spacing
// limiter and the result cache. It is safe for concurrent use.
type Acquirer struct {
	limiter *rate.Limiter
	cache   *cache.Cache
	sleep   Sleeper
	now     func() time.Time
}

type Option func(*Acquirer)

// WithMinInterval spaces every request at least d apart across all
// datasets, as required by unauthenticated free-tier access.
func WithMinInterval(d time.Duration) Option {
	return func(a *Acquirer) {
		if d > 0 {
			a.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithCache keeps successful results for ttl.
func WithCache(ttl time.Duration) Option {
	return func(a *Acquirer) {
		if ttl > 0 {
			a.cache = cache.New(ttl, 2*ttl)
		}
	}
}

func WithSleeper(s Sleeper) Option {
	return func(a *Acquirer) { a.sleep = s }
}

func WithClock(now func() time.Time) Option {
	return func(a *Acquirer) { a.now = now }
}

func New(opts ...Option) *Acquirer {
	a := &Acquirer{sleep: contextSleep, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Acquirer) throttle(ctx context.Context) error {
	if a.limiter == nil {
		return ctx.Err()
	}
	return a.limiter.Wait(ctx)
}

// FetchFunc retrieves rows starting at start. start is zero for datasets
// without a history window.
type FetchFunc[T any] func(ctx context.Context, start time.Time) ([]T, error)

// Fetch runs the state machine for one dataset. It never returns an error:
// a dataset that cannot be fetched comes back Exhausted with no rows.
func Fetch[T any](ctx context.Context, a *Acquirer, key Key, p Policy, fetch FetchFunc[T]) (res Result[T]) {
	res = Result[T]{Dataset: key.Dataset}
	res.enter(Idle)
	defer func() {
		logger.Acquisition(ctx, key.Symbol, key.Dataset, string(res.State), res.Attempts,
			"policy", p.Name,
			"window_days", int(res.Window/day),
			"rows", len(res.Rows),
			"cached", res.Cached)
	}()

	for wi, window := range p.windows() {
		if wi > 0 {
			res.enter(Degraded)
			logger.Warn(ctx, "Shrinking history window",
				"symbol", key.Symbol, "dataset", key.Dataset, "window_days", int(window/day), "error", res.Err)
		}

		ck := key.cacheKey(window)
		if a.cache != nil {
			if v, ok := a.cache.Get(ck); ok {
				if rows, ok := v.([]T); ok {
					res.Rows, res.Window, res.Cached = rows, window, true
					res.enter(Success)
					return res
				}
			}
		}

		var start time.Time
		if window > 0 {
			start = a.now().Add(-window)
		}

		for attempt := 1; attempt <= p.attempts(); attempt++ {
			if err := a.throttle(ctx); err != nil {
				res.Err = err
				return exhaust(res)
			}
			res.enter(Requesting)
			res.Attempts++

			rows, err := fetch(ctx, start)
			if err == nil {
				res.Rows, res.Window, res.Err = rows, window, nil
				res.enter(Success)
				if a.cache != nil {
					a.cache.Set(ck, rows, p.cacheTTL())
				}
				return res
			}
			res.Err = err
			if ctx.Err() != nil {
				return exhaust(res)
			}
			if !api.Transient(err) || attempt == p.attempts() {
				break
			}

			delay := p.backoff(attempt)
			if ra, ok := api.RetryAfter(err); ok {
				delay = max(p.RateLimitDelay, ra)
			}
			res.enter(RetryWait)
			logger.Debug(ctx, "Dataset request failed, waiting to retry",
				"symbol", key.Symbol, "dataset", key.Dataset, "attempt", attempt, "delay", delay, "error", err)
			if err := a.sleep(ctx, delay); err != nil {
				res.Err = err
				return exhaust(res)
			}
		}
	}
	return exhaust(res)
}

func exhaust[T any](res Result[T]) Result[T] {
	res.Rows = nil
	res.Window = 0
	res.enter(Exhausted)
	return res
}

// FetchOne adapts a single-value fetch, such as a quote snapshot.
func FetchOne[T any](ctx context.Context, a *Acquirer, key Key, p Policy, fetch func(ctx context.Context) (T, error)) Result[T] {
	return Fetch(ctx, a, key, p, func(ctx context.Context, _ time.Time) ([]T, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return []T{v}, nil
	})
}

// First returns the single row of a FetchOne result.
func (r Result[T]) First() (T, bool) {
	var zero T
	if len(r.Rows) == 0 {
		return zero, false
	}
	return r.Rows[0], true
}
