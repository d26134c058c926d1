// Package acquire fetches datasets through an explicit retry state machine:
// each attempt either succeeds, waits and retries, or, once a window's
// attempts are spent, shrinks the history window and starts over. When every
// window fails the dataset is served empty instead of failing the run.
package acquire

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const day = 24 * time.Hour

// Policy is the retry plan for one class of dataset. It is built once and
// passed to every fetch of that class.
type Policy struct {
	Name        string
	MaxAttempts int
	// Backoff[i] is the wait after the (i+1)th failed attempt; the last entry
	// repeats.
	Backoff []time.Duration
	// RateLimitDelay is the minimum wait after a throttling response.
	RateLimitDelay time.Duration
	// Windows is the history-window ladder, longest first. A zero window
	// means the dataset has no history dimension.
	Windows []time.Duration
	// CacheTTL overrides the acquirer's cache lifetime for this class.
	CacheTTL time.Duration
}

// Cold is for long-history fundamentals.
func Cold() Policy {
	return Policy{
		Name:           "cold",
		MaxAttempts:    3,
		Backoff:        []time.Duration{2 * time.Second, 5 * time.Second},
		RateLimitDelay: 10 * time.Second,
		Windows:        []time.Duration{5 * 365 * day, 3 * 365 * day, 365 * day},
		CacheTTL:       24 * time.Hour,
	}
}

// Hot is for short-history flow data.
func Hot() Policy {
	return Policy{
		Name:           "hot",
		MaxAttempts:    3,
		Backoff:        []time.Duration{time.Second, 2 * time.Second},
		RateLimitDelay: 5 * time.Second,
		Windows:        []time.Duration{90 * day, 30 * day, 10 * day},
		CacheTTL:       time.Hour,
	}
}

// Price is for daily price history.
func Price() Policy {
	return Policy{
		Name:           "price",
		MaxAttempts:    3,
		Backoff:        []time.Duration{time.Second, 3 * time.Second},
		RateLimitDelay: 5 * time.Second,
		Windows:        []time.Duration{2 * 365 * day, 365 * day, 180 * day},
		CacheTTL:       time.Hour,
	}
}

// Snapshot is for point-in-time quotes.
func Snapshot() Policy {
	return Policy{
		Name:           "snapshot",
		MaxAttempts:    3,
		Backoff:        []time.Duration{time.Second, 3 * time.Second},
		RateLimitDelay: 5 * time.Second,
		Windows:        []time.Duration{0},
		CacheTTL:       time.Hour,
	}
}

func (p Policy) backoff(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	i := attempt - 1
	if i >= len(p.Backoff) {
		i = len(p.Backoff) - 1
	}
	if i < 0 {
		i = 0
	}
	return p.Backoff[i]
}

func (p Policy) windows() []time.Duration {
	if len(p.Windows) == 0 {
		return []time.Duration{0}
	}
	return p.Windows
}

func (p Policy) cacheTTL() time.Duration {
	if p.CacheTTL <= 0 {
		return cache.DefaultExpiration
	}
	return p.CacheTTL
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// DaysToWindows converts a config list of day counts into windows.
func DaysToWindows(days []int) []time.Duration {
	out := make([]time.Duration, 0, len(days))
	for _, d := range days {
		out = append(out, time.Duration(d)*day)
	}
	return out
}
