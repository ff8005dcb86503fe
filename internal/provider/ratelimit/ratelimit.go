package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"quoteproxy/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Resolve(ctx context.Context, code string) (provider.Quote, error) {
	if m.Interval > 0 {
		// reserve a slot so concurrent callers queue instead of bursting
		m.mu.Lock()
		next := m.last.Add(m.Interval)
		now := time.Now()
		if next.Before(now) {
			next = now
		}
		m.last = next
		m.mu.Unlock()

		if wait := time.Until(next); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return provider.Quote{}, provider.NewNetworkError(ctx.Err())
			case <-t.C:
			}
		}
	}
	return m.P.Resolve(ctx, code)
}

// Limited gates calls through a token bucket.
type Limited struct {
	P       provider.Provider
	Limiter *rate.Limiter
}

// NewLimited allows perSecond calls with the given burst. A non-positive
// rate disables limiting.
func NewLimited(p provider.Provider, perSecond float64, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Inf, burst)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return &Limited{P: p, Limiter: lim}
}

func (l *Limited) Name() string { return l.P.Name() }

func (l *Limited) Resolve(ctx context.Context, code string) (provider.Quote, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return provider.Quote{}, &provider.FetchError{
				Kind:      provider.ErrorKindRateLimit,
				Retryable: true,
				Message:   "local rate limit wait aborted",
				Cause:     err,
			}
		}
	}
	return l.P.Resolve(ctx, code)
}
