package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks until the next outbound request of one source may start
type Pacer interface {
	Wait(ctx context.Context) error
	// WaitWithDelay also honours a crawl delay the target host asked for
	WaitWithDelay(ctx context.Context, crawlDelay time.Duration) error
}

// Limiter paces outbound requests per source. Each source gets its own
// token bucket with burst 1, so the configured delay is the minimum gap
// between two requests to that source.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultDelay time.Duration
}

// NewLimiter creates a limiter with per-source delays; sources missing from
// pacing use defaultDelay. A delay <= 0 disables pacing.
func NewLimiter(defaultDelay time.Duration, pacing map[string]time.Duration) *Limiter {
	l := &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultDelay: defaultDelay,
	}
	for source, d := range pacing {
		l.limiters[source] = newBucket(d)
	}
	return l
}

func newBucket(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Wait blocks until source may issue its next request
func (l *Limiter) Wait(ctx context.Context, source string) error {
	return l.getLimiter(source).Wait(ctx)
}

func (l *Limiter) getLimiter(source string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[source]; exists {
		return limiter
	}

	limiter = newBucket(l.defaultDelay)
	l.limiters[source] = limiter

	return limiter
}

// For returns a Pacer bound to source
func (l *Limiter) For(source string) Pacer {
	return sourcePacer{l: l, source: source}
}

type sourcePacer struct {
	l      *Limiter
	source string
}

func (p sourcePacer) Wait(ctx context.Context) error { return p.l.Wait(ctx, p.source) }

func (p sourcePacer) WaitWithDelay(ctx context.Context, crawlDelay time.Duration) error {
	return p.l.WaitWithDelay(ctx, p.source, crawlDelay)
}

// WaitWithDelay waits for the source's turn and then sleeps additionalDelay,
// used when robots.txt asks for a longer crawl delay than configured.
func (l *Limiter) WaitWithDelay(ctx context.Context, source string, additionalDelay time.Duration) error {
	if err := l.Wait(ctx, source); err != nil {
		return err
	}

	if additionalDelay > 0 {
		t := time.NewTimer(additionalDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return nil
}

// NoPacing is a Pacer that never waits
var NoPacing Pacer = noPacer{}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }

func (noPacer) WaitWithDelay(ctx context.Context, _ time.Duration) error { return ctx.Err() }
