// Package ratelimit provides a per-source token-bucket pacer, grounded
// on the golang.org/x/time/rate usage seen across the example pack's
// external API clients (e.g. acmg-amp-mcp-server's HGNC/RefSeq/Ensembl
// clients construct one rate.Limiter per source). Unlike those
// single-client limiters, this registry is shared across the process
// and keyed by source tag, per spec §4.2/§9 ("a process-wide rate-limit
// registry is acceptable but must be passed, not implicit").
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests to a single source: no two requests start
// less than minInterval apart, and at most maxConcurrent may be
// in-flight at once (0 means unbounded concurrency).
type Limiter struct {
	pacer *rate.Limiter
	sem   chan struct{}
}

// NewLimiter builds a limiter enforcing minInterval between request
// starts and, if maxConcurrent > 0, a concurrency cap.
func NewLimiter(minIntervalSeconds float64, maxConcurrent int) *Limiter {
	var r rate.Limit
	if minIntervalSeconds <= 0 {
		r = rate.Inf
	} else {
		r = rate.Every(time.Duration(minIntervalSeconds * float64(time.Second)))
	}
	l := &Limiter{pacer: rate.NewLimiter(r, 1)}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

// Acquire blocks until a pacing slot and (if configured) a concurrency
// slot are available, or ctx is cancelled. On success it returns a
// release func that must be called exactly once; a cancelled Acquire
// never leaves a slot held (spec §4.2: "a cancelled call releases any
// acquired pacing slot without affecting other callers").
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := l.pacer.Wait(ctx); err != nil {
		if l.sem != nil {
			<-l.sem
		}
		return nil, err
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if l.sem != nil {
			<-l.sem
		}
	}, nil
}

// Registry holds one Limiter per source tag, constructed once and
// passed explicitly through the Pipeline constructor rather than held
// as an implicit global (spec §9).
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// ForSource returns the Limiter for tag, constructing it on first use
// from the supplied defaults.
func (r *Registry) ForSource(tag string, minIntervalSeconds float64, maxConcurrent int) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[tag]; ok {
		return l
	}
	l := NewLimiter(minIntervalSeconds, maxConcurrent)
	r.limiters[tag] = l
	return l
}
