// Package resilience wraps flaky Source Clients (principally Google
// Scholar, the scraping source spec §4.1 calls out as inherently
// unreliable) in a circuit breaker, grounded on
// github.com/sony/gobreaker as used by acmg-amp-mcp-server's
// pkg/external/circuit_breaker.go to wrap its external gene/variant
// API clients.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

// Breaker wraps a single source's calls. It opens after
// consecutiveFailureThreshold consecutive failures within interval and
// stays open for timeout before allowing a trial request through.
// Spec §5 marks a source unhealthy "for the remainder of the call",
// so callers must construct one Breaker per source per Search() call
// (internal/pipeline does this in fanOut) rather than share one across
// calls — a shared instance would keep blocking a source in later,
// unrelated searches for up to Timeout after it tripped in an earlier
// one.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a Breaker for the named source. consecutiveFailureThreshold
// defaults to 3 per spec §5 ("default 3 consecutive rate-limit or
// upstream 5xx").
func New(sourceName string, consecutiveFailureThreshold uint32, onTrip func(source string)) *Breaker {
	if consecutiveFailureThreshold == 0 {
		consecutiveFailureThreshold = 3
	}
	settings := gobreaker.Settings{
		Name:        sourceName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen && onTrip != nil {
				onTrip(name)
			}
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do executes fn through the breaker. When the breaker is open it
// returns a domain.Error of kind SourceBlocked without invoking fn,
// matching spec §4.1's "non-retryable by the pipeline" contract for a
// source deemed unhealthy.
func (b *Breaker) Do(ctx context.Context, source string, fn func(context.Context) error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return domain.NewError(domain.ErrKindSourceBlocked, source, "circuit breaker open after repeated failures")
	}
	return err
}

// State reports the breaker's current state name, for observability.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
