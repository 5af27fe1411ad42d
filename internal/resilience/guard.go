package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Guard applies a retry policy and a per-service circuit breaker to calls.
// Each attempt passes through the breaker, and an open circuit is not
// retried.
type Guard struct {
	policy   Policy
	breakers *Breakers
}

// NewGuard creates a Guard.
func NewGuard(p Policy, s BreakerSettings) *Guard {
	return &Guard{policy: p, breakers: NewBreakers(s)}
}

// Breakers exposes the guard's breaker registry.
func (g *Guard) Breakers() *Breakers { return g.breakers }

// Do runs fn for service under the guard's policy and breaker.
func Do[T any](ctx context.Context, g *Guard, service, operation string, fn func(context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}

	p := g.policy
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	p.Retryable = func(err error) bool {
		return !eris.Is(err, ErrCircuitOpen) && retryable(err)
	}
	if p.OnRetry == nil {
		p.OnRetry = LogRetries(service, operation)
	}

	b := g.breakers.Get(service)
	return Retry(ctx, p, func(ctx context.Context) (T, error) {
		return Call(ctx, b, fn)
	})
}

// PolicyFrom builds a Policy from plain config values. Zero values keep the
// defaults.
func PolicyFrom(attempts, initialMs, maxMs int, multiplier, jitter float64) Policy {
	p := DefaultPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if initialMs > 0 {
		p.Initial = time.Duration(initialMs) * time.Millisecond
	}
	if maxMs > 0 {
		p.Max = time.Duration(maxMs) * time.Millisecond
	}
	if multiplier > 0 {
		p.Multiplier = multiplier
	}
	if jitter >= 0 {
		p.Jitter = jitter
	}
	return p
}

// BreakerFrom builds BreakerSettings from plain config values.
func BreakerFrom(threshold, cooldownSecs int) BreakerSettings {
	s := DefaultBreakerSettings()
	if threshold > 0 {
		s.Threshold = threshold
	}
	if cooldownSecs > 0 {
		s.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return s
}
