// Package resilience wraps provider calls with retries and circuit breakers.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the provider while a breaker is open.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// BreakerSettings configures a Breaker.
type BreakerSettings struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration
	// Counts decides whether an error counts as a failure. Defaults to any
	// non-nil error.
	Counts func(error) bool
}

// DefaultBreakerSettings returns the settings used for provider calls.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{Threshold: 5, Cooldown: 30 * time.Second}
}

// Breaker is a consecutive-failure circuit breaker. A single successful
// probe in half-open closes the circuit; a failed probe reopens it.
type Breaker struct {
	name     string
	settings BreakerSettings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a closed breaker for the named service.
func NewBreaker(name string, s BreakerSettings) *Breaker {
	d := DefaultBreakerSettings()
	if s.Threshold <= 0 {
		s.Threshold = d.Threshold
	}
	if s.Cooldown <= 0 {
		s.Cooldown = d.Cooldown
	}
	if s.Counts == nil {
		s.Counts = func(err error) bool { return err != nil }
	}
	return &Breaker{name: name, settings: s, now: time.Now}
}

// Call runs fn through the breaker.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	if err := b.admit(); err != nil {
		var zero T
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current state, reporting half-open once the cooldown has
// elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cooledLocked() {
		return StateHalfOpen
	}
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) cooledLocked() bool {
	return b.now().Sub(b.openedAt) >= b.settings.Cooldown
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return nil
	}
	if !b.cooledLocked() {
		return eris.Wrapf(ErrCircuitOpen, "service %s", b.name)
	}
	b.setLocked(StateHalfOpen)
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.settings.Counts(err) {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.setLocked(StateClosed)
		}
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.settings.Threshold {
		b.openedAt = b.now()
		b.setLocked(StateOpen)
	}
}

func (b *Breaker) setLocked(to State) {
	if b.state == to {
		return
	}
	zap.L().Info("resilience: circuit state change",
		zap.String("service", b.name),
		zap.String("from", b.state.String()),
		zap.String("to", to.String()),
	)
	b.state = to
}

// Breakers hands out one Breaker per service name.
type Breakers struct {
	settings BreakerSettings

	mu  sync.Mutex
	all map[string]*Breaker
}

// NewBreakers creates an empty registry.
func NewBreakers(s BreakerSettings) *Breakers {
	return &Breakers{settings: s, all: make(map[string]*Breaker)}
}

// Get returns the breaker for service, creating it on first use.
func (r *Breakers) Get(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.all[service]
	if !ok {
		b = NewBreaker(service, r.settings)
		r.all[service] = b
	}
	return b
}

// States returns every known breaker's state keyed by service, for metrics.
func (r *Breakers) States() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.all))
	for name, b := range r.all {
		out[name] = b.State().String()
	}
	return out
}
