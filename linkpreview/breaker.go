package linkpreview

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Guarded while its breaker is open.
var ErrCircuitOpen = errors.New("linkpreview: circuit open")

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // Calls pass through.
	BreakerOpen                         // Calls rejected immediately.
	BreakerHalfOpen                     // One probe call allowed to test recovery.
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "closed"
}

// Breaker trips after threshold consecutive failures and rejects calls until
// resetTimeout has elapsed since the last failure.
type Breaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time
	probing      bool
	now          func() time.Time
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithThreshold sets the failure count that trips the breaker open.
func WithThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithResetTimeout sets how long the breaker stays open before probing.
func WithResetTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.resetTimeout = d
		}
	}
}

// WithClock sets a custom clock function (for testing).
func WithClock(fn func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = fn }
}

// NewBreaker creates a breaker: 5 failures to open, 30s reset timeout.
func NewBreaker(opts ...BreakerOption) *Breaker {
	b := &Breaker{threshold: 5, resetTimeout: 30 * time.Second, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransition()
	return b.state
}

// allow reports whether a call may proceed. In half-open only one probe is
// let through at a time.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransition()
	switch b.state {
	case BreakerOpen:
		return false
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if ok {
		b.state = BreakerClosed
		b.failures = 0
		return
	}
	b.lastFailure = b.now()
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.state = BreakerOpen
	}
}

// Must be called with mu held.
func (b *Breaker) maybeTransition() {
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.resetTimeout {
		b.state = BreakerHalfOpen
	}
}

// Guarded wraps a resolver with a breaker so a failing metadata service does
// not add its timeout to every link insertion.
type Guarded struct {
	next    Resolver
	breaker *Breaker
}

// Guard returns next behind breaker.
func Guard(next Resolver, breaker *Breaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Breaker exposes the breaker, for health reporting.
func (g *Guarded) Breaker() *Breaker { return g.breaker }

// Resolve implements Resolver. An empty result counts as success; a
// cancelled context is not held against the backend.
func (g *Guarded) Resolve(ctx context.Context, url string) (*Metadata, error) {
	if !g.breaker.allow() {
		return nil, ErrCircuitOpen
	}
	meta, err := g.next.Resolve(ctx, url)
	if err != nil && ctx.Err() != nil {
		g.breaker.mu.Lock()
		g.breaker.probing = false
		g.breaker.mu.Unlock()
		return nil, err
	}
	g.breaker.record(err == nil || errors.Is(err, ErrNoMetadata))
	return meta, err
}
