// Package resilience protects the speech providers with a three-state circuit
// breaker (closed → open → half-open). When a provider keeps failing, the
// breaker rejects calls immediately instead of letting every conversation
// cycle wait out a network timeout; after a cooldown a few probe calls decide
// whether the provider has recovered.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the
// cooldown has not yet elapsed. Callers should treat it as a provider failure
// and degrade the same way.
var ErrOpen = errors.New("resilience: breaker open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call. This is the normal state.
	Closed State = iota

	// Open rejects every call with [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen lets a limited number of probe calls through. Probes that all
	// succeed close the breaker; any probe failure re-opens it.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a three-state circuit breaker around an unreliable dependency.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	probes    int
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	probeCalls int
	probeOK    int
}

// Option is a functional option for [NewBreaker].
type Option func(*Breaker)

// WithThreshold sets how many consecutive failures open the breaker.
// Default: 5.
func WithThreshold(n int) Option {
	return func(b *Breaker) { b.threshold = n }
}

// WithCooldown sets how long the breaker stays open before probing.
// Default: 30s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) { b.cooldown = d }
}

// WithProbes sets how many half-open probe calls must succeed before the
// breaker closes again. Default: 2.
func WithProbes(n int) Option {
	return func(b *Breaker) { b.probes = n }
}

// WithLogger overrides the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(b *Breaker) { b.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// NewBreaker creates a closed breaker named for log messages.
func NewBreaker(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: 5,
		cooldown:  30 * time.Second,
		probes:    2,
	}
	for _, o := range opts {
		o(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Do runs fn if the breaker allows it and folds the outcome into the breaker
// state. While open it returns [ErrOpen] without calling fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		b.probeCalls = 0
		b.probeOK = 0
		b.logger.Info("breaker half-open", "name", b.name)

	case HalfOpen:
		if b.probeCalls >= b.probes {
			// Probe budget spent, verdict pending from in-flight probes.
			b.mu.Unlock()
			return ErrOpen
		}
	}

	probing := b.state == HalfOpen
	if probing {
		b.probeCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	if probing {
		b.state = Open
		b.openedAt = b.now()
		b.failures = b.threshold
		b.logger.Warn("breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.state == Closed && b.failures >= b.threshold {
		b.state = Open
		b.openedAt = b.now()
		b.logger.Warn("breaker opened", "name", b.name, "failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		b.probeOK++
		if b.probeOK >= b.probes {
			b.state = Closed
			b.failures = 0
			b.logger.Info("breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State reports the current state. An open breaker whose cooldown has elapsed
// reports [HalfOpen]; the actual transition happens on the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}
