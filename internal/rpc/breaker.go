package rpc

import (
	"sync"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
)

// Breaker is a per-base-URL circuit breaker: Closed lets everything through,
// Open blocks until the cooldown elapses, HalfOpen lets requests through until
// a recorded success closes it or a recorded failure reopens it. The number of
// requests allowed while HalfOpen is not limited to one.
type Breaker struct {
	mu       sync.Mutex
	state    kaspa.BreakerState
	failures int
	openedAt time.Time
	clk      clock.Clock

	threshold int
	cooldown  time.Duration
}

// NewBreaker creates a closed breaker with the given trip threshold and cooldown.
func NewBreaker(clk clock.Clock, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:     kaspa.BreakerClosed,
		clk:       clk,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a request may proceed, lazily transitioning
// Open → HalfOpen once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case kaspa.BreakerClosed:
		return true
	case kaspa.BreakerOpen:
		if b.clk.Now().Sub(b.openedAt) > b.cooldown {
			b.state = kaspa.BreakerHalfOpen
			return true
		}
		return false
	case kaspa.BreakerHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess closes the breaker and resets its failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = kaspa.BreakerClosed
	b.failures = 0
}

// RecordFailure increments the failure count, tripping the breaker open at
// the configured threshold (or immediately, from HalfOpen).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == kaspa.BreakerHalfOpen {
		b.state = kaspa.BreakerOpen
		b.openedAt = b.clk.Now()
		return
	}
	if b.failures >= b.threshold {
		b.state = kaspa.BreakerOpen
		b.openedAt = b.clk.Now()
	}
}

// Snapshot returns the breaker's current persistable state.
func (b *Breaker) Snapshot(baseURL string) kaspa.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	var openedAt *time.Time
	if !b.openedAt.IsZero() {
		t := b.openedAt
		openedAt = &t
	}
	return kaspa.CircuitBreakerState{
		BaseURL:  baseURL,
		State:    b.state,
		Failures: b.failures,
		OpenedAt: openedAt,
	}
}

// NewBreakerFromSnapshot restores a breaker's in-memory state from a
// previously persisted snapshot.
func NewBreakerFromSnapshot(clk clock.Clock, threshold int, cooldown time.Duration, snap kaspa.CircuitBreakerState) *Breaker {
	b := NewBreaker(clk, threshold, cooldown)
	b.state = snap.State
	b.failures = snap.Failures
	if snap.OpenedAt != nil {
		b.openedAt = *snap.OpenedAt
	}
	return b
}

func defaultBreakerParams() (int, time.Duration) {
	return config.CBTripThreshold, config.MillisDuration(config.CBRecoverMS)
}
