package rpc

import (
	"testing"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/kaspa"
)

func TestBreaker_TripsAtThreshold(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	b := NewBreaker(clk, 3, time.Second)

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("expected Allow() before threshold, iteration %d", i)
		}
		b.RecordFailure()
	}
	if b.Snapshot("x").State != kaspa.BreakerClosed {
		t.Fatalf("expected Closed before threshold, got %v", b.Snapshot("x").State)
	}

	b.RecordFailure()
	if b.Snapshot("x").State != kaspa.BreakerOpen {
		t.Fatalf("expected Open at threshold, got %v", b.Snapshot("x").State)
	}
	if b.Allow() {
		t.Fatal("expected Allow() false while Open and within cooldown")
	}
}

func TestBreaker_HalfOpenThenClose(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	b := NewBreaker(clk, 1, time.Second)

	b.RecordFailure()
	if b.Snapshot("x").State != kaspa.BreakerOpen {
		t.Fatal("expected Open after one failure at threshold 1")
	}

	clk.Advance(2 * time.Second)
	if !b.Allow() {
		t.Fatal("expected Allow() true after cooldown elapses")
	}
	if b.Snapshot("x").State != kaspa.BreakerHalfOpen {
		t.Fatalf("expected HalfOpen after cooldown, got %v", b.Snapshot("x").State)
	}

	b.RecordSuccess()
	if b.Snapshot("x").State != kaspa.BreakerClosed {
		t.Fatalf("expected Closed after half-open success, got %v", b.Snapshot("x").State)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	b := NewBreaker(clk, 1, time.Second)
	b.RecordFailure()
	clk.Advance(2 * time.Second)
	b.Allow()

	b.RecordFailure()
	if b.Snapshot("x").State != kaspa.BreakerOpen {
		t.Fatalf("expected Open after half-open failure, got %v", b.Snapshot("x").State)
	}
}
