package rpc

import (
	"testing"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/kvstore"
)

func TestHealthTracker_RanksByRecencyThenFailures(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	kv := kvstore.NewMemoryStore()
	tr := NewHealthTracker(kv, clk)

	tr.RecordSuccess("https://a", 10*time.Millisecond)
	clk.Advance(time.Second)
	tr.RecordSuccess("https://b", 10*time.Millisecond)

	ranked := tr.Rank([]string{"https://a", "https://b"})
	if ranked[0] != "https://b" {
		t.Fatalf("expected most-recently-ok endpoint first, got %v", ranked)
	}
}

func TestHealthTracker_OpenBreakerRankedLast(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	kv := kvstore.NewMemoryStore()
	tr := NewHealthTracker(kv, clk)

	for i := 0; i < 10; i++ {
		tr.RecordFailure("https://flaky", 500, nil)
	}
	tr.RecordSuccess("https://good", time.Millisecond)

	ranked := tr.Rank([]string{"https://flaky", "https://good"})
	if ranked[len(ranked)-1] != "https://flaky" {
		t.Fatalf("expected open-breaker endpoint last, got %v", ranked)
	}
}

func TestHealthTracker_PersistsAcrossRestart(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	kv := kvstore.NewMemoryStore()
	tr := NewHealthTracker(kv, clk)

	for i := 0; i < 10; i++ {
		tr.RecordFailure("https://down", 500, nil)
	}
	if tr.Breaker("https://down").Allow() {
		t.Fatal("expected breaker open before restart")
	}

	tr2 := NewHealthTracker(kv, clk)
	if tr2.Breaker("https://down").Allow() {
		t.Fatal("expected hydrated breaker to still be open after restart")
	}
}
