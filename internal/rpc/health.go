package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kvstore"
)

// HealthTracker records per-base-URL latency/success history and owns the
// matching circuit breaker, persisting both to KV after every update.
// Writes are fire-and-forget best effort: a persistence failure is
// logged, never surfaced to the RPC fast path.
type HealthTracker struct {
	mu         sync.Mutex
	kv         kvstore.KVStore
	clk        clock.Clock
	health     map[string]*kaspa.EndpointHealth
	breakers   map[string]*Breaker
	onPersist  func(map[string]*kaspa.EndpointHealth, map[string]kaspa.CircuitBreakerState)
}

// SetPersistHook registers a callback invoked after every KV persist with a
// snapshot of the current health/breaker maps, so a relational mirror (the
// auditdb provider_health table) can be kept in step without this package
// depending on the store it's mirrored into.
func (t *HealthTracker) SetPersistHook(hook func(map[string]*kaspa.EndpointHealth, map[string]kaspa.CircuitBreakerState)) {
	t.mu.Lock()
	t.onPersist = hook
	t.mu.Unlock()
}

// NewHealthTracker creates a tracker hydrated from kv's rpc.health.v1 and
// rpc.breakers.v1 namespaces.
func NewHealthTracker(kv kvstore.KVStore, clk clock.Clock) *HealthTracker {
	t := &HealthTracker{
		kv:       kv,
		clk:      clk,
		health:   make(map[string]*kaspa.EndpointHealth),
		breakers: make(map[string]*Breaker),
	}
	t.hydrate()
	return t
}

func (t *HealthTracker) hydrate() {
	if raw, ok, err := t.kv.Get(config.NamespaceRPCHealth, "all"); err == nil && ok {
		var m map[string]*kaspa.EndpointHealth
		if err := json.Unmarshal(raw, &m); err == nil {
			t.health = m
		}
	}

	threshold, cooldown := defaultBreakerParams()
	if raw, ok, err := t.kv.Get(config.NamespaceRPCBreakers, "all"); err == nil && ok {
		var m map[string]kaspa.CircuitBreakerState
		if err := json.Unmarshal(raw, &m); err == nil {
			for url, snap := range m {
				t.breakers[url] = NewBreakerFromSnapshot(t.clk, threshold, cooldown, snap)
			}
		}
	}
}

func (t *HealthTracker) breakerFor(baseURL string) *Breaker {
	if b, ok := t.breakers[baseURL]; ok {
		return b
	}
	threshold, cooldown := defaultBreakerParams()
	b := NewBreaker(t.clk, threshold, cooldown)
	t.breakers[baseURL] = b
	return b
}

// Breaker returns the circuit breaker for baseURL, creating one if absent.
func (t *HealthTracker) Breaker(baseURL string) *Breaker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.breakerFor(baseURL)
}

// RecordSuccess updates health on a successful request and persists both maps.
func (t *HealthTracker) RecordSuccess(baseURL string, latency time.Duration) {
	t.mu.Lock()
	h, ok := t.health[baseURL]
	if !ok {
		h = &kaspa.EndpointHealth{BaseURL: baseURL}
		t.health[baseURL] = h
	}
	now := t.clk.Now()
	h.LastOkAt = &now
	h.ConsecutiveFails = 0
	h.LastLatencyMS = latency.Milliseconds()
	h.LastStatus = 200
	h.LastError = ""
	t.breakerFor(baseURL).RecordSuccess()
	t.mu.Unlock()

	t.persist()
}

// RecordFailure updates health on a terminal failure and persists both maps.
func (t *HealthTracker) RecordFailure(baseURL string, status int, cause error) {
	t.mu.Lock()
	h, ok := t.health[baseURL]
	if !ok {
		h = &kaspa.EndpointHealth{BaseURL: baseURL}
		t.health[baseURL] = h
	}
	now := t.clk.Now()
	h.LastFailAt = &now
	h.ConsecutiveFails++
	h.LastStatus = status
	if cause != nil {
		h.LastError = cause.Error()
	}
	t.breakerFor(baseURL).RecordFailure()
	t.mu.Unlock()

	t.persist()
}

func (t *HealthTracker) persist() {
	t.mu.Lock()
	healthCopy := make(map[string]*kaspa.EndpointHealth, len(t.health))
	for k, v := range t.health {
		healthCopy[k] = v
	}
	breakerCopy := make(map[string]kaspa.CircuitBreakerState, len(t.breakers))
	for url, b := range t.breakers {
		breakerCopy[url] = b.Snapshot(url)
	}
	hook := t.onPersist
	t.mu.Unlock()

	if raw, err := json.Marshal(healthCopy); err == nil {
		if err := t.kv.Set(config.NamespaceRPCHealth, "all", raw); err != nil {
			slog.Warn("persist rpc health failed", "error", err)
		}
	}
	if raw, err := json.Marshal(breakerCopy); err == nil {
		if err := t.kv.Set(config.NamespaceRPCBreakers, "all", raw); err != nil {
			slog.Warn("persist rpc breakers failed", "error", err)
		}
	}

	if hook != nil {
		hook(healthCopy, breakerCopy)
	}
}

// Rank orders urls by (last_ok_at desc, consecutive_fails asc), with
// Open-breaker endpoints pushed to the back.
func (t *HealthTracker) Rank(urls []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ranked := append([]string(nil), urls...)
	sort.SliceStable(ranked, func(i, j int) bool {
		oi, oj := t.isOpen(ranked[i]), t.isOpen(ranked[j])
		if oi != oj {
			return !oi
		}
		hi, hj := t.health[ranked[i]], t.health[ranked[j]]
		okI := lastOkOrZero(hi)
		okJ := lastOkOrZero(hj)
		if !okI.Equal(okJ) {
			return okI.After(okJ)
		}
		return failsOf(hi) < failsOf(hj)
	})
	return ranked
}

func (t *HealthTracker) isOpen(baseURL string) bool {
	b, ok := t.breakers[baseURL]
	if !ok {
		return false
	}
	return b.Snapshot(baseURL).State == kaspa.BreakerOpen
}

func lastOkOrZero(h *kaspa.EndpointHealth) time.Time {
	if h == nil || h.LastOkAt == nil {
		return time.Time{}
	}
	return *h.LastOkAt
}

func failsOf(h *kaspa.EndpointHealth) int {
	if h == nil {
		return 0
	}
	return h.ConsecutiveFails
}

// breakerStateString renders a breaker's state for log lines.
func breakerStateString(b *Breaker, baseURL string) string {
	return fmt.Sprintf("%s=%s", baseURL, b.Snapshot(baseURL).State)
}
