package auditdb

import (
	"fmt"
	"time"

	"github.com/kaspax/txkernel/internal/kaspa"
)

// ProviderHealthRow is one base URL's mirrored health/breaker snapshot.
type ProviderHealthRow struct {
	BaseURL          string
	LastOkAt         *time.Time
	LastFailAt       *time.Time
	ConsecutiveFails int
	LastLatencyMS    int64
	LastStatus       int
	LastError        string
	BreakerState     string
	BreakerFailures  int
	BreakerOpenedAt  *time.Time
	UpdatedAt        time.Time
}

// UpsertProviderHealth mirrors rpc.HealthTracker's in-memory health and
// breaker maps into the provider_health table, one row per base URL,
// last-writer-wins. Registered as rpc.HealthTracker's persist hook so every
// KV write is shadowed here for operator SQL queryability.
func (d *DB) UpsertProviderHealth(health map[string]*kaspa.EndpointHealth, breakers map[string]kaspa.CircuitBreakerState) error {
	urls := make(map[string]bool, len(health)+len(breakers))
	for url := range health {
		urls[url] = true
	}
	for url := range breakers {
		urls[url] = true
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for url := range urls {
		h := health[url]
		b, hasBreaker := breakers[url]

		var lastOkAt, lastFailAt *string
		var consecutiveFails int
		var lastLatencyMS int64
		var lastStatus int
		var lastError string
		if h != nil {
			if h.LastOkAt != nil {
				s := h.LastOkAt.UTC().Format(time.RFC3339Nano)
				lastOkAt = &s
			}
			if h.LastFailAt != nil {
				s := h.LastFailAt.UTC().Format(time.RFC3339Nano)
				lastFailAt = &s
			}
			consecutiveFails = h.ConsecutiveFails
			lastLatencyMS = h.LastLatencyMS
			lastStatus = h.LastStatus
			lastError = h.LastError
		}

		var breakerState string
		var breakerFailures int
		var breakerOpenedAt *string
		if hasBreaker {
			breakerState = string(b.State)
			breakerFailures = b.Failures
			if b.OpenedAt != nil {
				s := b.OpenedAt.UTC().Format(time.RFC3339Nano)
				breakerOpenedAt = &s
			}
		}

		_, err := d.conn.Exec(
			`INSERT INTO provider_health
				(base_url, last_ok_at, last_fail_at, consecutive_fails, last_latency_ms,
				 last_status, last_error, breaker_state, breaker_failures, breaker_opened_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(base_url) DO UPDATE SET
				last_ok_at = excluded.last_ok_at,
				last_fail_at = excluded.last_fail_at,
				consecutive_fails = excluded.consecutive_fails,
				last_latency_ms = excluded.last_latency_ms,
				last_status = excluded.last_status,
				last_error = excluded.last_error,
				breaker_state = excluded.breaker_state,
				breaker_failures = excluded.breaker_failures,
				breaker_opened_at = excluded.breaker_opened_at,
				updated_at = excluded.updated_at`,
			url, lastOkAt, lastFailAt, consecutiveFails, lastLatencyMS,
			lastStatus, lastError, breakerState, breakerFailures, breakerOpenedAt, now,
		)
		if err != nil {
			return fmt.Errorf("upsert provider health for %s: %w", url, err)
		}
	}
	return nil
}

// AllProviderHealth returns every mirrored provider_health row, ordered by
// base_url, for the operator-facing read surface.
func (d *DB) AllProviderHealth() ([]ProviderHealthRow, error) {
	rows, err := d.conn.Query(
		`SELECT base_url, last_ok_at, last_fail_at, consecutive_fails, last_latency_ms,
			last_status, last_error, breaker_state, breaker_failures, breaker_opened_at, updated_at
		 FROM provider_health ORDER BY base_url ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query provider health: %w", err)
	}
	defer rows.Close()

	var out []ProviderHealthRow
	for rows.Next() {
		var (
			r                                                ProviderHealthRow
			lastOkAt, lastFailAt, breakerOpenedAt, updatedAt *string
			lastError, breakerState                          *string
		)
		if err := rows.Scan(&r.BaseURL, &lastOkAt, &lastFailAt, &r.ConsecutiveFails, &r.LastLatencyMS,
			&r.LastStatus, &lastError, &breakerState, &r.BreakerFailures, &breakerOpenedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan provider health row: %w", err)
		}
		r.LastOkAt = parseOptionalTime(lastOkAt)
		r.LastFailAt = parseOptionalTime(lastFailAt)
		r.BreakerOpenedAt = parseOptionalTime(breakerOpenedAt)
		if updatedAt != nil {
			if t, err := time.Parse(time.RFC3339Nano, *updatedAt); err == nil {
				r.UpdatedAt = t
			}
		}
		if lastError != nil {
			r.LastError = *lastError
		}
		if breakerState != nil {
			r.BreakerState = *breakerState
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseOptionalTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}
