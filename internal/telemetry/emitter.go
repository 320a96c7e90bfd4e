// Package telemetry emits TelemetryEvent records for every kernel stage:
// a bounded KV ring buffer for fast recent-activity reads, mirrored into
// the SQLite audit database for durable querying.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kvstore"
	"github.com/kaspax/txkernel/internal/store/auditdb"
)

// ScriptClassUnclassifiedWarning annotates an event whose UTXO script
// classification is a stub result: every
// synced UTXO currently reads Standard because no covenant-detection rule
// exists yet, so this context key tells a reader not to take that as
// consensus-verified.
const ScriptClassUnclassifiedWarning = "script_class_unclassified"

const ringKey = "ring"

// Mirror is the subset of auditdb.DB an Emitter writes through, kept
// narrow so a kernel without the SQLite mirror configured can pass nil.
type Mirror interface {
	InsertEvent(e kaspa.TelemetryEvent) error
}

// Emitter appends TelemetryEvents to the bounded KV ring buffer and, if
// configured, mirrors them into a SQLite audit database.
type Emitter struct {
	mu     sync.Mutex
	kv     kvstore.KVStore
	mirror Mirror
	clk    clock.Clock
	maxLen int
}

// NewEmitter wires an Emitter. mirror may be nil to run with the ring
// buffer only.
func NewEmitter(kv kvstore.KVStore, mirror Mirror, clk clock.Clock) *Emitter {
	return &Emitter{kv: kv, mirror: mirror, clk: clk, maxLen: config.AuditMaxEvents}
}

// NewEvent fills in ID/Timestamp for a caller-assembled event, defaulting
// Context to an empty map so callers can always index into it.
func (e *Emitter) NewEvent(runID string, channel kaspa.TelemetryChannel, stage kaspa.TelemetryStage, status kaspa.TelemetryStatus, network kaspa.Network) kaspa.TelemetryEvent {
	return kaspa.TelemetryEvent{
		ID:        uuid.NewString(),
		RunID:     runID,
		Channel:   channel,
		Stage:     stage,
		Status:    status,
		Timestamp: e.clk.Now(),
		Network:   network,
		Context:   make(map[string]string),
	}
}

// Emit appends ev to the ring buffer (evicting the oldest entry past
// config.AuditMaxEvents) and, if a mirror is configured, writes it to the
// SQLite audit database. The ring buffer is stored as a single JSON-array
// value, and a failure to load or save it is returned; a mirror failure is
// logged, not returned, since the ring buffer already holds the event of
// record.
func (e *Emitter) Emit(ev kaspa.TelemetryEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	events, err := e.loadRing()
	if err != nil {
		return fmt.Errorf("load audit ring buffer: %w", err)
	}
	events = append(events, ev)
	if len(events) > e.maxLen {
		events = events[len(events)-e.maxLen:]
	}
	if err := e.saveRing(events); err != nil {
		return fmt.Errorf("save audit ring buffer: %w", err)
	}

	if e.mirror != nil {
		if err := e.mirror.InsertEvent(ev); err != nil {
			slog.Warn("audit mirror write failed", "event_id", ev.ID, "error", err)
		}
	}

	return nil
}

// Recent returns the ring buffer's events, oldest first.
func (e *Emitter) Recent() ([]kaspa.TelemetryEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadRing()
}

func (e *Emitter) loadRing() ([]kaspa.TelemetryEvent, error) {
	raw, ok, err := e.kv.Get(config.NamespaceAuditLog, ringKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var events []kaspa.TelemetryEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (e *Emitter) saveRing(events []kaspa.TelemetryEvent) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return e.kv.Set(config.NamespaceAuditLog, ringKey, raw)
}

var _ Mirror = (*auditdb.DB)(nil)
