package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kvstore"
)

var errBoom = errors.New("boom")

type fakeMirror struct {
	events []kaspa.TelemetryEvent
	err    error
}

func (m *fakeMirror) InsertEvent(e kaspa.TelemetryEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func TestEmit_AppendsToRing(t *testing.T) {
	e := NewEmitter(kvstore.NewMemoryStore(), nil, clock.NewFake(time.Unix(0, 0)))

	ev := e.NewEvent("run-1", kaspa.ChannelManual, kaspa.StageBuild, kaspa.TelemetryOk, kaspa.Mainnet)
	if err := e.Emit(ev); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	recent, err := e.Recent()
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 1 || recent[0].ID != ev.ID {
		t.Fatalf("expected 1 recent event matching %s, got %+v", ev.ID, recent)
	}
}

func TestEmit_EvictsOldestPastMaxLen(t *testing.T) {
	e := NewEmitter(kvstore.NewMemoryStore(), nil, clock.NewFake(time.Unix(0, 0)))
	e.maxLen = 3

	var ids []string
	for i := 0; i < 5; i++ {
		ev := e.NewEvent("run-1", kaspa.ChannelManual, kaspa.StageBuild, kaspa.TelemetryOk, kaspa.Mainnet)
		ids = append(ids, ev.ID)
		if err := e.Emit(ev); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := e.Recent()
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected ring trimmed to 3, got %d", len(recent))
	}
	if recent[0].ID != ids[2] || recent[2].ID != ids[4] {
		t.Fatalf("expected the 3 most recent events retained, got %+v", recent)
	}
}

func TestEmit_WritesToMirror(t *testing.T) {
	mirror := &fakeMirror{}
	e := NewEmitter(kvstore.NewMemoryStore(), mirror, clock.NewFake(time.Unix(0, 0)))

	ev := e.NewEvent("run-1", kaspa.ChannelAgent, kaspa.StageBroadcast, kaspa.TelemetryFailed, kaspa.Testnet10)
	if err := e.Emit(ev); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	if len(mirror.events) != 1 || mirror.events[0].ID != ev.ID {
		t.Fatalf("expected mirror to receive the event, got %+v", mirror.events)
	}
}

func TestEmit_MirrorFailureDoesNotFailEmit(t *testing.T) {
	mirror := &fakeMirror{err: errBoom}
	e := NewEmitter(kvstore.NewMemoryStore(), mirror, clock.NewFake(time.Unix(0, 0)))

	ev := e.NewEvent("run-1", kaspa.ChannelManual, kaspa.StageSign, kaspa.TelemetryOk, kaspa.Mainnet)
	if err := e.Emit(ev); err != nil {
		t.Fatalf("Emit() should tolerate a mirror failure, got error: %v", err)
	}
}
