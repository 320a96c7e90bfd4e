package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/store/auditdb"
)

func openTestAuditDB(t *testing.T) *auditdb.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	db, err := auditdb.New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return db
}

func TestAuditHandler_FiltersByRunID(t *testing.T) {
	db := openTestAuditDB(t)
	runA := "run-a"
	runB := "run-b"
	mustInsert(t, db, "ev-1", runA)
	mustInsert(t, db, "ev-2", runB)

	req := httptest.NewRequest(http.MethodGet, "/api/audit?runId="+runA, nil)
	rr := httptest.NewRecorder()

	AuditHandler(db)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Meta == nil || resp.Meta.Total != 1 {
		t.Fatalf("Meta.Total = %+v, want 1", resp.Meta)
	}
}

func TestAuditHandler_DefaultsToRecent(t *testing.T) {
	db := openTestAuditDB(t)
	mustInsert(t, db, "ev-1", "run-a")
	mustInsert(t, db, "ev-2", "run-b")

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rr := httptest.NewRecorder()

	AuditHandler(db)(rr, req)

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Meta == nil || resp.Meta.Total != 2 {
		t.Fatalf("Meta.Total = %+v, want 2", resp.Meta)
	}
}

func mustInsert(t *testing.T, db *auditdb.DB, id, runID string) {
	t.Helper()
	if err := db.InsertEvent(kaspa.TelemetryEvent{
		ID:        id,
		RunID:     runID,
		Channel:   kaspa.ChannelManual,
		Stage:     kaspa.StageBuild,
		Status:    kaspa.TelemetryOk,
		Timestamp: time.Now(),
		Network:   kaspa.Mainnet,
	}); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
}
