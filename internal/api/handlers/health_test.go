package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kvstore"
	"github.com/kaspax/txkernel/internal/store"
)

func TestHealthHandler_ReturnsConfiguredPreset(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	settings := store.NewRPCSettingsStore(kv)
	if err := settings.SetPreset(kaspa.Mainnet, config.PresetIgra); err != nil {
		t.Fatalf("SetPreset() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()

	HealthHandler(settings, kaspa.Mainnet, "test-version")(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Preset != config.PresetIgra {
		t.Fatalf("Preset = %v, want Igra", body.Preset)
	}
	if body.Network != string(kaspa.Mainnet) {
		t.Fatalf("Network = %v, want Mainnet", body.Network)
	}
	if body.Version != "test-version" {
		t.Fatalf("Version = %v, want test-version", body.Version)
	}
}

func TestHealthHandler_DefaultsToOfficialPreset(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	settings := store.NewRPCSettingsStore(kv)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()

	HealthHandler(settings, kaspa.Testnet10, "test-version")(rr, req)

	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Preset != config.PresetOfficial {
		t.Fatalf("Preset = %v, want Official default", body.Preset)
	}
}
