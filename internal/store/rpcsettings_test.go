package store

import (
	"testing"

	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kvstore"
)

func TestRPCSettingsStore_DefaultsToOfficial(t *testing.T) {
	s := NewRPCSettingsStore(kvstore.NewMemoryStore())
	preset, err := s.Preset(kaspa.Mainnet)
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	if preset != config.PresetOfficial {
		t.Fatalf("preset = %q, want Official", preset)
	}
}

func TestRPCSettingsStore_SetAndGetPreset(t *testing.T) {
	s := NewRPCSettingsStore(kvstore.NewMemoryStore())
	if err := s.SetPreset(kaspa.Mainnet, config.PresetKasplex); err != nil {
		t.Fatalf("SetPreset() error = %v", err)
	}
	preset, err := s.Preset(kaspa.Mainnet)
	if err != nil {
		t.Fatal(err)
	}
	if preset != config.PresetKasplex {
		t.Fatalf("preset = %q, want Kasplex", preset)
	}
}

func TestRPCSettingsStore_CustomURL(t *testing.T) {
	s := NewRPCSettingsStore(kvstore.NewMemoryStore())
	if url, err := s.CustomURL(kaspa.Mainnet); err != nil || url != "" {
		t.Fatalf("expected empty custom url by default, got %q err=%v", url, err)
	}
	if err := s.SetCustomURL(kaspa.Mainnet, "https://example.com/rpc"); err != nil {
		t.Fatal(err)
	}
	url, err := s.CustomURL(kaspa.Mainnet)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://example.com/rpc" {
		t.Fatalf("url = %q, want https://example.com/rpc", url)
	}
}
