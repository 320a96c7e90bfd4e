package kvstore

import (
	"path/filepath"
	"testing"
)

func TestBoltStore_SetGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.Set("ns1", "k1", []byte("v1")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, ok, err := s.Get("ns1", "k1")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("Get() = %q, %v, %v; want v1, true, nil", v, ok, err)
	}

	if err := s.Remove("ns1", "k1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	_, ok, err = s.Get("ns1", "k1")
	if err != nil || ok {
		t.Fatalf("Get() after remove = ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestBoltStore_GetMissingNamespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	_, ok, err := s.Get("nope", "k1")
	if err != nil || ok {
		t.Fatalf("Get() on missing namespace = ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestBoltStore_KeysAndAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	s.Set("ns", "a", []byte("1"))
	s.Set("ns", "b", []byte("2"))

	keys, err := s.Keys("ns")
	if err != nil || len(keys) != 2 {
		t.Fatalf("Keys() = %v, %v; want 2 keys", keys, err)
	}

	all, err := s.All("ns")
	if err != nil || len(all) != 2 || string(all["a"]) != "1" || string(all["b"]) != "2" {
		t.Fatalf("All() = %v, %v", all, err)
	}
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Set("ns", "k", []byte("persisted"))
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	v, ok, err := s2.Get("ns", "k")
	if err != nil || !ok || string(v) != "persisted" {
		t.Fatalf("Get() after reopen = %q, %v, %v", v, ok, err)
	}
}
