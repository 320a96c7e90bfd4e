package signer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kaspax/txkernel/internal/credential"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kerrors"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

// fakeStore is a minimal credential.Store for tests, standing in for a real
// locked/unlocked mnemonic-file store without touching disk.
type fakeStore struct {
	locked  bool
	session *credential.Session
}

func (f *fakeStore) Locked() bool { return f.locked }

func (f *fakeStore) GetSession(fromAddress string) (*credential.Session, error) {
	if f.locked {
		return nil, nil
	}
	sess := *f.session
	sess.Address = fromAddress
	return &sess, nil
}

func unlockedStore(index uint32) *fakeStore {
	return &fakeStore{
		locked: false,
		session: &credential.Session{
			Mnemonic: testMnemonic,
			Derivation: credential.Derivation{
				Purpose: 44,
				Coin:    111111,
				Account: 0,
				Change:  0,
				Index:   index,
			},
		},
	}
}

func sampleTx() *kaspa.PendingTx {
	return &kaspa.PendingTx{
		FromAddress: "kaspa:qqfrom",
		Inputs: []kaspa.UTXO{
			{Outpoint: kaspa.Outpoint{TxID: "abc", OutputIndex: 0}, Amount: 500_000_000},
		},
		Outputs: []kaspa.Output{
			{Address: "kaspa:qqto", Amount: 100_000_000},
		},
		Change: &kaspa.Output{Address: "kaspa:qqfrom", Amount: 399_990_000},
		Fee:    10_000,
	}
}

func TestSign_LockedWalletFails(t *testing.T) {
	s := New(&fakeStore{locked: true})
	_, err := s.Sign(sampleTx())
	if !errors.Is(err, kerrors.ErrWalletLocked) {
		t.Fatalf("expected ErrWalletLocked, got %v", err)
	}
}

func TestSign_ProducesValidPayload(t *testing.T) {
	s := New(unlockedStore(0))
	raw, err := s.Sign(sampleTx())
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	var decoded payload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal signed payload: %v", err)
	}
	if len(decoded.Inputs) != 1 {
		t.Fatalf("expected 1 signed input, got %d", len(decoded.Inputs))
	}
	if len(decoded.Inputs[0].Signature) == 0 {
		t.Fatal("expected a non-empty schnorr signature")
	}
	if len(decoded.Inputs[0].PublicKey) != 33 {
		t.Fatalf("expected 33-byte compressed pubkey, got %d bytes", len(decoded.Inputs[0].PublicKey))
	}
}

func TestSign_DifferentIndicesProduceDifferentKeys(t *testing.T) {
	s0 := New(unlockedStore(0))
	s1 := New(unlockedStore(1))

	raw0, err := s0.Sign(sampleTx())
	if err != nil {
		t.Fatalf("Sign() index 0 error = %v", err)
	}
	raw1, err := s1.Sign(sampleTx())
	if err != nil {
		t.Fatalf("Sign() index 1 error = %v", err)
	}

	var p0, p1 payload
	json.Unmarshal(raw0, &p0)
	json.Unmarshal(raw1, &p1)

	if string(p0.Inputs[0].PublicKey) == string(p1.Inputs[0].PublicKey) {
		t.Fatal("expected distinct signing keys for distinct derivation indices")
	}
}
