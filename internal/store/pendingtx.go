// Package store implements the kernel's durable record of in-flight
// transactions, under the pending.txs.v1 KV namespace, and the derived
// locked-UTXO view the builder consumes.
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kvstore"
)

// PendingTxStore persists PendingTx records keyed by ID under
// config.NamespacePendingTxs.
type PendingTxStore struct {
	mu sync.RWMutex
	kv kvstore.KVStore
}

// NewPendingTxStore wires a PendingTxStore to its backing KVStore.
func NewPendingTxStore(kv kvstore.KVStore) *PendingTxStore {
	return &PendingTxStore{kv: kv}
}

// Save upserts tx under its ID.
func (s *PendingTxStore) Save(tx *kaspa.PendingTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal pending tx %s: %w", tx.ID, err)
	}
	return s.kv.Set(config.NamespacePendingTxs, tx.ID, raw)
}

// Get loads a PendingTx by ID, returning (nil, false, nil) if absent.
func (s *PendingTxStore) Get(id string) (*kaspa.PendingTx, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok, err := s.kv.Get(config.NamespacePendingTxs, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	var tx kaspa.PendingTx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, false, fmt.Errorf("unmarshal pending tx %s: %w", id, err)
	}
	return &tx, true, nil
}

// All returns every persisted PendingTx, in no particular order.
func (s *PendingTxStore) All() ([]*kaspa.PendingTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.kv.All(config.NamespacePendingTxs)
	if err != nil {
		return nil, err
	}
	txs := make([]*kaspa.PendingTx, 0, len(entries))
	for id, raw := range entries {
		var tx kaspa.PendingTx
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("unmarshal pending tx %s: %w", id, err)
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}

// LockedKeys implements txbuilder.LockedKeyProvider: the union of
// LockedKeys() across every non-terminal PendingTx belonging to fromAddress.
func (s *PendingTxStore) LockedKeys(fromAddress string) (map[string]bool, error) {
	txs, err := s.All()
	if err != nil {
		return nil, err
	}
	locked := make(map[string]bool)
	for _, tx := range txs {
		if tx.FromAddress != fromAddress {
			continue
		}
		if !kaspa.NonTerminalStates[tx.State] {
			continue
		}
		for _, k := range tx.LockedKeys() {
			locked[k] = true
		}
	}
	return locked, nil
}

// ByTxID finds the PendingTx already carrying txid, for the kernel's
// idempotency check: never re-broadcast a tx with an existing txid.
func (s *PendingTxStore) ByTxID(txid string) (*kaspa.PendingTx, bool, error) {
	txs, err := s.All()
	if err != nil {
		return nil, false, err
	}
	for _, tx := range txs {
		if tx.TxID == txid {
			return tx, true, nil
		}
	}
	return nil, false, nil
}
