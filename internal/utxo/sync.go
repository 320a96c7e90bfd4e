// Package utxo implements UtxoSync and CoinSelector: the authoritative
// spendable view of an address and largest-first input selection against
// it.
package utxo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kerrors"
	"github.com/kaspax/txkernel/internal/rpc"
)

// Fetcher is the subset of rpc.Client a Sync needs, kept narrow so tests can
// supply a scripted double instead of spinning up an httptest server.
type Fetcher interface {
	FetchUTXOs(ctx context.Context, network kaspa.Network, opts rpc.ResolveOptions, address string) ([]kaspa.UTXO, error)
}

type cacheEntry struct {
	set *kaspa.UtxoSet
	at  time.Time
}

// Sync caches per-address UtxoSets for config.UtxoCacheTTLMS.
type Sync struct {
	mu      sync.Mutex
	fetcher Fetcher
	clk     clock.Clock
	ttl     time.Duration
	network kaspa.Network
	rpcOpts rpc.ResolveOptions
	cache   map[string]cacheEntry
}

// NewSync creates a UtxoSync bound to a network and RPC resolution options.
func NewSync(fetcher Fetcher, clk clock.Clock, network kaspa.Network, rpcOpts rpc.ResolveOptions) *Sync {
	return &Sync{
		fetcher: fetcher,
		clk:     clk,
		ttl:     config.MillisDuration(config.UtxoCacheTTLMS),
		network: network,
		rpcOpts: rpcOpts,
		cache:   make(map[string]cacheEntry),
	}
}

// SyncUTXOs forces a fresh fetch for address, bypassing the cache.
func (s *Sync) SyncUTXOs(ctx context.Context, address string) (*kaspa.UtxoSet, error) {
	utxos, err := s.fetcher.FetchUTXOs(ctx, s.network, s.rpcOpts, address)
	if err != nil {
		return nil, err
	}

	set := &kaspa.UtxoSet{
		OwnerAddress: address,
		UTXOs:        utxos,
		LastSyncAt:   s.clk.Now(),
	}
	for _, u := range utxos {
		set.ConfirmedBalance += u.Amount
	}

	s.mu.Lock()
	s.cache[address] = cacheEntry{set: set, at: s.clk.Now()}
	s.mu.Unlock()

	return set, nil
}

// GetOrSyncUTXOs returns the cached set if fresh, else forces a sync.
func (s *Sync) GetOrSyncUTXOs(ctx context.Context, address string) (*kaspa.UtxoSet, error) {
	s.mu.Lock()
	entry, ok := s.cache[address]
	fresh := ok && s.clk.Now().Sub(entry.at) < s.ttl
	s.mu.Unlock()

	if fresh {
		return entry.set, nil
	}
	return s.SyncUTXOs(ctx, address)
}

// InvalidateCache drops the cached set for address, or every address if
// address is empty (called after a successful broadcast).
func (s *Sync) InvalidateCache(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if address == "" {
		s.cache = make(map[string]cacheEntry)
		return
	}
	delete(s.cache, address)
}

// SelectUTXOs picks a largest-first, locked-key-filtered, standard-only input
// set covering targetSompi+feeSompi.
func SelectUTXOs(utxos []kaspa.UTXO, targetSompi, feeSompi kaspa.Sompi, lockedKeys map[string]bool) ([]kaspa.UTXO, kaspa.Sompi, error) {
	candidates := make([]kaspa.UTXO, 0, len(utxos))
	var covenantExcluded, lockedExcluded int
	for _, u := range utxos {
		if u.ScriptClass != kaspa.ScriptClassStandard {
			covenantExcluded++
			continue
		}
		if lockedKeys[u.Outpoint.Key()] {
			lockedExcluded++
			continue
		}
		candidates = append(candidates, u)
	}

	if len(utxos) > 0 && len(candidates) == 0 {
		if lockedExcluded == 0 && covenantExcluded > 0 {
			return nil, 0, kerrors.ErrCovenantOnlyFunds
		}
		return nil, 0, kerrors.ErrInsufficientFunds
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Amount > candidates[j].Amount
	})

	target := targetSompi + feeSompi
	var selected []kaspa.UTXO
	var running kaspa.Sompi
	for _, u := range candidates {
		selected = append(selected, u)
		running += u.Amount
		if running >= target {
			return selected, running, nil
		}
	}

	return nil, 0, kerrors.ErrInsufficientFunds
}
