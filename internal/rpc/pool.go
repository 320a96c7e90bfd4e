package rpc

import (
	"sync"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
)

// presetEndpoints returns the ordered base-URL list a provider preset
// resolves to for a network, before local-node injection or custom overrides.
func presetEndpoints(preset config.ProviderPreset, network kaspa.Network, customURL string) []string {
	switch preset {
	case config.PresetCustom:
		if customURL != "" {
			return []string{customURL}
		}
		return nil
	case config.PresetIgra, config.PresetKasplex:
		// Alternate-gateway presets still resolve to the network's official
		// default until a dedicated Igra/Kasplex endpoint table is
		// configured; Official is always appended as the fallback tier.
		return []string{defaultEndpoint(network)}
	default: // PresetOfficial, PresetLocal (local injection happens separately)
		return []string{defaultEndpoint(network)}
	}
}

func defaultEndpoint(network kaspa.Network) string {
	switch network {
	case kaspa.Mainnet:
		return config.DefaultEndpointMainnet
	case kaspa.Testnet10:
		return config.DefaultEndpointTestnet10
	case kaspa.Testnet11:
		return config.DefaultEndpointTestnet11
	case kaspa.Testnet12:
		return config.DefaultEndpointTestnet12
	default:
		return config.DefaultEndpointMainnet
	}
}

// dedupe preserves order while dropping repeats.
func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// ResolveOptions carries the inputs the pool resolver needs beyond the
// static preset table.
type ResolveOptions struct {
	Preset            config.ProviderPreset
	CustomURL         string
	LocalEnabled      bool
	LocalStatus       LocalNodeStatus
	RequireLocalSynced bool
}

// ResolvedPool is the outcome of one pool resolution, cached for
// config.PoolCacheTTLMS.
type ResolvedPool struct {
	URLs      []string
	Source    kaspa.ReceiptBackendSource
	Reason    string
	resolvedAt time.Time
}

type poolCacheEntry struct {
	pool ResolvedPool
	at   time.Time
}

// PoolResolver resolves and short-lived-caches the ordered endpoint pool per
// network.
type PoolResolver struct {
	mu    sync.Mutex
	cache map[kaspa.Network]poolCacheEntry
	clk   clock.Clock
	ttl   time.Duration
}

// NewPoolResolver creates a resolver with the default pool cache TTL.
func NewPoolResolver(clk clock.Clock) *PoolResolver {
	return &PoolResolver{
		cache: make(map[kaspa.Network]poolCacheEntry),
		clk:   clk,
		ttl:   config.MillisDuration(config.PoolCacheTTLMS),
	}
}

// Resolve returns the ordered pool for network, honoring the pool cache.
func (r *PoolResolver) Resolve(network kaspa.Network, opts ResolveOptions) ResolvedPool {
	r.mu.Lock()
	if entry, ok := r.cache[network]; ok && r.clk.Now().Sub(entry.at) < r.ttl {
		r.mu.Unlock()
		return entry.pool
	}
	r.mu.Unlock()

	pool := r.resolveUncached(network, opts)

	r.mu.Lock()
	r.cache[network] = poolCacheEntry{pool: pool, at: r.clk.Now()}
	r.mu.Unlock()
	return pool
}

func (r *PoolResolver) resolveUncached(network kaspa.Network, opts ResolveOptions) ResolvedPool {
	remote := dedupe(presetEndpoints(opts.Preset, network, opts.CustomURL))

	useLocal, reason := resolveLocalNode(opts.LocalEnabled, opts.LocalStatus, opts.RequireLocalSynced, string(network))
	if !useLocal {
		return ResolvedPool{URLs: remote, Source: kaspa.BackendRemote, Reason: reason, resolvedAt: r.clk.Now()}
	}

	urls := dedupe(append([]string{opts.LocalStatus.RPCBaseURL}, remote...))
	return ResolvedPool{URLs: urls, Source: kaspa.BackendLocal, Reason: reason, resolvedAt: r.clk.Now()}
}

// Invalidate drops the cached pool for a network, forcing re-resolution.
func (r *PoolResolver) Invalidate(network kaspa.Network) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, network)
}
