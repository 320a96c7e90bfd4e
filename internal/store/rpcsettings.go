package store

import (
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kvstore"
)

// RPCSettingsStore persists the per-network provider preset and optional
// custom URL override, under the kaspa.rpc-provider.v1 and kaspa.custom-rpc.v1
// KV namespaces. Keys are the network name itself; values are plain
// strings, not JSON, since both namespaces hold a single scalar per network.
type RPCSettingsStore struct {
	kv kvstore.KVStore
}

// NewRPCSettingsStore wires a RPCSettingsStore to its backing KVStore.
func NewRPCSettingsStore(kv kvstore.KVStore) *RPCSettingsStore {
	return &RPCSettingsStore{kv: kv}
}

// SetPreset records the provider preset chosen for network.
func (s *RPCSettingsStore) SetPreset(network kaspa.Network, preset config.ProviderPreset) error {
	return s.kv.Set(config.NamespaceRPCProvider, string(network), []byte(preset))
}

// Preset returns the provider preset for network, or config.PresetOfficial
// if never configured.
func (s *RPCSettingsStore) Preset(network kaspa.Network) (config.ProviderPreset, error) {
	raw, ok, err := s.kv.Get(config.NamespaceRPCProvider, string(network))
	if err != nil {
		return "", err
	}
	if !ok {
		return config.PresetOfficial, nil
	}
	return config.ProviderPreset(raw), nil
}

// SetCustomURL records the custom RPC endpoint for network.
func (s *RPCSettingsStore) SetCustomURL(network kaspa.Network, url string) error {
	return s.kv.Set(config.NamespaceCustomRPC, string(network), []byte(url))
}

// CustomURL returns the custom RPC endpoint for network, or "" if unset.
func (s *RPCSettingsStore) CustomURL(network kaspa.Network) (string, error) {
	raw, ok, err := s.kv.Get(config.NamespaceCustomRPC, string(network))
	if err != nil || !ok {
		return "", err
	}
	return string(raw), nil
}
