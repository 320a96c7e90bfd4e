package rpc

import "github.com/kaspax/txkernel/internal/config"

// LocalNodeStatus mirrors the local-node status collaborator the kernel
// consumes.
type LocalNodeStatus struct {
	Running        bool
	RPCBaseURL     string
	RPCHealthy     bool
	Synced         bool
	NetworkProfile string
}

// resolveLocalNode decides whether the local node should be injected ahead of
// the remote pool, returning a fixed reason-string taxonomy.
func resolveLocalNode(enabled bool, status LocalNodeStatus, requireSynced bool, targetNetwork string) (useLocal bool, reason string) {
	if !enabled {
		return false, config.ReasonLocalDisabled
	}
	if status.RPCBaseURL == "" {
		return false, config.ReasonLocalEndpointMissing
	}
	if !status.RPCHealthy {
		return false, config.ReasonLocalUnhealthy
	}
	if requireSynced && !status.Synced {
		return false, config.ReasonLocalSyncing
	}
	if status.NetworkProfile != targetNetwork {
		return false, config.ReasonLocalProfileMismatch
	}
	return true, config.ReasonLocalEnabledHealthy
}
