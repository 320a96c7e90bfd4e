package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/store"
)

// healthResponse is GET /health's body: enough for an operator to see which
// backend a network is currently configured to use without a second call.
type healthResponse struct {
	Status  string                `json:"status"`
	Version string                `json:"version"`
	Network string                `json:"network"`
	Preset  config.ProviderPreset `json:"rpcPreset"`
	Custom  string                `json:"customRpcUrl,omitempty"`
}

// HealthHandler returns a handler for GET /health.
func HealthHandler(settings *store.RPCSettingsStore, network kaspa.Network, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		preset, err := settings.Preset(network)
		if err != nil {
			writeErr(w, err)
			return
		}
		custom, err := settings.CustomURL(network)
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Version: version,
			Network: string(network),
			Preset:  preset,
			Custom:  custom,
		})
	}
}
