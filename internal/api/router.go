package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/kaspax/txkernel/internal/api/handlers"
	"github.com/kaspax/txkernel/internal/api/middleware"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kernel"
	"github.com/kaspax/txkernel/internal/store"
	"github.com/kaspax/txkernel/internal/store/auditdb"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(k *kernel.Kernel, txStore *store.PendingTxStore, rpcSettings *store.RPCSettingsStore, audit *auditdb.DB, network kaspa.Network) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogging)
	r.Use(middleware.HostCheck)
	r.Use(middleware.CORS)
	r.Use(middleware.CSRF)

	slog.Info("router initialized",
		"middleware", []string{"requestLogging", "hostCheck", "cors", "csrf"},
	)

	intentDeps := &handlers.IntentDeps{Kernel: k, Store: txStore, Network: network}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(rpcSettings, network, Version))

		r.Route("/intents", func(r chi.Router) {
			r.Post("/", handlers.CreateIntent(intentDeps))
			r.Get("/", handlers.ListIntents(intentDeps))
			r.Get("/{id}", handlers.GetIntent(intentDeps))
			r.Post("/retry", handlers.RetryByAgentJobID(intentDeps))
			r.Post("/{id}/retry", handlers.RetryIntent(intentDeps))
			r.Post("/{id}/cancel", handlers.CancelIntent(intentDeps))
		})

		r.Get("/audit", handlers.AuditHandler(audit))
		r.Get("/provider-health", handlers.ProviderHealthHandler(audit))
	})

	return r
}
