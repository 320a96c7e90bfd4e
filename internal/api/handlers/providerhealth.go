package handlers

import (
	"net/http"

	"github.com/kaspax/txkernel/internal/store/auditdb"
)

// ProviderHealthHandler returns a handler for GET /provider-health: the
// operator-facing read surface over the auditdb mirror of rpc.HealthTracker's
// in-memory health/breaker maps.
func ProviderHealthHandler(db *auditdb.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.AllProviderHealth()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{Data: rows, Meta: &Meta{Total: len(rows)}})
	}
}
