package handlers

import (
	"net/http"
	"strconv"

	"github.com/kaspax/txkernel/internal/store/auditdb"
)

// AuditHandler returns a handler for GET /audit. It supports filtering by
// runId or txId query params, falling back to the most recent events.
func AuditHandler(db *auditdb.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if runID := q.Get("runId"); runID != "" {
			events, err := db.EventsByRunID(runID)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, Response{Data: events, Meta: &Meta{Total: len(events)}})
			return
		}

		if txID := q.Get("txId"); txID != "" {
			events, err := db.EventsByTxID(txID)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, Response{Data: events, Meta: &Meta{Total: len(events)}})
			return
		}

		limit := 100
		if raw := q.Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		events, err := db.RecentEvents(limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{Data: events, Meta: &Meta{Total: len(events)}})
	}
}
