package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kernel"
	"github.com/kaspax/txkernel/internal/kerrors"
	"github.com/kaspax/txkernel/internal/store"
)

// IntentDeps holds the dependencies the intent handlers need.
type IntentDeps struct {
	Kernel  *kernel.Kernel
	Store   *store.PendingTxStore
	Network kaspa.Network
}

type recipientRequest struct {
	Address string      `json:"address"`
	Amount  kaspa.Sompi `json:"amount"`
}

type createIntentRequest struct {
	FromAddress       string              `json:"fromAddress"`
	Network           string              `json:"network"`
	Recipients        []recipientRequest  `json:"recipients"`
	AgentJobID        *string             `json:"agentJobId,omitempty"`
	OpReturnHex       *string             `json:"opReturnHex,omitempty"`
	AwaitConfirmation bool                `json:"awaitConfirmation"`
	ConfirmTimeoutMS  int                 `json:"confirmTimeoutMs,omitempty"`
	PollIntervalMS    int                 `json:"pollIntervalMs,omitempty"`
	TelemetryChannel  string              `json:"telemetryChannel,omitempty"`
	RunID             string              `json:"runId,omitempty"`
}

// CreateIntent handles POST /intents.
func CreateIntent(deps *IntentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req createIntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("invalid create intent request body", "error", err)
			writeError(w, http.StatusBadRequest, string(kerrors.KindIntentEmpty), "invalid request body")
			return
		}

		network := deps.Network
		if req.Network != "" {
			network = kaspa.Network(req.Network)
		}

		recipients := make([]kernel.Recipient, len(req.Recipients))
		for i, rc := range req.Recipients {
			recipients[i] = kernel.Recipient{Address: rc.Address, Amount: rc.Amount}
		}

		channel := kaspa.ChannelManual
		if req.TelemetryChannel != "" {
			channel = kaspa.TelemetryChannel(req.TelemetryChannel)
		}

		slog.Info("execute intent requested",
			"fromAddress", req.FromAddress,
			"network", network,
			"recipients", len(recipients),
			"awaitConfirmation", req.AwaitConfirmation,
		)

		tx, err := deps.Kernel.ExecuteIntent(r.Context(), kernel.Intent{
			FromAddress: req.FromAddress,
			Network:     network,
			Recipients:  recipients,
			AgentJobID:  req.AgentJobID,
			OpReturnHex: req.OpReturnHex,
		}, kernel.Options{
			AwaitConfirmation: req.AwaitConfirmation,
			ConfirmTimeoutMS:  req.ConfirmTimeoutMS,
			PollIntervalMS:    req.PollIntervalMS,
			TelemetryChannel:  channel,
			RunID:             req.RunID,
		})
		if err != nil {
			slog.Error("execute intent failed", "fromAddress", req.FromAddress, "error", err)
			writeErr(w, err)
			return
		}

		slog.Info("execute intent completed",
			"id", tx.ID,
			"state", tx.State,
			"txid", tx.TxID,
			"duration", time.Since(start).Round(time.Millisecond),
		)

		writeJSON(w, http.StatusOK, Response{
			Data: tx,
			Meta: &Meta{ExecutionTime: time.Since(start).Milliseconds()},
		})
	}
}

// GetIntent handles GET /intents/{id}.
func GetIntent(deps *IntentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, string(kerrors.KindPrecondFailed), "intent id is required")
			return
		}

		tx, ok, err := deps.Store.Get(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "IntentNotFound", "no intent with id "+id)
			return
		}

		writeJSON(w, http.StatusOK, Response{Data: tx})
	}
}

// ListIntents handles GET /intents. An optional ?agentJobId= filters to
// intents sharing that job ID and adds a per-state count breakdown to
// Meta, the kernel's per-agent-job analogue of the teacher's sweep-ID
// grouped summary.
func ListIntents(deps *IntentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := deps.Store.All()
		if err != nil {
			writeErr(w, err)
			return
		}

		agentJobID := r.URL.Query().Get("agentJobId")
		if agentJobID != "" {
			filtered := make([]*kaspa.PendingTx, 0, len(txs))
			for _, tx := range txs {
				if tx.AgentJobID != nil && *tx.AgentJobID == agentJobID {
					filtered = append(filtered, tx)
				}
			}
			txs = filtered
		}

		meta := &Meta{Total: len(txs), AgentJobID: agentJobID}
		if agentJobID != "" {
			meta.StateCounts = stateCounts(txs)
		}
		writeJSON(w, http.StatusOK, Response{Data: txs, Meta: meta})
	}
}

// stateCounts tallies intents by PendingTxState.
func stateCounts(txs []*kaspa.PendingTx) map[string]int {
	counts := make(map[string]int)
	for _, tx := range txs {
		counts[string(tx.State)]++
	}
	return counts
}

// transportClassRetryable reports whether a Failed intent's failure kind
// warrants a retry: only the transport-class failure kinds, never a
// validation or signing failure.
func transportClassRetryable(tx *kaspa.PendingTx) bool {
	switch kerrors.Kind(tx.FailureKind) {
	case kerrors.KindEndpointUnavailable, kerrors.KindBroadcastFailed, kerrors.KindConfirmTimeout, kerrors.KindCircuitOpen:
		return true
	default:
		return false
	}
}

// RetryIntent handles POST /intents/{id}/retry: rebuilds and re-executes a
// single Failed intent whose failure kind is transport-class. See
// RetryByAgentJobID for the grouped counterpart.
func RetryIntent(deps *IntentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		tx, ok, err := deps.Store.Get(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "IntentNotFound", "no intent with id "+id)
			return
		}
		if tx.State != kaspa.StateFailed {
			writeError(w, http.StatusConflict, string(kerrors.KindPrecondFailed), "only a Failed intent may be retried")
			return
		}
		if !transportClassRetryable(tx) {
			writeError(w, http.StatusUnprocessableEntity, string(kerrors.KindPrecondFailed), "failure is not transport-class; build a new intent instead")
			return
		}

		recipients := make([]kernel.Recipient, 0, len(tx.Outputs))
		for _, out := range tx.Outputs {
			recipients = append(recipients, kernel.Recipient{Address: out.Address, Amount: out.Amount})
		}

		slog.Info("retrying failed intent", "originalId", tx.ID, "fromAddress", tx.FromAddress)

		newTx, err := deps.Kernel.ExecuteIntent(r.Context(), kernel.Intent{
			FromAddress: tx.FromAddress,
			Network:     tx.Network,
			Recipients:  recipients,
			AgentJobID:  tx.AgentJobID,
			OpReturnHex: tx.OpReturnHex,
		}, kernel.Options{})
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusOK, Response{Data: newTx})
	}
}

// RetryByAgentJobID handles POST /intents/retry?agentJobId=: retries every
// Failed, transport-class-retryable intent sharing agentJobID, the grouped
// counterpart to RetryIntent's single-intent retry — generalizing the
// teacher's sweep-ID grouped resume/retry to this kernel's agent-job
// grouping key, since no sweep concept exists in a single-chain kernel.
func RetryByAgentJobID(deps *IntentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentJobID := r.URL.Query().Get("agentJobId")
		if agentJobID == "" {
			writeError(w, http.StatusBadRequest, string(kerrors.KindPrecondFailed), "agentJobId query parameter is required")
			return
		}

		txs, err := deps.Store.All()
		if err != nil {
			writeErr(w, err)
			return
		}

		retried := make([]*kaspa.PendingTx, 0)
		skipped := 0
		for _, tx := range txs {
			if tx.AgentJobID == nil || *tx.AgentJobID != agentJobID {
				continue
			}
			if tx.State != kaspa.StateFailed || !transportClassRetryable(tx) {
				skipped++
				continue
			}

			recipients := make([]kernel.Recipient, 0, len(tx.Outputs))
			for _, out := range tx.Outputs {
				recipients = append(recipients, kernel.Recipient{Address: out.Address, Amount: out.Amount})
			}

			slog.Info("retrying failed intent as part of agent job sweep", "originalId", tx.ID, "agentJobId", agentJobID)

			newTx, err := deps.Kernel.ExecuteIntent(r.Context(), kernel.Intent{
				FromAddress: tx.FromAddress,
				Network:     tx.Network,
				Recipients:  recipients,
				AgentJobID:  tx.AgentJobID,
				OpReturnHex: tx.OpReturnHex,
			}, kernel.Options{})
			if err != nil {
				slog.Error("retry failed within agent job sweep", "originalId", tx.ID, "agentJobId", agentJobID, "error", err)
				skipped++
				continue
			}
			retried = append(retried, newTx)
		}

		meta := &Meta{Total: len(retried), AgentJobID: agentJobID, StateCounts: stateCounts(retried)}
		meta.StateCounts["skipped"] = skipped
		writeJSON(w, http.StatusOK, Response{Data: retried, Meta: meta})
	}
}

// CancelIntent handles POST /intents/{id}/cancel.
func CancelIntent(deps *IntentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		tx, ok, err := deps.Store.Get(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "IntentNotFound", "no intent with id "+id)
			return
		}

		if err := deps.Kernel.Cancel(tx); err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusOK, Response{Data: tx})
	}
}
