package auditdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaspax/txkernel/internal/kaspa"
)

// InsertEvent mirrors one TelemetryEvent into the audit database. Nullable
// pointer fields on TelemetryEvent map to nullable columns.
func (d *DB) InsertEvent(e kaspa.TelemetryEvent) error {
	ctxJSON, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("marshal telemetry context for event %s: %w", e.ID, err)
	}

	var txState *string
	if e.TxState != nil {
		s := string(*e.TxState)
		txState = &s
	}
	var backendSource *string
	if e.BackendSource != nil {
		s := string(*e.BackendSource)
		backendSource = &s
	}

	_, err = d.conn.Exec(
		`INSERT INTO telemetry_events
			(id, run_id, channel, stage, status, timestamp, network, tx_id, tx_state,
			 backend_source, backend_reason, backend_endpoint, error, context_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		e.ID, e.RunID, string(e.Channel), string(e.Stage), string(e.Status),
		e.Timestamp.UTC().Format(time.RFC3339Nano), string(e.Network),
		e.TxID, txState, backendSource, e.BackendReason, e.BackendEndpoint,
		e.Error, string(ctxJSON),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry event %s: %w", e.ID, err)
	}
	return nil
}

// EventsByRunID returns every event recorded for runID, oldest first.
func (d *DB) EventsByRunID(runID string) ([]kaspa.TelemetryEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, channel, stage, status, timestamp, network, tx_id, tx_state,
			backend_source, backend_reason, backend_endpoint, error, context_json
		 FROM telemetry_events WHERE run_id = ? ORDER BY timestamp ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events for run %s: %w", runID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsByTxID returns every event recorded against txID, oldest first.
func (d *DB) EventsByTxID(txID string) ([]kaspa.TelemetryEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, channel, stage, status, timestamp, network, tx_id, tx_state,
			backend_source, backend_reason, backend_endpoint, error, context_json
		 FROM telemetry_events WHERE tx_id = ? ORDER BY timestamp ASC`,
		txID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events for tx %s: %w", txID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// RecentEvents returns the most recent limit events, newest first.
func (d *DB) RecentEvents(limit int) ([]kaspa.TelemetryEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, channel, stage, status, timestamp, network, tx_id, tx_state,
			backend_source, backend_reason, backend_endpoint, error, context_json
		 FROM telemetry_events ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]kaspa.TelemetryEvent, error) {
	var events []kaspa.TelemetryEvent
	for rows.Next() {
		var (
			e                                                    kaspa.TelemetryEvent
			channel, stage, status, network, timestamp, ctxJSON  string
			txID, txState, backendSource, backendReason, backendEndpoint, errMsg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &channel, &stage, &status, &timestamp, &network,
			&txID, &txState, &backendSource, &backendReason, &backendEndpoint, &errMsg, &ctxJSON); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}

		e.Channel = kaspa.TelemetryChannel(channel)
		e.Stage = kaspa.TelemetryStage(stage)
		e.Status = kaspa.TelemetryStatus(status)
		e.Network = kaspa.Network(network)

		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp for event %s: %w", e.ID, err)
		}
		e.Timestamp = ts

		if txID.Valid {
			v := txID.String
			e.TxID = &v
		}
		if txState.Valid {
			v := kaspa.PendingTxState(txState.String)
			e.TxState = &v
		}
		if backendSource.Valid {
			v := kaspa.ReceiptBackendSource(backendSource.String)
			e.BackendSource = &v
		}
		if backendReason.Valid {
			v := backendReason.String
			e.BackendReason = &v
		}
		if backendEndpoint.Valid {
			v := backendEndpoint.String
			e.BackendEndpoint = &v
		}
		if errMsg.Valid {
			v := errMsg.String
			e.Error = &v
		}
		if ctxJSON != "" {
			var ctx map[string]string
			if err := json.Unmarshal([]byte(ctxJSON), &ctx); err == nil {
				e.Context = ctx
			}
		}

		events = append(events, e)
	}
	return events, rows.Err()
}
