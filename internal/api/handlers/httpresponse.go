package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the standard API response envelope, matching the shape the
// teacher's handlers already used for every endpoint.
type Response struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta carries pagination and execution metadata.
type Meta struct {
	Page          int            `json:"page,omitempty"`
	PageSize      int            `json:"pageSize,omitempty"`
	Total         int            `json:"total,omitempty"`
	ExecutionTime int64          `json:"executionTimeMs,omitempty"`
	AgentJobID    string         `json:"agentJobId,omitempty"`
	StateCounts   map[string]int `json:"stateCounts,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a taxonomy code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeErr classifies err into a taxonomy code and HTTP status and writes
// the corresponding error envelope.
func writeErr(w http.ResponseWriter, err error) {
	code, status := classify(err)
	writeError(w, status, code, err.Error())
}
