package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/crucial707/asset-audit/internal/audit"
)

// ErrMessageInternal is the generic message for 500 responses.
const ErrMessageInternal = "internal server error"

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// JSONResult sends a success envelope.
func JSONResult(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// JSONError sends a failure envelope with a single error message.
func JSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, Envelope{Error: message})
}

// JSONValidationError sends a failure envelope with "error" and optional "fields" for field-level details.
// status is typically http.StatusBadRequest (400).
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	writeJSON(w, status, Envelope{Error: message, Fields: fields})
}

// writeServiceError maps engine errors to status codes. data is attached only to
// already-scanned responses, where it carries the previously resolved asset.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, data any) {
	var ve *audit.ValidationError
	var se *audit.StateError
	switch {
	case errors.As(err, &ve):
		JSONValidationError(w, "validation failed", ve.Fields, http.StatusBadRequest)
	case errors.Is(err, audit.ErrNotFound):
		JSONError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &se):
		JSONError(w, se.Msg, http.StatusConflict)
	case errors.Is(err, audit.ErrAlreadyScanned):
		writeJSON(w, http.StatusConflict, Envelope{Error: err.Error(), Data: data})
	default:
		logger.Error("audit operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, Envelope{Error: ErrMessageInternal, Detail: err.Error()})
	}
}
