package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"billsplit/internal/core"
	"billsplit/internal/ledger"
	"billsplit/internal/log"
)

// errorResponse is the body of every non-2xx JSON reply.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, field string) {
	writeJSON(w, status, errorResponse{Error: msg, Field: field})
}

// writeBadRequest reports malformed input, naming the field when known.
func writeBadRequest(w http.ResponseWriter, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error(), verr.Field)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error(), "")
}

// writeLedgerError answers 400 for validation errors and 500 for anything
// else, logging the latter.
func writeLedgerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if core.IsValidation(err) {
		writeBadRequest(w, err)
		return
	}

	fields := log.NewFields().WithOperation(op).WithError(err)
	var perr *ledger.PersistenceError
	if errors.As(err, &perr) {
		fields = fields.WithErrorType(log.ErrorTypeDatabase)
	} else {
		fields = fields.WithErrorType(log.ErrorTypeInternal)
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger operation failed", fields.ToSlice()...)
	writeError(w, http.StatusInternalServerError, "could not save changes", "")
}
