package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"billsplit/internal/core"
	"billsplit/internal/ledger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]int{"id": 7})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || got["id"] != 7 {
		t.Errorf("body = %v, err = %v", got, err)
	}
}

func TestWriteBadRequest(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField string
	}{
		{"validation error names field", &core.ValidationError{Field: "name", Err: core.ErrEmptyName}, "name"},
		{"wrapped validation error", fmt.Errorf("parse: %w", &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}), "amount"},
		{"plain error", errors.New("invalid JSON body"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeBadRequest(rec, tt.err)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			body := decodeError(t, rec)
			if body.Field != tt.wantField {
				t.Errorf("field = %q, want %q", body.Field, tt.wantField)
			}
			if body.Error == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}

func TestWriteLedgerError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}, http.StatusBadRequest},
		{"persistence", &ledger.PersistenceError{Op: "insert", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/expenses", nil)
			rec := httptest.NewRecorder()
			writeLedgerError(rec, req, "create", tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeError(t, rec)
			if tt.wantStatus == http.StatusInternalServerError && body.Error != "could not save changes" {
				t.Errorf("internal details leaked: %q", body.Error)
			}
		})
	}
}
