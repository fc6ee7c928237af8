package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"billsplit/internal/core"
)

const maxBodyBytes = 64 << 10

// expenseInput is the body of POST /api/expenses. Amount accepts a JSON
// number or a string using a comma or dot as decimal separator.
type expenseInput struct {
	Name     string          `json:"name"`
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Event    string          `json:"event"`
}

type parsedExpense struct {
	Name     string
	Amount   float64
	Category core.Category
	Event    string
}

// viewPatch is the body of PATCH /api/view. Absent fields are left as is.
type viewPatch struct {
	Event    *string `json:"event"`
	Currency *string `json:"currency"`
	Persons  *int    `json:"persons"`
	// PersonsDelta steps the head count up or down, after Persons is applied.
	PersonsDelta int `json:"personsDelta"`
}

const maxPersonsDelta = 100

// parseExpense reads an expense from a JSON or form-encoded body.
func parseExpense(r *http.Request) (parsedExpense, error) {
	if isForm(r) {
		r.Body = io.NopCloser(io.LimitReader(r.Body, maxBodyBytes))
		if err := r.ParseForm(); err != nil {
			return parsedExpense{}, fmt.Errorf("invalid form: %w", err)
		}
		amount, err := core.ParseAmount(r.PostForm.Get("amount"))
		if err != nil {
			return parsedExpense{}, err
		}
		return parsedExpense{
			Name:     sanitizeInput(r.PostForm.Get("name")),
			Amount:   amount,
			Category: core.Category(sanitizeInput(r.PostForm.Get("category"))),
			Event:    sanitizeInput(r.PostForm.Get("event")),
		}, nil
	}

	var in expenseInput
	if err := decodeJSON(r, &in); err != nil {
		return parsedExpense{}, err
	}
	amount, err := parseRawAmount(in.Amount)
	if err != nil {
		return parsedExpense{}, err
	}
	return parsedExpense{
		Name:     sanitizeInput(in.Name),
		Amount:   amount,
		Category: core.Category(sanitizeInput(in.Category)),
		Event:    sanitizeInput(in.Event),
	}, nil
}

func parseRawAmount(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return core.ParseAmount(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	}
	return f, nil
}

func parseViewPatch(r *http.Request) (viewPatch, error) {
	var p viewPatch
	if err := decodeJSON(r, &p); err != nil {
		return viewPatch{}, err
	}
	if p.PersonsDelta > maxPersonsDelta || p.PersonsDelta < -maxPersonsDelta {
		return viewPatch{}, fmt.Errorf("personsDelta must be between -%d and %d", maxPersonsDelta, maxPersonsDelta)
	}
	return p, nil
}

// parseID reads the {id} path parameter.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded"
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
