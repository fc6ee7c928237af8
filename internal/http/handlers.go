package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"billsplit/internal/charts"
	"billsplit/internal/ledger"
	"billsplit/internal/log"
	"billsplit/internal/report"
	"billsplit/internal/session"
)

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handlePatchView(w http.ResponseWriter, r *http.Request) {
	p, err := parseViewPatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if p.Event != nil {
		s.session.SetEventFilter(*p.Event)
	}
	if p.Currency != nil {
		s.session.SetCurrency(*p.Currency)
	}
	if p.Persons != nil {
		s.session.SetPersonCount(*p.Persons)
	}
	for ; p.PersonsDelta > 0; p.PersonsDelta-- {
		s.session.IncrementPersons()
	}
	for ; p.PersonsDelta < 0; p.PersonsDelta++ {
		s.session.DecrementPersons()
	}
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.View().Items)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "id")
		return
	}
	e, err := s.session.Expense(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "expense not found", "id")
		return
	}
	if err != nil {
		writeLedgerError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := parseExpense(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	e, err := s.session.AddExpense(r.Context(), in.Name, in.Amount, in.Category, in.Event)
	if err != nil {
		writeLedgerError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.NewFields().WithExpense(e.ID, e.Name, e.Amount, string(e.Category), e.EventName).ToSlice()...)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "id")
		return
	}
	if err := s.session.RemoveExpense(r.Context(), id); err != nil {
		writeLedgerError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Events())
}

type ratesResponse struct {
	Base        string             `json:"base"`
	Rates       map[string]float64 `json:"rates"`
	RefreshedAt *time.Time         `json:"refreshedAt,omitempty"`
}

func (s *Server) ratesBody() ratesResponse {
	resp := ratesResponse{Base: s.rates.Base(), Rates: s.rates.Rates()}
	if at := s.rates.RefreshedAt(); !at.IsZero() {
		resp.RefreshedAt = &at
	}
	return resp
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ratesBody())
}

// handleRefreshRates forces a fetch. On failure the cached table is kept
// and still returned, with a 502 status.
func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if err := s.rates.Refresh(r.Context()); err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, s.ratesBody())
}

// handleReport renders the current view as markdown. With ?style= set to a
// glamour style the markdown is rendered for a terminal.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	v := s.session.View()
	var buf bytes.Buffer
	report.Markdown(&buf, v.State.Event, v.Summary, v.Lines())

	style := strings.TrimSpace(r.URL.Query().Get("style"))
	if style == "" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
		return
	}
	out, err := report.Render(buf.String(), style)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "style")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// handleChart serves the category pie for the current filter. Images are
// cached per event until the ledger changes.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	gen := s.chartGen.Load()
	v := s.session.View()

	png, err := s.chartFor(v, gen)
	if errors.Is(err, charts.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart render failed",
			log.NewFields().WithOperation(log.OpRender).WithErrorType(log.ErrorTypeInternal).WithError(err).ToSlice()...)
		writeError(w, http.StatusInternalServerError, "could not render chart", "")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}

// chartFor returns the chart for v, which must have been taken after gen
// was read.
func (s *Server) chartFor(v session.View, gen uint64) ([]byte, error) {
	key := chartKey(v.State.Event, gen)
	if png, ok := s.charts.Get(key); ok {
		return png, nil
	}
	png, err := charts.CategoryPie(v.Summary, charts.Options{Title: v.State.Event})
	if err != nil {
		return nil, err
	}
	if s.chartGen.Load() == gen {
		s.charts.Set(key, png)
	}
	return png, nil
}

func chartKey(event string, gen uint64) string {
	return event + "|" + strconv.FormatUint(gen, 10)
}
