// Package session holds the per-user view state over a shared ledger and
// derives everything a screen needs to render it.
package session

import (
	"context"
	"strings"
	"sync"

	"billsplit/internal/core"
	"billsplit/internal/ledger"
	"billsplit/internal/log"
	"billsplit/internal/report"
	"billsplit/internal/split"
)

// Ledger is the subset of the expense store a session drives.
type Ledger interface {
	Insert(ctx context.Context, name string, amount float64, category core.Category, eventName string) (core.Expense, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (core.Expense, error)
	All() []core.Expense
}

// Rates is the subset of the rate cache a session reads.
type Rates interface {
	Base() string
	Rate(code string) float64
}

// State is the ephemeral filter selection. It is never persisted.
type State struct {
	Event    string `json:"event"`
	Currency string `json:"currency"`
	Persons  int    `json:"persons"`
}

// Item is one visible expense with its converted amount.
type Item struct {
	core.Expense
	Icon          string  `json:"icon"`
	DisplayAmount float64 `json:"displayAmount"`
	Display       string  `json:"display"`
}

// View is a consistent snapshot of everything derived from the ledger and
// the current state.
type View struct {
	State     State         `json:"state"`
	Items     []Item        `json:"items"`
	Events    []string      `json:"events"`
	Summary   split.Summary `json:"summary"`
	Total     string        `json:"total"`
	PerPerson string        `json:"perPerson"`
	ShareText string        `json:"shareText"`
}

// Currencies offered by the currency picker.
var Currencies = []string{"INR", "USD", "EUR", "GBP"}

type Session struct {
	ledger Ledger
	rates  Rates
	logger *log.Logger

	defaultEvent string

	mu    sync.Mutex
	state State
}

type Option func(*Session)

// WithDefaultEvent sets the event used for unassigned expenses while the
// filter shows all events. Blank names are ignored.
func WithDefaultEvent(name string) Option {
	return func(s *Session) {
		if strings.TrimSpace(name) != "" && name != ledger.AllEvents {
			s.defaultEvent = name
		}
	}
}

// New starts a session on all events, the base currency and one person.
func New(l Ledger, rates Rates, logger *log.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Session{
		ledger:       l,
		rates:        rates,
		logger:       logger.WithComponent(log.ComponentSession),
		defaultEvent: core.DefaultEvent,
		state: State{
			Event:    ledger.AllEvents,
			Currency: rates.Base(),
			Persons:  1,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetEventFilter selects an event, or ledger.AllEvents to show everything.
// A blank name selects all events.
func (s *Session) SetEventFilter(event string) {
	if strings.TrimSpace(event) == "" {
		event = ledger.AllEvents
	}
	s.mu.Lock()
	s.state.Event = event
	s.mu.Unlock()
}

// SetCurrency selects the display currency. Codes without a known rate
// display at rate 1.
func (s *Session) SetCurrency(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = s.rates.Base()
	}
	s.mu.Lock()
	s.state.Currency = code
	s.mu.Unlock()
}

// SetPersonCount stores n as given; per-person amounts treat n < 1 as zero.
func (s *Session) SetPersonCount(n int) {
	s.mu.Lock()
	s.state.Persons = n
	s.mu.Unlock()
}

func (s *Session) IncrementPersons() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Persons++
	return s.state.Persons
}

// DecrementPersons lowers the head count but never below one.
func (s *Session) DecrementPersons() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Persons > 1 {
		s.state.Persons--
	}
	return s.state.Persons
}

// AddExpense records an expense. A blank event falls back to the current
// filter, or to the default event when the filter shows all events.
func (s *Session) AddExpense(ctx context.Context, name string, amount float64, category core.Category, event string) (core.Expense, error) {
	if strings.TrimSpace(event) == "" {
		if current := s.State().Event; current != ledger.AllEvents {
			event = current
		} else {
			event = s.defaultEvent
		}
	}
	e, err := s.ledger.Insert(ctx, name, amount, category, event)
	if err != nil {
		return core.Expense{}, err
	}
	s.logger.DebugContext(ctx, "Expense added", log.FieldExpenseID, e.ID, log.FieldEvent, e.EventName)
	return e, nil
}

func (s *Session) RemoveExpense(ctx context.Context, id int64) error {
	return s.ledger.Delete(ctx, id)
}

// Expense looks up one record regardless of the event filter.
func (s *Session) Expense(ctx context.Context, id int64) (core.Expense, error) {
	return s.ledger.Get(ctx, id)
}

// Events lists the distinct event names, preceded by ledger.AllEvents.
func (s *Session) Events() []string {
	return append([]string{ledger.AllEvents}, ledger.Events(s.ledger.All())...)
}

// View derives the visible records and their totals from one snapshot of
// the ledger.
func (s *Session) View() View {
	st := s.State()
	all := s.ledger.All()
	visible := ledger.Filter(all, st.Event)

	items := make([]Item, len(visible))
	for i, e := range visible {
		amt := split.LineAmount(e, s.rates, st.Currency)
		items[i] = Item{
			Expense:       e,
			Icon:          e.Category.Icon(),
			DisplayAmount: amt,
			Display:       core.FormatAmount(amt, st.Currency),
		}
	}

	sum := split.Summarize(visible, s.rates, st.Currency, st.Persons)
	return View{
		State:     st,
		Items:     items,
		Events:    append([]string{ledger.AllEvents}, ledger.Events(all)...),
		Summary:   sum,
		Total:     core.FormatAmount(sum.Total, st.Currency),
		PerPerson: core.FormatAmount(sum.PerPerson, st.Currency),
		ShareText: report.ShareText(st.Event, sum),
	}
}

// Lines adapts the view items for report rendering.
func (v View) Lines() []report.Line {
	lines := make([]report.Line, len(v.Items))
	for i, it := range v.Items {
		lines[i] = report.Line{Expense: it.Expense, DisplayAmount: it.DisplayAmount}
	}
	return lines
}
