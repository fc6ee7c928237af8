package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"billsplit/internal/core"
	"billsplit/internal/ledger"
	"billsplit/internal/rates"
	"billsplit/internal/storage"
)

func newSession(t *testing.T) (*Session, *ledger.Store) {
	t.Helper()
	store, err := ledger.Open(context.Background(), storage.NewMemoryRepository())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cache := rates.NewCache("INR", rates.ProviderFunc(func(context.Context) (map[string]float64, error) {
		return map[string]float64{"USD": 0.012, "EUR": 0.011}, nil
	}))
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return New(store, cache, nil), store
}

func TestDefaults(t *testing.T) {
	s, _ := newSession(t)
	st := s.State()
	if st.Event != ledger.AllEvents || st.Currency != "INR" || st.Persons != 1 {
		t.Fatalf("unexpected defaults: %+v", st)
	}
	v := s.View()
	if len(v.Items) != 0 || v.Summary.Total != 0 || v.Summary.PerPerson != 0 {
		t.Fatalf("empty ledger should produce empty view: %+v", v)
	}
	if len(v.Events) != 1 || v.Events[0] != ledger.AllEvents {
		t.Fatalf("events = %v", v.Events)
	}
}

func TestAddExpenseEventResolution(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t)

	e, err := s.AddExpense(ctx, "Coffee", 80, core.Food, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.EventName != core.DefaultEvent {
		t.Fatalf("event = %q, want %q", e.EventName, core.DefaultEvent)
	}

	s.SetEventFilter("Goa")
	e, err = s.AddExpense(ctx, "Taxi", 200, core.Travel, "  ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.EventName != "Goa" {
		t.Fatalf("event = %q, want Goa", e.EventName)
	}

	e, err = s.AddExpense(ctx, "Hotel", 3000, core.Home, "Trip")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.EventName != "Trip" {
		t.Fatalf("explicit event should win, got %q", e.EventName)
	}
}

func TestConfiguredDefaultEvent(t *testing.T) {
	ctx := context.Background()
	base, store := newSession(t)
	s := New(store, base.rates, nil, WithDefaultEvent("Household"))

	e, err := s.AddExpense(ctx, "Milk", 60, core.Food, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.EventName != "Household" {
		t.Fatalf("event = %q, want Household", e.EventName)
	}

	s = New(store, base.rates, nil, WithDefaultEvent(ledger.AllEvents))
	e, err = s.AddExpense(ctx, "Bread", 40, core.Food, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.EventName != core.DefaultEvent {
		t.Fatalf("sentinel must not become a default event, got %q", e.EventName)
	}
}

func TestAddExpenseValidation(t *testing.T) {
	s, store := newSession(t)
	_, err := s.AddExpense(context.Background(), "Lunch", 0, core.Food, "")
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.All()) != 0 {
		t.Fatal("invalid expense must not be stored")
	}
}

func TestViewFiltersAndConverts(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t)
	mustAdd(t, s, "Lunch", 500, core.Food, "Goa")
	mustAdd(t, s, "Taxi", 200, core.Travel, "Goa")
	mustAdd(t, s, "Rent", 1000, core.Home, "Home")

	s.SetEventFilter("Goa")
	s.SetCurrency("usd")
	s.SetPersonCount(2)

	v := s.View()
	if v.State.Currency != "USD" {
		t.Fatalf("currency = %q", v.State.Currency)
	}
	if len(v.Items) != 2 || v.Items[0].Name != "Taxi" {
		t.Fatalf("unexpected items: %+v", v.Items)
	}
	if v.Items[0].Display != "$2.40" {
		t.Fatalf("line display = %q", v.Items[0].Display)
	}
	if v.Total != "$8.40" || v.PerPerson != "$4.20" {
		t.Fatalf("total=%s perPerson=%s", v.Total, v.PerPerson)
	}
	if !strings.Contains(v.ShareText, "(Goa)") {
		t.Fatalf("share text = %q", v.ShareText)
	}
	want := []string{ledger.AllEvents, "Goa", "Home"}
	if strings.Join(v.Events, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", v.Events, want)
	}
	if got := len(v.Lines()); got != 2 {
		t.Fatalf("lines = %d", got)
	}

	if err := s.RemoveExpense(ctx, v.Items[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := s.View().Total; got != "$6.00" {
		t.Fatalf("total after remove = %s", got)
	}
}

func TestUnknownCurrencyUsesIdentityRate(t *testing.T) {
	s, _ := newSession(t)
	mustAdd(t, s, "Lunch", 500, core.Food, "")
	s.SetCurrency("GBP")
	if got := s.View().Summary.Total; got != 500 {
		t.Fatalf("total = %v, want 500", got)
	}
}

func TestPersonCount(t *testing.T) {
	s, _ := newSession(t)
	if got := s.DecrementPersons(); got != 1 {
		t.Fatalf("decrement below one: %d", got)
	}
	if got := s.IncrementPersons(); got != 2 {
		t.Fatalf("increment: %d", got)
	}
	if got := s.DecrementPersons(); got != 1 {
		t.Fatalf("decrement: %d", got)
	}

	mustAdd(t, s, "Lunch", 500, core.Food, "")
	s.SetPersonCount(0)
	if got := s.View().Summary.PerPerson; got != 0 {
		t.Fatalf("per person with zero people = %v", got)
	}
}

func mustAdd(t *testing.T, s *Session, name string, amount float64, c core.Category, event string) {
	t.Helper()
	if _, err := s.AddExpense(context.Background(), name, amount, c, event); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
}
