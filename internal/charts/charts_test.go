package charts

import (
	"bytes"
	"errors"
	"testing"

	"billsplit/internal/core"
	"billsplit/internal/split"
)

func TestCategoryPie(t *testing.T) {
	records := []core.Expense{
		{ID: 1, Name: "Lunch", Amount: 500, Category: core.Food},
		{ID: 2, Name: "Taxi", Amount: 200, Category: core.Travel},
		{ID: 3, Name: "Rent", Amount: 1000, Category: core.Home},
	}
	png, err := CategoryPie(split.Summarize(records, split.Identity, "INR", 1), Options{Title: "Goa"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("output is not a PNG (%d bytes)", len(png))
	}
}

func TestCategoryPieEmpty(t *testing.T) {
	_, err := CategoryPie(split.Summarize(nil, split.Identity, "INR", 1), Options{})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestColor(t *testing.T) {
	if Color(core.Food) != palette[core.Food] {
		t.Fatal("food should use its palette color")
	}
	if Color("Groceries") != palette[core.Other] {
		t.Fatal("unknown category should use the Other color")
	}
}
