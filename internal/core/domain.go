package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	Food   Category = "Food"
	Travel Category = "Travel"
	Home   Category = "Home"
	Fun    Category = "Fun"
	Other  Category = "Other"
)

// DefaultEvent tags expenses that were added without an event.
const DefaultEvent = "Default"

type (
	// Category is stored verbatim; values outside the known set are kept as
	// entered and grouped under Other wherever a closed set is needed.
	Category string

	// Expense is an immutable ledger record. Amount is in the base currency.
	Expense struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Amount    float64   `json:"amount"`
		Category  Category  `json:"category"`
		EventName string    `json:"eventName"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Draft is a validated expense waiting for the persistence layer to
	// assign its identifier.
	Draft struct {
		Name      string
		Amount    float64
		Category  Category
		EventName string
		CreatedAt time.Time
	}
)

var (
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidAmount = errors.New("amount must be a finite positive number")
)

// ValidationError reports an input rejected before anything is persisted.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Categories returns the known categories in display order.
func Categories() []Category {
	return []Category{Food, Travel, Home, Fun, Other}
}

// Known reports whether c belongs to the closed category set.
func (c Category) Known() bool {
	switch c {
	case Food, Travel, Home, Fun, Other:
		return true
	default:
		return false
	}
}

// Bucket maps unknown categories to Other.
func (c Category) Bucket() Category {
	if c.Known() {
		return c
	}
	return Other
}

// Icon returns the icon name used to render the category.
func (c Category) Icon() string {
	switch c {
	case Food:
		return "shopping_cart"
	case Travel:
		return "info"
	case Home:
		return "home"
	case Fun:
		return "star"
	default:
		return "list"
	}
}

// NewDraft trims and validates user input. A blank event falls back to
// DefaultEvent, a blank category to Other; both are otherwise kept verbatim.
func NewDraft(name string, amount float64, category Category, eventName string, now time.Time) (Draft, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Draft{}, &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if err := ValidateAmount(amount); err != nil {
		return Draft{}, err
	}
	if strings.TrimSpace(string(category)) == "" {
		category = Other
	}
	if strings.TrimSpace(eventName) == "" {
		eventName = DefaultEvent
	}
	return Draft{
		Name:      name,
		Amount:    amount,
		Category:  category,
		EventName: eventName,
		CreatedAt: now,
	}, nil
}

// ValidateAmount rejects zero, negative, NaN and infinite amounts.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	return nil
}

// Expense materializes the draft with the identifier assigned by storage.
func (d Draft) Expense(id int64) Expense {
	return Expense{
		ID:        id,
		Name:      d.Name,
		Amount:    d.Amount,
		Category:  d.Category,
		EventName: d.EventName,
		CreatedAt: d.CreatedAt,
	}
}

// CreatedAtMillis returns the creation time as epoch milliseconds, the unit
// used by the persisted schema.
func (e Expense) CreatedAtMillis() int64 {
	return e.CreatedAt.UnixMilli()
}
