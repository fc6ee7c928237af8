package storage

import (
	"context"
	"slices"
	"sync"

	"billsplit/internal/core"
)

// MemoryRepository keeps records in process memory. Ids come from a counter
// that is never rewound, so deleted ids are not reused.
type MemoryRepository struct {
	mu     sync.Mutex
	lastID int64
	items  []core.Expense
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// NewMemoryRepositoryFrom seeds the repository; the id counter starts after
// the highest seeded id.
func NewMemoryRepositoryFrom(seed []core.Expense) *MemoryRepository {
	r := &MemoryRepository{items: slices.Clone(seed)}
	for _, e := range seed {
		r.lastID = max(r.lastID, e.ID)
	}
	return r
}

func (r *MemoryRepository) InsertExpense(_ context.Context, d core.Draft) (core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	e := d.Expense(r.lastID)
	r.items = append(r.items, e)
	return e, nil
}

func (r *MemoryRepository) DeleteExpense(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = slices.DeleteFunc(r.items, func(e core.Expense) bool { return e.ID == id })
	return nil
}

func (r *MemoryRepository) ListExpenses(_ context.Context) ([]core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.items)
	slices.Reverse(out)
	return out, nil
}

func (r *MemoryRepository) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.items {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, ErrNotFound
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
