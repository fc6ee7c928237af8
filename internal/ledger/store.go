// Package ledger owns the expense collection: it validates and persists
// mutations through a single writer and serves newest-first snapshots to
// readers and observers.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"billsplit/internal/core"
	"billsplit/internal/log"
	"billsplit/internal/storage"
)

// ErrNotFound is returned by Get for ids with no durable record.
var ErrNotFound = storage.ErrNotFound

// Persistence is the durable store behind a Store. It may be shared with
// other processes. InsertExpense must assign ids that are never reused,
// DeleteExpense must accept unknown ids and GetExpense must return an error
// wrapping storage.ErrNotFound for them.
type Persistence interface {
	InsertExpense(ctx context.Context, d core.Draft) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
}

// PersistenceError wraps a failure of the durable store. The ledger is left
// unchanged when one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type ChangeKind string

const (
	ChangeSnapshot ChangeKind = "snapshot"
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is delivered to observers after every committed mutation, including
// ones committed by other writers and picked up by Sync, and once on
// subscription with Kind ChangeSnapshot.
type Change struct {
	Kind     ChangeKind
	Expense  core.Expense
	Snapshot []core.Expense
}

// Observer receives changes in commit order. It runs on the writer's
// goroutine and must not call Insert or Delete.
type Observer func(Change)

type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for mutation logging.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.WithComponent(log.ComponentLedger)
		}
	}
}

type Store struct {
	db     Persistence
	now    func() time.Time
	logger *log.Logger

	// writeMu serializes mutations and observer delivery.
	writeMu sync.Mutex

	mu      sync.RWMutex
	records []core.Expense

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// Open loads the current record set from db and returns a ready Store.
func Open(ctx context.Context, db Persistence, opts ...Option) (*Store, error) {
	s := &Store{
		db:        db,
		now:       time.Now,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)
	}

	records, err := db.ListExpenses(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: log.OpList, Err: err}
	}
	sortNewestFirst(records)
	s.records = records

	s.logger.InfoContext(ctx, "Ledger loaded", log.FieldCount, len(records))
	return s, nil
}

// Insert validates the input, persists it and publishes the new record.
// Nothing becomes visible unless the durable write succeeded.
func (s *Store) Insert(ctx context.Context, name string, amount float64, category core.Category, eventName string) (core.Expense, error) {
	draft, err := core.NewDraft(name, amount, category, eventName, s.now())
	if err != nil {
		return core.Expense{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	e, err := s.db.InsertExpense(ctx, draft)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist expense",
			log.NewFields().WithOperation(log.OpCreate).WithError(err).ToSlice()...)
		return core.Expense{}, &PersistenceError{Op: log.OpCreate, Err: err}
	}

	s.logger.InfoContext(ctx, "Expense added",
		log.NewFields().WithExpense(e.ID, e.Name, e.Amount, string(e.Category), e.EventName).ToSlice()...)

	s.reloadAfterCommit(ctx, func(records []core.Expense) []core.Expense {
		return append([]core.Expense{e}, records...)
	})
	return e, nil
}

// Delete removes the durable record with id. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// An id missing from the snapshot may belong to another writer; load it
	// so observers see the removal.
	if !s.has(id) {
		if err := s.syncLocked(ctx); err != nil {
			s.logger.WarnContext(ctx, "Reload before delete failed",
				log.NewFields().WithOperation(log.OpSync).WithError(err).ToSlice()...)
		}
	}

	if err := s.db.DeleteExpense(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete expense",
			log.NewFields().WithOperation(log.OpDelete).WithError(err).ToSlice()...)
		return &PersistenceError{Op: log.OpDelete, Err: err}
	}
	s.logger.InfoContext(ctx, "Expense removed", log.FieldExpenseID, id)

	s.reloadAfterCommit(ctx, func(records []core.Expense) []core.Expense {
		return slices.DeleteFunc(records, func(e core.Expense) bool { return e.ID == id })
	})
	return nil
}

// Sync reloads the record set from persistence and notifies observers of
// records other writers added or removed since the last load.
func (s *Store) Sync(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.syncLocked(ctx)
}

func (s *Store) syncLocked(ctx context.Context) error {
	records, err := s.db.ListExpenses(ctx)
	if err != nil {
		return &PersistenceError{Op: log.OpSync, Err: err}
	}
	s.replace(records)
	return nil
}

func (s *Store) has(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.records, func(e core.Expense) bool { return e.ID == id })
}

// Watch calls Sync every interval until ctx is done. Failures are logged
// and the previous snapshot is kept.
func (s *Store) Watch(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "Ledger sync failed",
					log.NewFields().WithOperation(log.OpSync).WithError(err).ToSlice()...)
			}
		}
	}
}

// reloadAfterCommit refreshes the snapshot from persistence once a write has
// committed. If the reload fails, local applies the write to the previous
// snapshot instead. Callers hold writeMu.
func (s *Store) reloadAfterCommit(ctx context.Context, local func([]core.Expense) []core.Expense) {
	records, err := s.db.ListExpenses(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Reload after commit failed, applying locally",
			log.NewFields().WithOperation(log.OpSync).WithError(err).ToSlice()...)
		records = local(s.All())
	}
	s.replace(records)
}

// replace installs records as the snapshot and notifies observers of the
// difference, removals first and then additions in id order.
func (s *Store) replace(records []core.Expense) {
	sortNewestFirst(records)

	s.mu.Lock()
	prev := s.records
	s.records = records
	s.mu.Unlock()

	added, removed := diffByID(prev, records)
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	snapshot := s.All()
	for _, e := range removed {
		s.notify(Change{Kind: ChangeRemoved, Expense: e, Snapshot: snapshot})
	}
	for _, e := range added {
		s.notify(Change{Kind: ChangeAdded, Expense: e, Snapshot: snapshot})
	}
}

// All returns a copy of the committed records, newest first.
func (s *Store) All() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Get reads the record with id from persistence.
func (s *Store) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.db.GetExpense(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, &PersistenceError{Op: log.OpRead, Err: err}
	}
	return e, nil
}

// Subscribe registers fn and immediately delivers the current snapshot.
// The returned function unregisters it.
func (s *Store) Subscribe(fn Observer) (cancel func()) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	fn(Change{Kind: ChangeSnapshot, Snapshot: s.All()})

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]Observer, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// diffByID returns the records only in next and only in prev, each in
// ascending id order.
func diffByID(prev, next []core.Expense) (added, removed []core.Expense) {
	inPrev := make(map[int64]bool, len(prev))
	for _, e := range prev {
		inPrev[e.ID] = true
	}
	inNext := make(map[int64]bool, len(next))
	for _, e := range next {
		inNext[e.ID] = true
		if !inPrev[e.ID] {
			added = append(added, e)
		}
	}
	for _, e := range prev {
		if !inNext[e.ID] {
			removed = append(removed, e)
		}
	}
	byID := func(a, b core.Expense) int { return cmp.Compare(a.ID, b.ID) }
	slices.SortFunc(added, byID)
	slices.SortFunc(removed, byID)
	return added, removed
}

func sortNewestFirst(records []core.Expense) {
	slices.SortStableFunc(records, func(a, b core.Expense) int {
		return cmp.Compare(b.ID, a.ID)
	})
}
