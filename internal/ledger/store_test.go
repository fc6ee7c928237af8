package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"billsplit/internal/core"
	"billsplit/internal/log"
	"billsplit/internal/storage"
)

type failingDB struct {
	*storage.MemoryRepository
	failInsert bool
	failDelete bool
	failList   bool
}

func (f *failingDB) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	if f.failList {
		return nil, errDisk
	}
	return f.MemoryRepository.ListExpenses(ctx)
}

var errDisk = errors.New("disk full")

func (f *failingDB) InsertExpense(ctx context.Context, d core.Draft) (core.Expense, error) {
	if f.failInsert {
		return core.Expense{}, errDisk
	}
	return f.MemoryRepository.InsertExpense(ctx, d)
}

func (f *failingDB) DeleteExpense(ctx context.Context, id int64) error {
	if f.failDelete {
		return errDisk
	}
	return f.MemoryRepository.DeleteExpense(ctx, id)
}

func openTestStore(t *testing.T, db Persistence) *Store {
	t.Helper()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := Open(context.Background(), db,
		WithLogger(log.Discard()),
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestInsertThenQueryAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, storage.NewMemoryRepository())

	e, err := s.Insert(ctx, "Lunch", 500, core.Food, "Goa")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if e.ID == 0 || e.CreatedAt.IsZero() {
		t.Fatalf("id and createdAt must be assigned: %+v", e)
	}

	all := s.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	got := all[0]
	if got.Name != "Lunch" || got.Amount != 500 || got.Category != core.Food || got.EventName != "Goa" {
		t.Fatalf("fields differ from input: %+v", got)
	}
}

func TestQueryAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, storage.NewMemoryRepository())

	for _, n := range []string{"a", "b", "c"} {
		if _, err := s.Insert(ctx, n, 1, core.Fun, ""); err != nil {
			t.Fatalf("insert %s: %v", n, err)
		}
	}
	all := s.All()
	if all[0].Name != "c" || all[1].Name != "b" || all[2].Name != "a" {
		t.Fatalf("expected newest first, got %v", all)
	}
	if !all[0].CreatedAt.After(all[2].CreatedAt) {
		t.Fatalf("createdAt should follow insertion order")
	}
}

func TestInsertValidationLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, storage.NewMemoryRepository())

	if _, err := s.Insert(ctx, "   ", 10, core.Food, ""); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.Insert(ctx, "x", 0, core.Food, ""); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if len(s.All()) != 0 {
		t.Fatalf("ledger should be empty")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, storage.NewMemoryRepository())

	a, _ := s.Insert(ctx, "a", 1, core.Food, "")
	b, _ := s.Insert(ctx, "b", 2, core.Food, "")

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, e := range s.All() {
		if e.ID == a.ID {
			t.Fatalf("deleted id still present")
		}
	}

	before := s.All()
	if err := s.Delete(ctx, 12345); err != nil {
		t.Fatalf("deleting unknown id should be a no-op, got %v", err)
	}
	after := s.All()
	if len(before) != len(after) || after[0].ID != b.ID {
		t.Fatalf("state changed on no-op delete")
	}

	c, _ := s.Insert(ctx, "c", 3, core.Food, "")
	if c.ID == a.ID {
		t.Fatalf("id reused after delete")
	}
}

func TestPersistenceFailureIsPropagatedAndNotVisible(t *testing.T) {
	ctx := context.Background()
	db := &failingDB{MemoryRepository: storage.NewMemoryRepository()}
	s := openTestStore(t, db)

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	db.failInsert = true
	_, err := s.Insert(ctx, "Lunch", 500, core.Food, "")
	var pe *PersistenceError
	if !errors.As(err, &pe) || !errors.Is(err, errDisk) {
		t.Fatalf("expected PersistenceError wrapping errDisk, got %v", err)
	}
	if len(s.All()) != 0 {
		t.Fatalf("failed insert must not be visible")
	}

	db.failInsert = false
	e, err := s.Insert(ctx, "Lunch", 500, core.Food, "")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	db.failDelete = true
	if err := s.Delete(ctx, e.ID); !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if len(s.All()) != 1 {
		t.Fatalf("failed delete must keep the record")
	}

	// snapshot + one successful insert only
	if len(changes) != 2 || changes[0].Kind != ChangeSnapshot || changes[1].Kind != ChangeAdded {
		t.Fatalf("unexpected changes: %+v", changes)
	}
}

func TestSubscribeDeliversSnapshotsInOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, storage.NewMemoryRepository())
	first, _ := s.Insert(ctx, "first", 1, core.Food, "")

	var kinds []ChangeKind
	var sizes []int
	cancel := s.Subscribe(func(c Change) {
		kinds = append(kinds, c.Kind)
		sizes = append(sizes, len(c.Snapshot))
	})

	second, _ := s.Insert(ctx, "second", 1, core.Food, "")
	_ = s.Delete(ctx, first.ID)
	cancel()
	_ = s.Delete(ctx, second.ID)

	wantKinds := []ChangeKind{ChangeSnapshot, ChangeAdded, ChangeRemoved}
	wantSizes := []int{1, 2, 1}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("got %v, want %v", kinds, wantKinds)
	}
	for i := range wantKinds {
		if kinds[i] != wantKinds[i] || sizes[i] != wantSizes[i] {
			t.Fatalf("change %d: got %s/%d, want %s/%d", i, kinds[i], sizes[i], wantKinds[i], wantSizes[i])
		}
	}
}

func TestConcurrentInsertsAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, storage.NewMemoryRepository())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Insert(ctx, "x", 1, core.Food, ""); err != nil {
				t.Errorf("insert: %v", err)
			}
			_ = s.All()
		}()
	}
	wg.Wait()

	all := s.All()
	if len(all) != 50 {
		t.Fatalf("expected 50 records, got %d", len(all))
	}
	seen := map[int64]bool{}
	for i, e := range all {
		if seen[e.ID] {
			t.Fatalf("duplicate id %d", e.ID)
		}
		seen[e.ID] = true
		if i > 0 && all[i-1].ID < e.ID {
			t.Fatalf("not newest first at %d", i)
		}
	}
}

func TestOpenLoadsExisting(t *testing.T) {
	db := storage.NewMemoryRepositoryFrom([]core.Expense{
		{ID: 1, Name: "old", Amount: 1, Category: core.Food, EventName: "x"},
		{ID: 2, Name: "new", Amount: 2, Category: core.Food, EventName: "x"},
	})
	s := openTestStore(t, db)
	all := s.All()
	if len(all) != 2 || all[0].Name != "new" {
		t.Fatalf("unexpected load: %+v", all)
	}
	if e, err := s.Get(context.Background(), 1); err != nil || e.Name != "old" {
		t.Fatalf("Get(1) = %+v, %v", e, err)
	}
	if _, err := s.Get(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(99) err = %v, want ErrNotFound", err)
	}
}

func TestStoresSharingOneDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	openSQLite := func() *storage.SQLiteRepository {
		repo, err := storage.NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	}

	server := openTestStore(t, openSQLite())
	cli := openTestStore(t, openSQLite())

	var changes []Change
	server.Subscribe(func(c Change) { changes = append(changes, c) })

	lunch, err := cli.Insert(ctx, "Lunch", 500, core.Food, "Goa")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := server.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if all := server.All(); len(all) != 1 || all[0].ID != lunch.ID {
		t.Fatalf("server does not see the other writer's record: %+v", all)
	}
	if len(changes) != 2 || changes[1].Kind != ChangeAdded || changes[1].Expense.ID != lunch.ID {
		t.Fatalf("unexpected changes: %+v", changes)
	}

	// cli never loaded taxi; its delete must still reach the database.
	taxi, err := server.Insert(ctx, "Taxi", 300, core.Travel, "Goa")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := cli.Delete(ctx, taxi.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := server.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if all := server.All(); len(all) != 1 || all[0].ID != lunch.ID {
		t.Fatalf("durable delete not reflected: %+v", all)
	}
	if last := changes[len(changes)-1]; last.Kind != ChangeRemoved || last.Expense.ID != taxi.ID {
		t.Fatalf("last change = %+v, want removal of %d", last, taxi.ID)
	}
}

func TestDeleteReachesDatabaseForStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	db := storage.NewMemoryRepository()
	s := openTestStore(t, db)

	e, err := db.InsertExpense(ctx, mustDraft(t, "Dinner"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetExpense(ctx, e.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("durable row survived delete: %v", err)
	}
}

func TestWatchPicksUpExternalWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := storage.NewMemoryRepository()
	s := openTestStore(t, db)

	added := make(chan core.Expense, 1)
	s.Subscribe(func(c Change) {
		if c.Kind == ChangeAdded {
			added <- c.Expense
		}
	})

	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, 10*time.Millisecond) }()

	e, err := db.InsertExpense(ctx, mustDraft(t, "Snacks"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	select {
	case got := <-added:
		if got.ID != e.ID {
			t.Fatalf("added %d, want %d", got.ID, e.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not pick up the external insert")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
}

func TestSyncFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	db := &failingDB{MemoryRepository: storage.NewMemoryRepository()}
	s := openTestStore(t, db)
	if _, err := s.Insert(ctx, "Lunch", 500, core.Food, ""); err != nil {
		t.Fatalf("insert: %v", err)
	}

	db.failList = true
	var pe *PersistenceError
	if err := s.Sync(ctx); !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if len(s.All()) != 1 {
		t.Fatal("failed sync must keep the previous snapshot")
	}

	// A commit whose reload fails is still applied locally.
	if _, err := s.Insert(ctx, "Taxi", 300, core.Travel, ""); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(s.All()) != 2 {
		t.Fatalf("expected 2 records, got %d", len(s.All()))
	}
}

func mustDraft(t *testing.T, name string) core.Draft {
	t.Helper()
	d, err := core.NewDraft(name, 100, core.Food, "x", time.Now())
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	return d
}
