package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"billsplit/internal/core"
)

// ErrNotFound is returned by GetExpense for unknown ids.
var ErrNotFound = errors.New("expense not found")

const expenseColumns = "id, name, amount, category, event_name, created_at"

type queries struct {
	insert string
	delete string
	list   string
	get    string
}

// sqlRepository implements the ledger persistence boundary on top of
// database/sql. The dialect only changes placeholder syntax.
type sqlRepository struct {
	db *sql.DB
	q  queries
}

func (r *sqlRepository) InsertExpense(ctx context.Context, d core.Draft) (core.Expense, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.q.insert,
		d.Name, d.Amount, string(d.Category), d.EventName, d.CreatedAt.UnixMilli(),
	).Scan(&id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	e := d.Expense(id)
	// Round-trip through the stored precision so callers see what a reload
	// would return.
	e.CreatedAt = time.UnixMilli(d.CreatedAt.UnixMilli())
	return e, nil
}

func (r *sqlRepository) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, r.q.delete, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

func (r *sqlRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, r.q.list)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// GetExpense fetches a single record by id.
func (r *sqlRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, r.q.get, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	return e, err
}

func (r *sqlRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqlRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e        core.Expense
		category string
		millis   int64
	)
	if err := s.Scan(&e.ID, &e.Name, &e.Amount, &category, &e.EventName, &millis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Category = core.Category(category)
	e.CreatedAt = time.UnixMilli(millis)
	return e, nil
}
