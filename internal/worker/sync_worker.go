// Package worker applies ledger change messages to an external mirror.
package worker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"billsplit/internal/amqp"
	"billsplit/internal/core"
	"billsplit/internal/log"
)

// Mirror is an external copy of the ledger, such as a spreadsheet.
// AppendExpense and DeleteExpense must be idempotent since messages can be
// redelivered. The bulk operations serve the startup reconcile.
type Mirror interface {
	AppendExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id int64) error

	IDs(ctx context.Context) ([]int64, error)
	AppendExpenses(ctx context.Context, es []core.Expense) error
	DeleteExpenses(ctx context.Context, ids []int64) error
}

// Source lists the durable records for the startup backfill.
type Source interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
}

type SyncWorker struct {
	mirror Mirror
	source Source
	logger *log.Logger

	synced atomic.Int64
	failed atomic.Int64
}

// NewSyncWorker builds a worker. source may be nil, which disables the
// startup backfill.
func NewSyncWorker(mirror Mirror, source Source, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		mirror: mirror,
		source: source,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage applies one change. Its signature matches amqp.Handler.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.LedgerMessage) error {
	logger := w.logger.With(
		log.FieldMessageID, msg.ID,
		log.FieldMessageType, msg.Type,
		log.FieldExpenseID, msg.Expense.ID)

	var err error
	switch msg.Type {
	case amqp.MessageExpenseAdded:
		err = w.mirror.AppendExpense(ctx, msg.Expense)
	case amqp.MessageExpenseRemoved:
		err = w.mirror.DeleteExpense(ctx, msg.Expense.ID)
	default:
		logger.WarnContext(ctx, "Ignoring unknown message type")
		return nil
	}
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("sync %s for expense %d: %w", msg.Type, msg.Expense.ID, err)
	}

	w.synced.Add(1)
	logger.InfoContext(ctx, "Ledger change synced")
	return nil
}

// StartupSync reconciles the mirror with the durable records to recover
// from messages lost while the worker was down or dropped by a publisher:
// missing records are appended oldest first and rows for records that no
// longer exist are deleted. The mirror's ids are read once.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	if w.source == nil {
		return nil
	}
	records, err := w.source.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list expenses for startup sync: %w", err)
	}
	mirrored, err := w.mirror.IDs(ctx)
	if err != nil {
		return fmt.Errorf("read mirror ids for startup sync: %w", err)
	}

	missing, stale := reconcile(records, mirrored)

	var errs []error
	if err := w.mirror.AppendExpenses(ctx, missing); err != nil {
		errs = append(errs, fmt.Errorf("append %d missing rows: %w", len(missing), err))
		missing = nil
	}
	if err := w.mirror.DeleteExpenses(ctx, stale); err != nil {
		errs = append(errs, fmt.Errorf("delete %d stale rows: %w", len(stale), err))
		stale = nil
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(records), "appended", len(missing), "deleted", len(stale), "errors", len(errs))
	return errors.Join(errs...)
}

// reconcile returns the records absent from mirrored, oldest first, and the
// mirrored ids with no record.
func reconcile(records []core.Expense, mirrored []int64) (missing []core.Expense, stale []int64) {
	present := make(map[int64]bool, len(mirrored))
	for _, id := range mirrored {
		present[id] = true
	}
	live := make(map[int64]bool, len(records))
	for _, e := range records {
		live[e.ID] = true
		if !present[e.ID] {
			missing = append(missing, e)
		}
	}
	for _, id := range mirrored {
		if !live[id] {
			stale = append(stale, id)
		}
	}
	slices.SortFunc(missing, func(a, b core.Expense) int { return cmp.Compare(a.ID, b.ID) })
	return missing, stale
}

type Stats struct {
	Synced int64 `json:"synced"`
	Failed int64 `json:"failed"`
}

func (w *SyncWorker) Stats() Stats {
	return Stats{Synced: w.synced.Load(), Failed: w.failed.Load()}
}
