// Package worker consumes ledger events in the background worker process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finora/internal/amqp"
	"finora/internal/core"
	"finora/internal/sheets"
	"finora/internal/storage"
)

// ExportStore is the owner-scoped read surface the export needs.
type ExportStore interface {
	GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error)
	GetCategory(ctx context.Context, userID, id string) (*core.Category, error)
}

// AccountDirectory reports whether an account still exists.
type AccountDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// ExportWorker copies newly created transactions to the export spreadsheet.
type ExportWorker struct {
	store    ExportStore
	exporter sheets.TransactionExporter
	accounts AccountDirectory
	logger   *slog.Logger
}

func NewExportWorker(store ExportStore, exporter sheets.TransactionExporter, logger *slog.Logger) *ExportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{store: store, exporter: exporter, logger: logger.With("component", "export_worker")}
}

// WithAccounts skips exports for accounts deleted since the event was sent.
func (w *ExportWorker) WithAccounts(accounts AccountDirectory) *ExportWorker {
	w.accounts = accounts
	return w
}

// HandleEvent processes one ledger event. A returned error requeues the
// message, so only transient failures are reported.
func (w *ExportWorker) HandleEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	switch e.Type {
	case amqp.TransactionCreated:
		return w.exportTransaction(ctx, e)
	default:
		w.logger.InfoContext(ctx, "Ledger event received",
			"event", e.Type,
			"user_id", e.UserID,
			"entity_id", e.EntityID,
			"amount_cents", e.AmountCents)
		return nil
	}
}

func (w *ExportWorker) exportTransaction(ctx context.Context, e *amqp.LedgerEvent) error {
	if w.accounts != nil {
		exists, err := w.accounts.UserExists(ctx, e.UserID)
		if err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		if !exists {
			w.logger.WarnContext(ctx, "Account deleted, skipping export",
				"transaction_id", e.EntityID,
				"user_id", e.UserID)
			return nil
		}
	}

	// The event only names the row; read it back as its owner.
	t, err := w.store.GetTransaction(ctx, e.UserID, e.EntityID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Transaction gone before export, skipping",
			"transaction_id", e.EntityID,
			"user_id", e.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	category, err := w.categoryName(ctx, t)
	if err != nil {
		return err
	}

	ref, err := w.exporter.Export(ctx, sheets.RowFromTransaction(*t, category))
	if err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}

	w.logger.InfoContext(ctx, "Exported transaction",
		"transaction_id", t.ID,
		"sheets_ref", ref,
		"amount_cents", t.Amount.Cents)
	return nil
}

func (w *ExportWorker) categoryName(ctx context.Context, t *core.Transaction) (string, error) {
	if t.CategoryID == "" {
		return "", nil
	}
	c, err := w.store.GetCategory(ctx, t.UserID, t.CategoryID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("get category: %w", err)
	}
	return c.Name, nil
}
