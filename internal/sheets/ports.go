// Package sheets exports ledger rows to a spreadsheet.
package sheets

import (
	"context"
	"errors"

	"finora/internal/core"
)

// Row is one exported transaction.
type Row struct {
	TransactionID string
	Date          core.Date
	Type          core.TransactionType
	Category      string
	Source        string
	Description   string
	Amount        core.Money
}

// RowFromTransaction builds the export row for t. category is the display
// name of its category, empty when uncategorized.
func RowFromTransaction(t core.Transaction, category string) Row {
	return Row{
		TransactionID: t.ID,
		Date:          t.Date,
		Type:          t.Type,
		Category:      category,
		Source:        t.Source,
		Description:   t.Description,
		Amount:        t.Amount,
	}
}

func (r Row) Validate() error {
	if r.TransactionID == "" {
		return errors.New("row without transaction id")
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return core.ErrInvalidType
	}
	return r.Amount.Validate()
}

// Values renders the row as spreadsheet cells: month, day, type, category,
// source, description, amount, transaction id. Expenses are negative.
func (r Row) Values() []any {
	amount := r.Amount.Decimal()
	if r.Type == core.Expense {
		amount = "-" + amount
	}
	return []any{int(r.Date.Month()), r.Date.Day(), string(r.Type), r.Category, r.Source, r.Description, amount, r.TransactionID}
}

// Ports for outbound adapters.
type (
	// TransactionExporter appends a row. Exporting a transaction that is
	// already present is a no-op returning the existing reference, so
	// redelivered events do not duplicate rows.
	TransactionExporter interface {
		Export(ctx context.Context, r Row) (rowRef string, err error)
	}
)
