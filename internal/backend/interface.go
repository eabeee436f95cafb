package backend

import (
	"context"

	"finora/internal/amqp"
	"finora/internal/services"
	"finora/internal/sheets"
	"finora/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the data store and the optional event plumbing.
type BackendResult struct {
	Repository *storage.Repository

	// AMQP is nil when events are disabled or the broker was unreachable.
	AMQP *amqp.Client

	// Publisher is AMQP as a services.EventPublisher, or nil.
	Publisher services.EventPublisher

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the data store and, when configured, the broker.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)

	// CreateExporter returns the spreadsheet exporter, or nil when no
	// spreadsheet is configured.
	CreateExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	// Empty AMQPURL disables ledger events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
