package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finora/internal/amqp"
	"finora/internal/sheets"
	gsheet "finora/internal/sheets/google"
	"finora/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With("component", "backend"),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		repo *storage.Repository
		err  error
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
	case PostgresBackend:
		repo, err = storage.NewPostgresRepository(config.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", config.Type, err)
	}

	result := &BackendResult{Repository: repo}

	// Events are optional: the database stays authoritative without them.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			result.AMQP = client
			result.Publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		if result.AMQP != nil {
			result.AMQP.Close()
		}
		return repo.Close()
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		"amqp_enabled", result.AMQP != nil)
	return result, nil
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error) {
	if config.GoogleSpreadsheetID == "" {
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}
	return client, nil
}
