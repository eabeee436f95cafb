package backend

import (
	"fmt"
	"strings"

	"finora/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s (valid: %s)",
			appConfig.DataBackend, strings.Join(GetBackendTypeStrings(), ", "))
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	}

	// AMQP is optional
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
