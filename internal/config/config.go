package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port   string
	AppURL string

	// Identity / session store
	StoreURL            string
	StoreAnonKey        string
	StoreServiceRoleKey string
	SessionCookieSecure bool

	// Database
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP (empty URL disables ledger events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Billing worker
	BillingInterval           time.Duration
	BillingBatchSize          int
	BillingRecordTransactions bool

	LogLevel string
}

// ErrMissingServiceRoleKey is returned by RequireServiceRoleKey.
var ErrMissingServiceRoleKey = errors.New("STORE_SERVICE_ROLE_KEY is required for privileged operations")

func Load() *Config {
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppURL: getEnv("APP_URL", "http://localhost:3000"),

		StoreURL:            getEnvFallback("STORE_URL", "SUPABASE_URL", ""),
		StoreAnonKey:        getEnvFallback("STORE_ANON_KEY", "SUPABASE_ANON_KEY", ""),
		StoreServiceRoleKey: getEnvFallback("STORE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_ROLE_KEY", ""),
		SessionCookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finora.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finora"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		BillingInterval:           getEnvDuration("BILLING_INTERVAL", time.Hour),
		BillingBatchSize:          getEnvInt("BILLING_BATCH_SIZE", 50),
		BillingRecordTransactions: getEnvBool("BILLING_RECORD_TRANSACTIONS", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error listing every problem.
// A missing store endpoint or public key is always fatal.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if msg := validateHTTPURL("APP_URL", c.AppURL); msg != "" {
		errors = append(errors, msg)
	}

	// Store endpoint and public key
	if c.StoreURL == "" {
		errors = append(errors, "missing STORE_URL (or SUPABASE_URL): the session store endpoint is required")
	} else if msg := validateHTTPURL("STORE_URL", c.StoreURL); msg != "" {
		errors = append(errors, msg)
	}
	if c.StoreAnonKey == "" {
		errors = append(errors, "missing STORE_ANON_KEY (or SUPABASE_ANON_KEY): the public API key is required")
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// or postgresql:// URL")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite postgres]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.BillingBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid billing batch size %d: must be at least 1", c.BillingBatchSize))
	} else if c.BillingBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid billing batch size %d: must be at most 1000", c.BillingBatchSize))
	}

	if c.BillingInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid billing interval %v: must be at least 1 second", c.BillingInterval))
	} else if c.BillingInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid billing interval %v: must be at most 24 hours", c.BillingInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireServiceRoleKey fails when the administrative key is absent. Only
// processes performing privileged server-side operations call it.
func (c *Config) RequireServiceRoleKey() error {
	if strings.TrimSpace(c.StoreServiceRoleKey) == "" {
		return ErrMissingServiceRoleKey
	}
	return nil
}

// SheetsEnabled reports whether ledger events should be exported.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func validateHTTPURL(name, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid %s '%s': %v", name, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Sprintf("invalid %s '%s': must be an absolute http(s) URL", name, raw)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFallback(key, legacyKey, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return getEnv(legacyKey, defaultValue)
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
