package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Persistence
	DataBackend  string
	SQLiteDBPath string
	PostgresDSN  string

	// Currency
	BaseCurrency  string
	RatesURL      string
	RatesJSONPath string
	RatesTimeout  time.Duration

	// Ledger
	DefaultEvent string
	// LedgerSyncInterval is how often the server reloads the ledger to pick
	// up writes made by other processes sharing the database.
	LedgerSyncInterval time.Duration

	// AMQP (optional)
	AMQPURL       string
	AMQPExchange  string
	AMQPQueue     string
	PublishBuffer int

	// Google Sheets mirror (worker)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	LogLevel string
}

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// reservedEvent is the filter sentinel; it cannot double as a real event.
const reservedEvent = "All Events"

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

func Load() *Config {
	base := strings.ToUpper(getEnv("BASE_CURRENCY", "INR"))
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", BackendSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/billsplit.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		BaseCurrency:  base,
		RatesURL:      getEnv("RATES_URL", "https://api.frankfurter.app/latest?from="+base),
		RatesJSONPath: getEnv("RATES_JSON_PATH", "$.rates"),
		RatesTimeout:  getEnvDuration("RATES_TIMEOUT", 10*time.Second),

		DefaultEvent: getEnv("DEFAULT_EVENT", "Default"),

		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "billsplit"),
		AMQPQueue:     getEnv("AMQP_QUEUE", "ledger_changes"),
		PublishBuffer: getEnvInt("PUBLISH_BUFFER", 100),

		LedgerSyncInterval: getEnvDuration("LEDGER_SYNC_INTERVAL", 5*time.Second),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the settings every binary needs and reports all
// problems at once.
func (c *Config) Validate() error {
	return joinErrors(c.validate())
}

// ValidateWorker additionally requires the broker and the sheet mirror.
func (c *Config) ValidateWorker() error {
	errs := c.validate()
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required for the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the worker")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return joinErrors(errs)
}

func (c *Config) validate() []string {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == BackendSQLite && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}
	if c.DataBackend == BackendPostgres && c.PostgresDSN == "" {
		errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
	}

	if !currencyCode.MatchString(c.BaseCurrency) {
		errors = append(errors, fmt.Sprintf("invalid base currency '%s': must be a three-letter code", c.BaseCurrency))
	}
	if u, err := url.Parse(c.RatesURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid rates URL '%s': must be an absolute http(s) URL", c.RatesURL))
	}
	if !strings.HasPrefix(c.RatesJSONPath, "$") {
		errors = append(errors, fmt.Sprintf("invalid rates JSON path '%s': must start with '$'", c.RatesJSONPath))
	}
	if c.RatesTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rates timeout %v: must be at least 1 second", c.RatesTimeout))
	} else if c.RatesTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rates timeout %v: must be at most 2 minutes", c.RatesTimeout))
	}

	if strings.TrimSpace(c.DefaultEvent) == "" {
		errors = append(errors, "default event cannot be blank")
	} else if c.DefaultEvent == reservedEvent {
		errors = append(errors, fmt.Sprintf("default event cannot be '%s'", reservedEvent))
	}
	if c.LedgerSyncInterval < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid ledger sync interval %v: must be at least 100ms", c.LedgerSyncInterval))
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
	if c.PublishBuffer < 1 || c.PublishBuffer > 100000 {
		errors = append(errors, fmt.Sprintf("invalid publish buffer %d: must be between 1 and 100000", c.PublishBuffer))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	return errors
}

func joinErrors(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
