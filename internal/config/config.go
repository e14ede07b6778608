package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends supported by LEDGER_BACKEND.
const (
	LedgerBackendSheets = "sheets"
	LedgerBackendSQLite = "sqlite"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Telegram  TelegramConfig
	Sheets    SheetsConfig
	Ledger    LedgerConfig
	Extract   ExtractConfig
	Catalog   CatalogConfig
	Reporting ReportingConfig
	MongoDB   MongoDBConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port        string
	LogLevel    string
	WebhookPath string
}

// TelegramConfig contains bot credentials and the fixed identities the bot works with.
type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
	BaseURL       string
	AdminID       int64
	NotifyChatID  int64
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	LedgerSheet     string
}

// LedgerConfig selects where reconciliation rows are written.
type LedgerConfig struct {
	Backend    string
	SQLitePath string
}

// ExtractConfig points at the directory holding accounting stock exports.
type ExtractConfig struct {
	Dir    string
	MaxAge time.Duration
}

// CatalogConfig locates the product catalog file.
type CatalogConfig struct {
	Path string
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
}

// MongoDBConfig holds settings for the optional summary archive.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	adminID, err := getenvInt64("ADMIN_ID")
	if err != nil {
		return nil, err
	}
	notifyChatID, err := getenvInt64("NOTIFY_CHAT_ID")
	if err != nil {
		return nil, err
	}
	maxAge, err := time.ParseDuration(getenvWithDefault("EXTRACT_MAX_AGE", "24h"))
	if err != nil {
		return nil, fmt.Errorf("EXTRACT_MAX_AGE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getenvWithDefault("APP_PORT", "8080"),
			LogLevel:    getenvWithDefault("LOG_LEVEL", "info"),
			WebhookPath: getenvWithDefault("WEBHOOK_PATH", "/webhook"),
		},
		Telegram: TelegramConfig{
			BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
			WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
			BaseURL:       getenvWithDefault("TELEGRAM_BASE_URL", "https://api.telegram.org"),
			AdminID:       adminID,
			NotifyChatID:  notifyChatID,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			LedgerSheet:     getenvWithDefault("LEDGER_SHEET", "Sheet1"),
		},
		Ledger: LedgerConfig{
			Backend:    getenvWithDefault("LEDGER_BACKEND", LedgerBackendSheets),
			SQLitePath: getenvWithDefault("LEDGER_SQLITE_PATH", "data/ledger.db"),
		},
		Extract: ExtractConfig{
			Dir:    getenvWithDefault("EXTRACT_DIR", "data/extracts"),
			MaxAge: maxAge,
		},
		Catalog: CatalogConfig{
			Path: getenvWithDefault("CATALOG_PATH", "products.json"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 21 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "Europe/Moscow"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "stockcheck"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.Telegram.BotToken == "":
		return errors.New("TELEGRAM_BOT_TOKEN must be provided")
	case c.Telegram.WebhookSecret == "":
		return errors.New("TELEGRAM_WEBHOOK_SECRET must be provided")
	case c.Telegram.BaseURL == "":
		return errors.New("TELEGRAM_BASE_URL must not be empty")
	case c.Telegram.AdminID == 0:
		return errors.New("ADMIN_ID must be provided")
	case c.Telegram.NotifyChatID == 0:
		return errors.New("NOTIFY_CHAT_ID must be provided")
	}

	switch c.Ledger.Backend {
	case LedgerBackendSheets:
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided")
		}
		if c.Sheets.LedgerSheet == "" {
			return errors.New("LEDGER_SHEET must not be empty")
		}
	case LedgerBackendSQLite:
		if c.Ledger.SQLitePath == "" {
			return errors.New("LEDGER_SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("unsupported LEDGER_BACKEND %q", c.Ledger.Backend)
	}

	if c.Extract.Dir == "" {
		return errors.New("EXTRACT_DIR must not be empty")
	}
	if c.Extract.MaxAge <= 0 {
		return errors.New("EXTRACT_MAX_AGE must be positive")
	}

	if c.Catalog.Path == "" {
		return errors.New("CATALOG_PATH must not be empty")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	return nil
}

// Location resolves the reporting timezone, falling back to UTC.
func (c ReportingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt64(key string) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
