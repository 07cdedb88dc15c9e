package config

import (
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
	Port           string
	SecureCookie   bool
	RateLimit      int
	MaxUploadBytes int64

	// Logging
	LogLevel string

	// Database
	SQLiteDBPath string

	// Media
	MediaBackend       string
	MediaLocalDir      string
	MediaPublicBaseURL string
	GCSBucket          string

	// Categorization
	GeminiAPIKey      string
	GeminiModel       string
	CategorizeTimeout time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Sessions
	SessionTTL time.Duration

	// Worker
	SyncInterval time.Duration

	// Dashboard cache
	DashboardCacheTTL  time.Duration
	DashboardCacheSize int
}

const (
	MediaBackendLocal = "local"
	MediaBackendGCS   = "gcs"
)

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		SecureCookie:   getEnvBool("SECURE_COOKIE", false),
		RateLimit:      getEnvInt("RATE_LIMIT", 60),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,

		LogLevel: getEnv("LOG_LEVEL", "info"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/roomsplit.db"),

		MediaBackend:       getEnv("MEDIA_BACKEND", MediaBackendLocal),
		MediaLocalDir:      getEnv("MEDIA_LOCAL_DIR", "./data/media"),
		MediaPublicBaseURL: getEnv("MEDIA_PUBLIC_BASE_URL", ""),
		GCSBucket:          getEnv("GCS_BUCKET", ""),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		CategorizeTimeout: getEnvDuration("CATEGORIZE_TIMEOUT", 15*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "roomsplit"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		SessionTTL: getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 15*time.Minute),

		DashboardCacheTTL:  getEnvDuration("DASHBOARD_CACHE_TTL", 5*time.Minute),
		DashboardCacheSize: getEnvInt("DASHBOARD_CACHE_SIZE", 256),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimit))
	}
	if c.MaxUploadBytes < 1<<20 {
		errors = append(errors, "invalid max upload size: must be at least 1 MB")
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if msg := ensureDir(filepath.Dir(c.SQLiteDBPath)); msg != "" {
		errors = append(errors, "cannot create SQLite database directory "+msg)
	}

	switch c.MediaBackend {
	case MediaBackendLocal:
		if c.MediaLocalDir == "" {
			errors = append(errors, "MEDIA_LOCAL_DIR cannot be empty when using the local media backend")
		} else if msg := ensureDir(c.MediaLocalDir); msg != "" {
			errors = append(errors, "cannot create media directory "+msg)
		}
	case MediaBackendGCS:
		if c.GCSBucket == "" {
			errors = append(errors, "GCS_BUCKET is required when using the gcs media backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid media backend '%s': must be one of [%s %s]",
			c.MediaBackend, MediaBackendLocal, MediaBackendGCS))
	}

	if c.MediaPublicBaseURL != "" {
		if u, err := url.Parse(c.MediaPublicBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid media public base URL '%s': must be an http(s) URL", c.MediaPublicBaseURL))
		}
	}

	if c.CategorizeTimeout <= 0 || c.CategorizeTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid categorize timeout %v: must be between 0 and 2 minutes", c.CategorizeTimeout))
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

	if c.GoogleServiceAccountFile != "" && c.GoogleServiceAccountJSON == "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.SessionTTL < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 hour", c.SessionTTL))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.DashboardCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid dashboard cache TTL %v: cannot be negative", c.DashboardCacheTTL))
	}
	if c.DashboardCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid dashboard cache size %d: must be at least 1", c.DashboardCacheSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ExportEnabled reports whether ledgers are mirrored to a spreadsheet.
func (c *Config) ExportEnabled() bool { return c.GoogleSpreadsheetID != "" }

// MessagingEnabled reports whether an AMQP broker is configured.
func (c *Config) MessagingEnabled() bool { return c.AMQPURL != "" }

// ensureDir creates dir when missing and returns a message on failure.
func ensureDir(dir string) string {
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("'%s': %v", dir, err)
		}
	}
	return ""
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
