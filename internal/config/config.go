package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	DeviceCacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Store
	StoreBackend       string
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	DatabaseURL        string

	// WhatsApp gateway
	FonnteBaseURL     string
	FonnteToken       string
	FonnteCountryCode string
	DispatchInterval  time.Duration

	// Reports & scheduler
	ReportTimezone          string
	SchedulerAutostart      bool
	SelfBaseURL             string
	SchedulerTriggerTimeout time.Duration
	ReportsAllowGET         bool
	JobTokenSecret          string

	// Optional delivery ledger (empty = disabled)
	LedgerPath string

	// Optional dispatch events (empty URL = disabled)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	port := getEnvInt("PORT", 8080)

	return &Config{
		Port:     port,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 10),

		// CACHE_TTL is the older, generic name.
		DeviceCacheTTL: getEnvDuration("DEVICE_CACHE_TTL", getEnvDuration("CACHE_TTL", 30*time.Second)),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendSupabase)),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		FonnteBaseURL:     getEnv("FONNTE_BASE_URL", "https://api.fonnte.com"),
		FonnteToken:       getEnv("FONNTE_TOKEN", ""),
		FonnteCountryCode: getEnv("FONNTE_COUNTRY_CODE", "62"),
		DispatchInterval:  getEnvDuration("DISPATCH_INTERVAL", time.Second),

		ReportTimezone:          getEnv("REPORT_TIMEZONE", "Asia/Jakarta"),
		SchedulerAutostart:      getEnvBool("SCHEDULER_AUTOSTART", true),
		SelfBaseURL:             getEnv("SELF_BASE_URL", fmt.Sprintf("http://127.0.0.1:%d", port)),
		SchedulerTriggerTimeout: getEnvDuration("SCHEDULER_TRIGGER_TIMEOUT", 10*time.Minute),
		ReportsAllowGET:         getEnvBool("REPORTS_ALLOW_GET", false),
		JobTokenSecret:          getEnv("JOB_TOKEN_SECRET", ""),

		LedgerPath: getEnv("LEDGER_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "wallet-reports"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report.dispatched"),
	}
}

// Location loads the report timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ReportTimezone)
}

// Validate reports every problem at once. Missing Supabase or gateway
// credentials are not fatal: the affected calls fail with a configuration
// error instead.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid PORT %d: must be between 1 and 65535", c.Port))
	}

	switch c.StoreBackend {
	case BackendSupabase:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid STORE_BACKEND %q: must be %s or %s", c.StoreBackend, BackendSupabase, BackendPostgres))
	}

	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("invalid REPORT_TIMEZONE %q: %v", c.ReportTimezone, err))
	}
	if c.DispatchInterval < 0 {
		problems = append(problems, "DISPATCH_INTERVAL must not be negative")
	}
	if c.MaxConcurrency < 1 {
		problems = append(problems, "MAX_CONCURRENCY must be at least 1")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, "MAX_RETRIES must not be negative")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		problems = append(problems, "AMQP_EXCHANGE and AMQP_QUEUE are required when AMQP_URL is set")
	}

	if len(problems) > 0 {
		return errors.New("configuration errors: " + strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
