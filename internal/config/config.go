package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// Backend names accepted in ZENITH_BACKEND.
const (
	BackendLocal    = "local"
	BackendSupabase = "supabase"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Persistence strategy
	Backend          string
	LocalDBPath      string
	LocalSnapshotKey string

	// Supabase
	SupabaseURL         string
	SupabaseAnonKey     string
	SupabaseAccessToken string
	SupabaseJWTSecret   string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Session
	NotificationTTL time.Duration

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Category suggestion
	GeminiAPIKey string
	GeminiModel  string

	// Ledger events
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	Categories domain.Categories
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	defaults := domain.DefaultCategories()

	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Backend:          strings.ToLower(getEnv("ZENITH_BACKEND", BackendLocal)),
		LocalDBPath:      getEnv("LOCAL_DB_PATH", "zenith.db"),
		LocalSnapshotKey: getEnv("LOCAL_SNAPSHOT_KEY", "zenith-finance"),

		SupabaseURL:         strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:     getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseAccessToken: getEnv("SUPABASE_ACCESS_TOKEN", ""),
		SupabaseJWTSecret:   getEnv("SUPABASE_JWT_SECRET", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		NotificationTTL: getEnvDuration("NOTIFICATION_TTL", 3*time.Second),
		CacheTTL:        getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "zenith.ledger"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "ledger.events"),

		Categories: domain.Categories{
			Income:  getEnvList("INCOME_CATEGORIES", defaults.Income),
			Expense: getEnvList("EXPENSE_CATEGORIES", defaults.Expense),
		},
	}
}

// Validate reports every configuration problem at once.
// A supabase backend with missing credentials is not an error here: the
// adapter itself fails closed with domain.ErrNotConfigured.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend != BackendLocal && c.Backend != BackendSupabase {
		errs = append(errs, fmt.Errorf("ZENITH_BACKEND must be %q or %q, got %q", BackendLocal, BackendSupabase, c.Backend))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.Backend == BackendLocal && c.LocalDBPath == "" {
		errs = append(errs, errors.New("LOCAL_DB_PATH is required for the local backend"))
	}
	if c.LocalSnapshotKey == "" {
		errs = append(errs, errors.New("LOCAL_SNAPSHOT_KEY must not be empty"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be >= 0, got %d", c.MaxRetries))
	}
	for name, d := range map[string]time.Duration{
		"HTTP_TIMEOUT":     c.HTTPTimeout,
		"NOTIFICATION_TTL": c.NotificationTTL,
		"CACHE_TTL":        c.CacheTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if len(c.Categories.Expense) == 0 {
		errs = append(errs, errors.New("EXPENSE_CATEGORIES must not be empty"))
	}
	if len(c.Categories.Income) == 0 {
		errs = append(errs, errors.New("INCOME_CATEGORIES must not be empty"))
	}
	return errors.Join(errs...)
}

// MissingSupabase lists the supabase settings that are not set.
func (c *Config) MissingSupabase() []string {
	var missing []string
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if c.SupabaseAccessToken == "" {
		missing = append(missing, "SUPABASE_ACCESS_TOKEN")
	}
	return missing
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

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
