package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	LogDir   string // logs directory; empty logs to stderr only
	LogLevel string // debug, info, warn, error

	DatabaseDriver string // postgres or sqlite
	DatabaseURL    string // pgx connection string or sqlite file path
	DBPoolSize     int    // store connections, independent of MaxConcurrentChecks

	MaxConcurrentChecks int           // admission gate capacity
	ProbeTimeout        time.Duration // bound for one attempt
	CheckBudget         time.Duration // bound for one check with retries; 0 uses the target interval
	RetryAttempts       int           // total attempts per check
	RetryBackoff        time.Duration // delay after the first failed attempt, doubled each time
	RetryMaxBackoff     time.Duration // cap for the doubled delay
	WriteTimeout        time.Duration // bound for one result insert

	OpsAddr   string // bind address for /healthz, /readyz, /metrics; empty disables
	BodyLimit int64  // bytes of response body kept for pattern matching
	UserAgent string
}

func FromEnv() Config {
	return Config{
		LogDir:   envString("LOG_DIR", "logs"),
		LogLevel: envString("LOG_LEVEL", "info"),

		DatabaseDriver: envString("DATABASE_DRIVER", DriverPostgres),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBPoolSize:     envInt("DB_POOL_SIZE", 5),

		MaxConcurrentChecks: envInt("MAX_CONCURRENT_CHECKS", 10),
		ProbeTimeout:        envMillis("PROBE_TIMEOUT_MS", 10*time.Second),
		CheckBudget:         envMillis("CHECK_BUDGET_MS", 0),
		RetryAttempts:       envInt("RETRY_ATTEMPTS", 3),
		RetryBackoff:        envMillis("RETRY_BACKOFF_MS", 2*time.Second),
		RetryMaxBackoff:     envMillis("RETRY_MAX_BACKOFF_MS", 10*time.Second),
		WriteTimeout:        envMillis("WRITE_TIMEOUT_MS", 5*time.Second),

		OpsAddr:   envString("OPS_ADDR", "127.0.0.1:9090"),
		BodyLimit: int64(envInt("BODY_LIMIT_BYTES", 1<<20)),
		UserAgent: os.Getenv("USER_AGENT"),
	}
}

// Validate reports every bad field at once.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseDriver != DriverPostgres && c.DatabaseDriver != DriverSQLite {
		errs = append(errs, fmt.Errorf("database driver %q: want %s or %s", c.DatabaseDriver, DriverPostgres, DriverSQLite))
	}
	if c.DBPoolSize < 1 {
		errs = append(errs, fmt.Errorf("db pool size must be >= 1, got %d", c.DBPoolSize))
	}
	if c.MaxConcurrentChecks < 1 {
		errs = append(errs, fmt.Errorf("max concurrent checks must be >= 1, got %d", c.MaxConcurrentChecks))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be >= 1, got %d", c.RetryAttempts))
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("probe timeout must be positive"))
	}
	if c.CheckBudget < 0 || c.RetryBackoff < 0 || c.RetryMaxBackoff < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write timeout must be positive"))
	}
	if c.BodyLimit < 1 {
		errs = append(errs, fmt.Errorf("body limit must be >= 1, got %d", c.BodyLimit))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// malformed values fall back to the default
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
