package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default secrets used in dev. Validate rejects them when Env is "prod".
const (
	DefaultJWTSecret     = "supersecretkey"
	DefaultProcessSecret = "dev-process-secret"
)

type Config struct {
	Port string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int
	// DBAutoMigrate applies embedded migrations on startup (default true).
	DBAutoMigrate bool

	// Storage is "postgres" (default) or "memory" for single-process local runs.
	Storage string

	// JWTSecret verifies coach tokens issued by the coaching platform.
	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", secrets must be set and not the defaults.
	Env string

	// ProcessSecret is the bearer credential required on /internal endpoints.
	ProcessSecret string

	// PublicBaseURL is where the trigger service reaches this API, e.g. https://coach.example.com.
	PublicBaseURL string

	// TriggerMode is "qstash" (hosted trigger service) or "local" (in-process cron).
	TriggerMode  string
	TriggerURL   string
	TriggerToken string

	// MessagingURL is the chat transport webhook. When empty, messages are only logged.
	MessagingURL   string
	MessagingToken string
	SendTimeout    time.Duration
	// SendConcurrency bounds parallel sends within one firing (default 8).
	SendConcurrency int

	// SweepInterval is how often the fallback sweep runs; 0 disables the in-process sweep.
	SweepInterval time.Duration

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string
	// LogLevel is debug, info (default), warn or error.
	LogLevel string

	// CORSAllowedOrigins is a list of origins allowed for CORS (e.g. https://app.example.com, http://localhost:3000).
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent (same-origin only).
	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "coachdb"),
		DBUser: getEnv("DB_USER", "coach"),
		DBPass: getEnv("DB_PASS", "coachpass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBAutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
		Storage:        getEnv("STORAGE", "postgres"),

		JWTSecret:     getEnv("JWT_SECRET", DefaultJWTSecret),
		Env:           getEnv("ENV", "dev"),
		ProcessSecret: getEnv("PROCESS_SECRET", DefaultProcessSecret),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		TriggerMode:   getEnv("TRIGGER_MODE", "local"),
		TriggerURL:    getEnv("TRIGGER_URL", "https://qstash.upstash.io"),
		TriggerToken:  getEnv("TRIGGER_TOKEN", ""),

		MessagingURL:    getEnv("MESSAGING_URL", ""),
		MessagingToken:  getEnv("MESSAGING_TOKEN", ""),
		SendTimeout:     getEnvDuration("SEND_TIMEOUT", 10*time.Second),
		SendConcurrency: getEnvInt("SEND_CONCURRENCY", 8),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),

		// Optional TLS configuration for HTTPS.
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// ProcessURL is the absolute URL of the processing endpoint.
func (c Config) ProcessURL() string {
	return c.PublicBaseURL + "/internal/process"
}

// Validate reports configuration that must not reach production.
func (c Config) Validate() error {
	var errs []error
	switch c.TriggerMode {
	case "local", "qstash":
	default:
		errs = append(errs, fmt.Errorf("TRIGGER_MODE must be local or qstash, got %q", c.TriggerMode))
	}
	switch c.Storage {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORAGE must be postgres or memory, got %q", c.Storage))
	}
	if c.TriggerMode == "qstash" && c.TriggerToken == "" {
		errs = append(errs, errors.New("TRIGGER_TOKEN is required when TRIGGER_MODE=qstash"))
	}
	if c.Env == "prod" {
		if c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be set in prod"))
		}
		if c.ProcessSecret == "" || c.ProcessSecret == DefaultProcessSecret {
			errs = append(errs, errors.New("PROCESS_SECRET must be set in prod"))
		}
		if c.Storage == "memory" {
			errs = append(errs, errors.New("STORAGE=memory is not allowed in prod"))
		}
	}
	return errors.Join(errs...)
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
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

// getEnvDuration accepts Go durations ("30s", "5m") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
