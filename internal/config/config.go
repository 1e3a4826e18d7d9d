// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the database path, rate limiting, event intake, live push and
// observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "notification-service")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// KafkaConfig defines the event intake connection.
type KafkaConfig struct {
	Enabled    bool     // KAFKA_ENABLED
	Brokers    []string // KAFKA_BROKERS, comma separated
	GroupID    string   // KAFKA_GROUP_ID
	DLQGroupID string   // KAFKA_DLQ_GROUP_ID
}

// IntakeConfig tunes event processing.
type IntakeConfig struct {
	MaxAttempts  int           // INTAKE_MAX_ATTEMPTS, including the first
	Backoff      time.Duration // INTAKE_BACKOFF between attempts
	WorkerBuffer int           // INTAKE_WORKER_BUFFER backlog per partition before it is reported as lagging
}

// SSEConfig tunes live push sessions.
type SSEConfig struct {
	Timeout      time.Duration // SSE_TIMEOUT, session lifetime
	WriteTimeout time.Duration // SSE_WRITE_TIMEOUT, single event write
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s; event writes set their own deadline
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogRedact      bool   // use the redacting access logger
	SwaggerEnabled bool   // enable Swagger UI route

	// App
	DBPath          string // SQLite path
	OrderServiceURL string // base URL of the order service
	RecentLimit     int    // size of the recent notifications list

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Event intake and live push
	Kafka  KafkaConfig
	Intake IntakeConfig
	SSE    SSEConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		LogRedact:      getbool("LOG_REDACT", true),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		// App
		DBPath:          getenv("DB_PATH", "notifications.db"),
		OrderServiceURL: strings.TrimRight(getenv("ORDER_SERVICE_URL", "http://order-payment-service"), "/"),
		RecentLimit:     getint("RECENT_LIMIT", 20),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Event intake
		Kafka: KafkaConfig{
			Enabled:    getbool("KAFKA_ENABLED", true),
			Brokers:    splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			GroupID:    getenv("KAFKA_GROUP_ID", "notification-group"),
			DLQGroupID: getenv("KAFKA_DLQ_GROUP_ID", "notification-dlq-group"),
		},
		Intake: IntakeConfig{
			MaxAttempts:  getint("INTAKE_MAX_ATTEMPTS", 3),
			Backoff:      getdur("INTAKE_BACKOFF", time.Second),
			WorkerBuffer: getint("INTAKE_WORKER_BUFFER", 64),
		},

		// Live push
		SSE: SSEConfig{
			Timeout:      getdur("SSE_TIMEOUT", 30*time.Minute),
			WriteTimeout: getdur("SSE_WRITE_TIMEOUT", 10*time.Second),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "notification-service"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.OrderServiceURL == "" {
		return cfg, errors.New("ORDER_SERVICE_URL must not be empty")
	}
	if cfg.RecentLimit < 1 {
		return cfg, errors.New("RECENT_LIMIT must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Kafka.Enabled && (len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.GroupID == "" || cfg.Kafka.DLQGroupID == "") {
		return cfg, errors.New("KAFKA_BROKERS, KAFKA_GROUP_ID and KAFKA_DLQ_GROUP_ID are required when KAFKA_ENABLED")
	}
	if cfg.Intake.MaxAttempts < 1 {
		return cfg, errors.New("INTAKE_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Intake.Backoff < 0 {
		return cfg, errors.New("INTAKE_BACKOFF must be >= 0")
	}
	if cfg.Intake.WorkerBuffer < 1 {
		return cfg, errors.New("INTAKE_WORKER_BUFFER must be >= 1")
	}
	if cfg.SSE.Timeout <= 0 || cfg.SSE.WriteTimeout <= 0 {
		return cfg, errors.New("SSE_TIMEOUT and SSE_WRITE_TIMEOUT must be positive durations")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
