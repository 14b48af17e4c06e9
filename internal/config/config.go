package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Auth      AuthConfig
	Razorpay  RazorpayConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
}

// AuthConfig describes how bearer tokens are verified.
type AuthConfig struct {
	ProjectID string
	Issuer    string
	Audience  string
	AdminUIDs []string
	// Disabled skips token verification and trusts X-User-Id. Development only.
	Disabled bool
}

// TelemetryConfig feeds logging, tracing and metrics. The OTEL_* names follow
// the OpenTelemetry exporter conventions.
type TelemetryConfig struct {
	LogLevel       string
	LogFormat      string
	OtelEnabled    bool
	OtlpEndpoint   string
	OtlpProtocol   string
	SamplingRatio  float64
	DeploymentEnv  string
	ServiceVersion string
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

func (c RazorpayConfig) Enabled() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int

	ChargeRatePerSecond float64
	ChargeBurst         int64
	ChargeLockTTL       time.Duration
}

type SchedulerConfig struct {
	Enabled       bool
	Interval      time.Duration
	BatchSize     int
	JobTimeout    time.Duration
	ExpireEnabled bool
	ReconcileOn   bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	projectID := strings.TrimSpace(getenv("FIREBASE_PROJECT_ID", ""))
	issuer := strings.TrimSpace(getenv("AUTH_ISSUER", ""))
	if issuer == "" && projectID != "" {
		issuer = "https://securetoken.google.com/" + projectID
	}

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "rraasi-coin-service"),
		AppVersion:  getenv("APP_VERSION", "1.0.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "rraasi"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Telemetry: TelemetryConfig{
			LogLevel:       getenv("LOG_LEVEL", "info"),
			LogFormat:      getenv("LOG_FORMAT", "json"),
			OtelEnabled:    getenvBool("OTEL_ENABLED", true),
			OtlpEndpoint:   getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
			OtlpProtocol:   getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio:  getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			DeploymentEnv:  getenv("DEPLOYMENT_ENV", ""),
			ServiceVersion: getenv("SERVICE_VERSION", ""),
		},
		Auth: AuthConfig{
			ProjectID: projectID,
			Issuer:    issuer,
			Audience:  strings.TrimSpace(getenv("AUTH_AUDIENCE", projectID)),
			AdminUIDs: parseList(getenv("AUTH_ADMIN_UIDS", "")),
			Disabled:  getenvBool("AUTH_DISABLED", false),
		},
		Razorpay: RazorpayConfig{
			KeyID:     strings.TrimSpace(getenv("RAZORPAY_KEY_ID", "")),
			KeySecret: strings.TrimSpace(getenv("RAZORPAY_KEY_SECRET", "")),
		},
		Redis: RedisConfig{
			Enabled:             getenvBool("REDIS_ENABLED", false),
			Addr:                getenv("REDIS_ADDR", "localhost:6379"),
			Password:            getenv("REDIS_PASSWORD", ""),
			DB:                  getenvInt("REDIS_DB", 0),
			ChargeRatePerSecond: getenvFloat("CHARGE_RATE_PER_SECOND", 5),
			ChargeBurst:         getenvInt64("CHARGE_BURST", 20),
			ChargeLockTTL:       getenvDuration("CHARGE_LOCK_TTL", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getenvBool("SCHEDULER_ENABLED", true),
			Interval:      getenvDuration("SCHEDULER_INTERVAL", time.Minute),
			BatchSize:     getenvInt("SCHEDULER_BATCH_SIZE", 200),
			JobTimeout:    getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second),
			ExpireEnabled: getenvBool("SCHEDULER_EXPIRE_SUBSCRIPTIONS", true),
			ReconcileOn:   getenvBool("SCHEDULER_RECONCILE_BALANCES", true),
		},
	}

	if cfg.Environment == "production" {
		cfg.Auth.Disabled = false
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
