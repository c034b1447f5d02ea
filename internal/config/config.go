package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Twilio       TwilioConfig
	SendGrid     SendGridConfig
	Notification NotificationConfig
	Clinics      ClinicsConfig
	Stream       StreamConfig
	RateLimit    RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorUsername      string
	OperatorPasswordHash  string
}

// TwilioConfig holds SMS provider credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// SendGridConfig holds email provider credentials.
type SendGridConfig struct {
	APIKey  string
	BaseURL string
}

// NotificationConfig holds the fixed sender and recipient addresses.
type NotificationConfig struct {
	SMSRecipient        string
	EmailFrom           string
	EmailFromName       string
	HospitalEmail       string
	RequestingPhysician string
}

// ClinicsConfig points at the static clinic directory.
type ClinicsConfig struct {
	DirectoryPath string
}

// StreamConfig controls the patient change stream.
type StreamConfig struct {
	Name        string
	Group       string
	Consumer    string
	BatchSize   int
	BlockMillis int
}

// RateLimitConfig bounds public endpoints per client IP.
type RateLimitConfig struct {
	Max           int
	WindowSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	hostname, _ := os.Hostname()

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "pediamatch-intake"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorUsername:      getEnv("AUTH_OPERATOR_USERNAME", "operator"),
			OperatorPasswordHash:  os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_PHONE"),
			BaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		},
		SendGrid: SendGridConfig{
			APIKey:  os.Getenv("SENDGRID_API_KEY"),
			BaseURL: getEnv("SENDGRID_BASE_URL", "https://api.sendgrid.com"),
		},
		Notification: NotificationConfig{
			SMSRecipient:        os.Getenv("TWILIO_RECIPIENT"),
			EmailFrom:           getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			EmailFromName:       getEnv("NOTIFY_EMAIL_FROM_NAME", "Montreal Children's Hospital"),
			HospitalEmail:       os.Getenv("NOTIFY_HOSPITAL_EMAIL"),
			RequestingPhysician: getEnv("NOTIFY_REQUESTING_PHYSICIAN", "Dr.Donlan"),
		},
		Clinics: ClinicsConfig{
			DirectoryPath: getEnv("CLINIC_DIRECTORY_PATH", "data/clinics.json"),
		},
		Stream: StreamConfig{
			Name:        getEnv("STREAM_NAME", "patients:changes"),
			Group:       getEnv("STREAM_GROUP", "email-relay"),
			Consumer:    getEnv("STREAM_CONSUMER", hostname),
			BatchSize:   getEnvAsInt("STREAM_BATCH_SIZE", 10),
			BlockMillis: getEnvAsInt("STREAM_BLOCK_MS", 5000),
		},
		RateLimit: RateLimitConfig{
			Max:           getEnvAsInt("RATE_LIMIT_MAX", 30),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
	}

	if strings.TrimSpace(cfg.Clinics.DirectoryPath) == "" {
		return nil, fmt.Errorf("CLINIC_DIRECTORY_PATH is required")
	}
	if cfg.Stream.Consumer == "" {
		cfg.Stream.Consumer = "email-relay-1"
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsDev reports whether the service runs in development mode.
func (a AppConfig) IsDev() bool {
	return a.Env == "development"
}

// Block returns the XREADGROUP block duration. A negative value disables blocking.
func (s StreamConfig) Block() time.Duration {
	if s.BlockMillis < 0 {
		return -1
	}
	return time.Duration(s.BlockMillis) * time.Millisecond
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
