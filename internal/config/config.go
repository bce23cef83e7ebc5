package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	App          AppConfig
	Auth         AuthConfig
	Mock         MockConfig
	Cognito      CognitoConfig
	Backend      BackendConfig
	Frontend     FrontendConfig
	Storage      StorageConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Rabbit       RabbitConfig
	Logger       LoggerConfig
	Sentry       SentryConfig
	Notification NotificationConfig
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

// AuthConfig defines the identity and session parameters shared by both providers.
type AuthConfig struct {
	UseMock         bool
	CookieName      string
	CookieTTL       time.Duration
	CookieSecure    bool
	DeviceCookie    string
	LoginPath       string
	BcryptCost      int
	ResetCodeTTL    time.Duration
	PendingTTL      time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// MockConfig tunes the local identity provider.
type MockConfig struct {
	AutoConfirm       bool
	SeedDefaultUsers  bool
	DefaultPassword   string
	Issuer            string
	ForcedFailureCode string
}

// CognitoConfig points the remote provider at a user pool app client.
type CognitoConfig struct {
	Region          string
	UserPoolID      string
	ClientID        string
	ClientSecret    string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// BackendConfig describes the marketplace REST API.
type BackendConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int

	// AuthMode is "bearer" (forward the session token) or "basic".
	AuthMode      string
	BasicUser     string
	BasicPassword string
}

// FrontendConfig is the upstream serving pages after the route guard.
type FrontendConfig struct {
	Upstream string
}

// StorageConfig selects the backend of the local persistent store.
type StorageConfig struct {
	Driver     string
	SQLitePath string
	KeyPrefix  string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitConfig enables publishing of notification events.
type RabbitConfig struct {
	URL      string
	Exchange string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Service string
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string
	Environment string
	SampleRate  float64
}

// NotificationConfig configures code delivery.
type NotificationConfig struct {
	EmailFrom   string
	QueueSize   int
	Workers     int
	LogCodes    bool
	PublishWait time.Duration
}

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

const (
	BackendAuthBearer = "bearer"
	BackendAuthBasic  = "basic"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "easybody-auth-gateway"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Auth: AuthConfig{
			UseMock:         getEnvAsBool("USE_MOCK_AUTH", true),
			CookieName:      getEnv("AUTH_COOKIE_NAME", "auth_token"),
			CookieTTL:       getEnvAsDuration("AUTH_COOKIE_TTL", 7*24*time.Hour),
			CookieSecure:    getEnvAsBool("AUTH_COOKIE_SECURE", env == "production"),
			DeviceCookie:    getEnv("AUTH_DEVICE_COOKIE", "eb_device"),
			LoginPath:       getEnv("AUTH_LOGIN_PATH", "/auth/login"),
			BcryptCost:      getEnvAsInt("AUTH_BCRYPT_COST", 10),
			ResetCodeTTL:    getEnvAsDuration("AUTH_RESET_CODE_TTL", 10*time.Minute),
			PendingTTL:      getEnvAsDuration("AUTH_PENDING_CONFIRMATION_TTL", 15*time.Minute),
			AccessTokenTTL:  getEnvAsDuration("AUTH_ACCESS_TOKEN_TTL", time.Hour),
			RefreshTokenTTL: getEnvAsDuration("AUTH_REFRESH_TOKEN_TTL", 24*time.Hour),
		},
		Mock: MockConfig{
			AutoConfirm:       getEnvAsBool("MOCK_AUTO_CONFIRM", true),
			SeedDefaultUsers:  getEnvAsBool("MOCK_SEED_DEFAULT_USERS", true),
			DefaultPassword:   getEnv("MOCK_DEFAULT_PASSWORD", "password123"),
			Issuer:            getEnv("MOCK_TOKEN_ISSUER", "mock-cognito"),
			ForcedFailureCode: getEnv("MOCK_FORCED_FAILURE_CODE", "000000"),
		},
		Cognito: CognitoConfig{
			Region:          getEnv("COGNITO_REGION", "us-east-1"),
			UserPoolID:      os.Getenv("COGNITO_USER_POOL_ID"),
			ClientID:        os.Getenv("COGNITO_CLIENT_ID"),
			ClientSecret:    os.Getenv("COGNITO_CLIENT_SECRET"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Endpoint:        os.Getenv("COGNITO_ENDPOINT"),
		},
		Backend: BackendConfig{
			BaseURL:       strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:8080/api/v1"), "/"),
			Timeout:       getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
			MaxRetries:    getEnvAsInt("BACKEND_MAX_RETRIES", 2),
			AuthMode:      strings.ToLower(getEnv("BACKEND_AUTH_MODE", BackendAuthBearer)),
			BasicUser:     os.Getenv("BACKEND_BASIC_USER"),
			BasicPassword: os.Getenv("BACKEND_BASIC_PASSWORD"),
		},
		Frontend: FrontendConfig{
			Upstream: strings.TrimRight(getEnv("FRONTEND_UPSTREAM", "http://localhost:3001"), "/"),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
			SQLitePath: getEnv("STORAGE_SQLITE_PATH", "auth-gateway.db"),
			KeyPrefix:  getEnv("STORAGE_KEY_PREFIX", "easybody:"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Rabbit: RabbitConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "auth.events"),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Service: getEnv("APP_NAME", "easybody-auth-gateway"),
		},
		Sentry: SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: getEnv("SENTRY_ENVIRONMENT", env),
			SampleRate:  getEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		},
		Notification: NotificationConfig{
			EmailFrom:   getEnv("NOTIFY_EMAIL_FROM", "noreply@easybody.local"),
			QueueSize:   getEnvAsInt("NOTIFY_QUEUE_SIZE", 128),
			Workers:     getEnvAsInt("NOTIFY_WORKERS", 2),
			LogCodes:    getEnvAsBool("NOTIFY_LOG_CODES", env != "production"),
			PublishWait: getEnvAsDuration("NOTIFY_PUBLISH_TIMEOUT", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the gateway cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StorageRedis:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("STORAGE_DRIVER=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if !c.Auth.UseMock {
		if c.Cognito.UserPoolID == "" || c.Cognito.ClientID == "" {
			return errors.New("USE_MOCK_AUTH=false requires COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID")
		}
	}
	switch c.Backend.AuthMode {
	case BackendAuthBearer:
	case BackendAuthBasic:
		if c.Backend.BasicUser == "" {
			return errors.New("BACKEND_AUTH_MODE=basic requires BACKEND_BASIC_USER")
		}
	default:
		return fmt.Errorf("unknown BACKEND_AUTH_MODE %q", c.Backend.AuthMode)
	}
	if c.Auth.CookieTTL <= 0 {
		return errors.New("AUTH_COOKIE_TTL must be positive")
	}
	return nil
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

// ProviderName names the identity provider selected for this process.
func (a AuthConfig) ProviderName() string {
	if a.UseMock {
		return "mock"
	}
	return "cognito"
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
