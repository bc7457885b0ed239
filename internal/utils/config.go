package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort     string
	RequestTimeout time.Duration
	Session        SessionConfig
	Hashing        HashingConfig
	Mongo          MongoConfig
	Postgres       PostgresConfig
	Redis          RedisConfig
	Logging        LoggingConfig
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	Issuer       string
	SecureCookie bool
}

type HashingConfig struct {
	Cost        int
	Concurrency int
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// PostgresConfig configures the optional audit store. An empty DSN disables it.
type PostgresConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

// RedisConfig configures the optional login throttle. An empty URL disables it.
type RedisConfig struct {
	URL                string
	LoginMaxAttempts   int64
	LoginAttemptWindow time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != ""
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

// LoadEnvFile loads a .env file into the process environment. A missing file
// is not an error so that variables can be supplied externally.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func LoadConfig() (*Config, error) {
	logging := LoggingConfig{
		Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
		Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
		EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
		ServiceName:  envOrDefault("SERVICE_NAME", "useradmin"),
	}

	cfg := &Config{
		ServerPort:     envOrDefault("PORT", "8080"),
		RequestTimeout: parseDuration(envOrDefault("REQUEST_TIMEOUT", "10s"), 10*time.Second),
		Session: SessionConfig{
			Secret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
			TTL:          parseDuration(envOrDefault("SESSION_TTL", "24h"), 24*time.Hour),
			Issuer:       envOrDefault("SESSION_ISSUER", "useradmin"),
			SecureCookie: parseBool(envOrDefault("SESSION_SECURE_COOKIE", "false"), false),
		},
		Hashing: HashingConfig{
			Cost:        parseInt(envOrDefault("BCRYPT_COST", "10"), 10),
			Concurrency: parseInt(envOrDefault("HASH_CONCURRENCY", strconv.Itoa(runtime.GOMAXPROCS(0))), runtime.GOMAXPROCS(0)),
		},
		Mongo:    mongoConfigFromEnv(),
		Postgres: postgresConfigFromEnv(),
		Redis: RedisConfig{
			URL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
			LoginMaxAttempts:   int64(parseInt(envOrDefault("LOGIN_MAX_ATTEMPTS", "5"), 5)),
			LoginAttemptWindow: parseDuration(envOrDefault("LOGIN_ATTEMPT_WINDOW", "15m"), 15*time.Minute),
		},
		Logging: logging,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadMongoConfig reads only the Mongo settings, for tools that do not serve
// HTTP.
func LoadMongoConfig() (MongoConfig, error) {
	cfg := mongoConfigFromEnv()
	if cfg.URI == "" {
		return cfg, fmt.Errorf("missing required environment variables: MONGO_URI")
	}
	return cfg, nil
}

func mongoConfigFromEnv() MongoConfig {
	return MongoConfig{
		URI:            strings.TrimSpace(os.Getenv("MONGO_URI")),
		Database:       envOrDefault("MONGO_DATABASE", "career_secure_db"),
		ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		MaxPoolSize:    uint64(parseInt(envOrDefault("MONGO_MAX_POOL_SIZE", "50"), 50)),
	}
}

// LoadPostgresConfig reads only the audit database settings.
func LoadPostgresConfig() (PostgresConfig, error) {
	cfg := postgresConfigFromEnv()
	if !cfg.Enabled() {
		return cfg, fmt.Errorf("missing required environment variables: POSTGRES_DSN")
	}
	return cfg, nil
}

func postgresConfigFromEnv() PostgresConfig {
	return PostgresConfig{
		DSN:               strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		MaxConns:          parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "4"), 4),
		MinConns:          parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "0"), 0),
		MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
		MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
		HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
		ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
	}
}

func (c *Config) validate() error {
	missing := make([]string, 0, 2)

	if c.Mongo.URI == "" {
		missing = append(missing, "MONGO_URI")
	}

	if c.Session.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(value string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || i <= 0 {
		return fallback
	}
	return i
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	if err != nil || i < 0 {
		return fallback
	}
	return int32(i)
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
