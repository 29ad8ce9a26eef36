// Package config loads application configuration from the environment.  A
// .env file in the working directory is read first when present; real
// environment variables always win.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all runtime configuration values.  Each leaf corresponds to
// an environment variable.
type Config struct {
	Env        string // APP_ENV
	Port       string // APP_PORT
	BcryptCost int    // BCRYPT_COST

	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	CORS      CORSConfig
	Log       LogConfig
	Sweeper   SweeperConfig
}

// DatabaseConfig describes the MySQL connection and its pool.  MaxOpenConns
// is the hard pool size; AcquireTimeout bounds how long a booking request
// waits for a free connection before it is rejected.
type DatabaseConfig struct {
	User           string
	Password       string
	Host           string
	Port           string
	Name           string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxLife    time.Duration
	AcquireTimeout time.Duration
	AutoMigrate    bool
}

type JWTConfig struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// AMQPConfig points at the RabbitMQ broker used for reservation events.
// An empty URL disables publishing.
type AMQPConfig struct {
	URL     string
	Queue   string
	LogFile string
	Consume bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SweeperConfig schedules the removal of past reservations that no longer
// hold any user.
type SweeperConfig struct {
	Enabled bool
	Spec    string
}

// Load reads configuration values and returns a Config.  Missing optional
// values fall back to defaults; a missing JWT secret is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Env:        v.GetString("APP_ENV"),
		Port:       v.GetString("APP_PORT"),
		BcryptCost: v.GetInt("BCRYPT_COST"),
	}

	cfg.Database = DatabaseConfig{
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASS"),
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetString("DB_PORT"),
		Name:           v.GetString("DB_NAME"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLife:    parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 30*time.Minute),
		AcquireTimeout: parseDuration(v.GetString("DB_ACQUIRE_TIMEOUT"), 5*time.Second),
		AutoMigrate:    v.GetBool("DB_AUTO_MIGRATE"),
	}
	if cfg.Database.MaxOpenConns < 1 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns > cfg.Database.MaxOpenConns {
		cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns
	}

	cfg.JWT = JWTConfig{
		Secret:         v.GetString("JWT_SECRET"),
		AccessTTLMin:   v.GetInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: v.GetInt("REFRESH_TOKEN_TTL_DAYS"),
	}
	if cfg.JWT.Secret == "" {
		return nil, errors.New("config: JWT_SECRET is required")
	}

	cfg.Redis = loadRedis(v)
	cfg.AMQP = AMQPConfig{
		URL:     v.GetString("AMQP_URL"),
		Queue:   v.GetString("AMQP_QUEUE"),
		LogFile: v.GetString("AMQP_LOG_FILE"),
		Consume: v.GetBool("AMQP_CONSUME"),
	}
	cfg.RateLimit = loadRateLimit(v)
	cfg.Cache = loadCache(v)
	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}
	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}
	cfg.Sweeper = SweeperConfig{
		Enabled: v.GetBool("SWEEPER_ENABLED"),
		Spec:    v.GetString("SWEEPER_SCHEDULE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("BCRYPT_COST", 12)

	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASS", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "pitch_dreamers")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_ACQUIRE_TIMEOUT", "5s")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	v.SetDefault("REFRESH_TOKEN_TTL_DAYS", 7)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TLS", false)

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_QUEUE", "reservation.changed")
	v.SetDefault("AMQP_LOG_FILE", "logs/reservations.log")
	v.SetDefault("AMQP_CONSUME", true)

	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SWEEPER_ENABLED", true)
	v.SetDefault("SWEEPER_SCHEDULE", "0 3 * * *")

	setRateLimitDefaults(v)
	setCacheDefaults(v)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
