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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Validation ValidationConfig
	Features   FeaturesConfig
	Linkage    LinkageConfig
	InEffect   InEffectConfig
	Events     EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ValidationConfig carries the blocking classification for validation-error
// types. Error computation happens upstream; this table only decides which
// reported types gate lifecycle transitions.
type ValidationConfig struct {
	BlockingTypes []string
}

// FeaturesConfig collects deployment toggles.
type FeaturesConfig struct {
	// TestUserOverride lets a single actor carry both acceptance parties.
	// Ignored in production regardless of its value.
	TestUserOverride bool
}

// LinkageConfig tunes the background refresh of linked-inspection
// staleness flags.
type LinkageConfig struct {
	RefreshWorkers int
	RefreshRetries int
	RetryDelay     time.Duration
}

// InEffectConfig tunes read-side caching of in-effect version lookups.
type InEffectConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// EventsConfig tunes the notification hub.
type EventsConfig struct {
	SubscriberBuffer int
	RedisChannel     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Validation = ValidationConfig{
		BlockingTypes: splitAndTrim(v.GetString("VALIDATION_BLOCKING_TYPES")),
	}

	cfg.Features = FeaturesConfig{
		TestUserOverride: v.GetBool("FEATURE_TEST_USER_OVERRIDE"),
	}
	if cfg.Env == EnvProduction {
		cfg.Features.TestUserOverride = false
	}

	cfg.Linkage = LinkageConfig{
		RefreshWorkers: v.GetInt("LINKAGE_REFRESH_WORKERS"),
		RefreshRetries: v.GetInt("LINKAGE_REFRESH_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("LINKAGE_RETRY_DELAY"), 2*time.Second),
	}

	cfg.InEffect = InEffectConfig{
		CacheEnabled: v.GetBool("IN_EFFECT_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("IN_EFFECT_CACHE_TTL"), 30*time.Second),
	}

	cfg.Events = EventsConfig{
		SubscriberBuffer: v.GetInt("EVENTS_SUBSCRIBER_BUFFER"),
		RedisChannel:     v.GetString("EVENTS_REDIS_CHANNEL"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "inspections")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// Missing departure blocks and catalogue conflicts block forward
	// transitions; everything else reported upstream is advisory.
	v.SetDefault("VALIDATION_BLOCKING_TYPES", "MISSING_DEPARTURE_BLOCKS,CATALOGUE_CONFLICT,INVALID_DATE_RANGE")

	v.SetDefault("FEATURE_TEST_USER_OVERRIDE", false)

	v.SetDefault("LINKAGE_REFRESH_WORKERS", 2)
	v.SetDefault("LINKAGE_REFRESH_RETRIES", 3)
	v.SetDefault("LINKAGE_RETRY_DELAY", "2s")

	v.SetDefault("IN_EFFECT_CACHE_ENABLED", true)
	v.SetDefault("IN_EFFECT_CACHE_TTL", "30s")

	v.SetDefault("EVENTS_SUBSCRIBER_BUFFER", 16)
	v.SetDefault("EVENTS_REDIS_CHANNEL", "inspection-events")
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
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
