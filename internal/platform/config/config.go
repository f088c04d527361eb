package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environments recognised by CENSUS_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	MaxImportBytes  int64
	Database        DatabaseConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
}

// DatabaseConfig selects the Postgres store. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig selects the Redis import id allocator. An empty URL leaves id
// allocation to the store backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers         []string
	Topic           string
	ClientID        string
	Linger          time.Duration
	DeliveryTimeout time.Duration
}

// IsProduction reports whether the service runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == EnvProduction
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	env := envReader{lookup: lookup}

	cfg := Server{
		Addr:            env.str("CENSUS_ADDR", ":8080"),
		Environment:     env.str("CENSUS_ENV", EnvDevelopment),
		ShutdownTimeout: env.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		RequestTimeout:  env.duration("REQUEST_TIMEOUT", 30*time.Second),
		MaxImportBytes:  int64(env.integer("MAX_IMPORT_BYTES", 64<<20)),
		Database: DatabaseConfig{
			URL:             env.str("DATABASE_URL", ""),
			MaxOpenConns:    env.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    env.integer("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          env.str("REDIS_URL", ""),
			PoolSize:     env.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         env.list("KAFKA_BROKERS"),
			Topic:           env.str("AUDIT_TOPIC", "census.audit"),
			ClientID:        env.str("KAFKA_CLIENT_ID", "census"),
			Linger:          env.duration("KAFKA_LINGER", 0),
			DeliveryTimeout: env.duration("KAFKA_DELIVERY_TIMEOUT", 10*time.Second),
		},
	}

	level, err := parseLevel(env.str("LOG_LEVEL", "info"))
	if err != nil {
		env.errs = append(env.errs, err)
	}
	cfg.LogLevel = level

	if cfg.Environment != EnvDevelopment && cfg.Environment != EnvProduction {
		env.errs = append(env.errs, fmt.Errorf("CENSUS_ENV: unknown environment %q", cfg.Environment))
	}
	if cfg.MaxImportBytes <= 0 {
		env.errs = append(env.errs, errors.New("MAX_IMPORT_BYTES: must be positive"))
	}

	if len(env.errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %w", errors.Join(env.errs...))
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (r *envReader) list(key string) []string {
	raw := r.str(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
