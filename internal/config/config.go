// Package config loads process configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration shared by all binaries.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Engine   EngineConfig   `yaml:"engine"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type AppConfig struct {
	Env             string        `yaml:"env"`
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// IsDevelopment reports whether pretty logging and debug gin mode apply.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// RedisConfig configures the idempotency store. An empty Addr disables it.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// KafkaConfig configures the outbox relay target. No brokers means the
// worker logs events instead of publishing them.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	RequiredAcks int           `yaml:"required_acks"`
}

// AuthConfig enables bearer-token auth when Secret is set.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Enabled reports whether /api/v1 requires a token.
func (a AuthConfig) Enabled() bool { return a.Secret != "" }

type EngineConfig struct {
	OutgoingReversal string `yaml:"outgoing_reversal"` // restore | ledger_only
	MaxAttempts      int    `yaml:"max_attempts"`
}

type WorkerConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	BatchSize      int           `yaml:"batch_size"`
	PurgeAfter     time.Duration `yaml:"purge_after"`
	MetricsAddress string        `yaml:"metrics_address"`
}

// Default returns the configuration used when neither file nor env say otherwise.
func Default() Config {
	return Config{
		App: AppConfig{
			Env:             "development",
			Port:            "8080",
			LogLevel:        "info",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Redis: RedisConfig{IdempotencyTTL: 24 * time.Hour},
		Kafka: KafkaConfig{
			Topic:        "stockledger.events",
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: -1,
		},
		Auth:   AuthConfig{Issuer: "stockledger", TokenTTL: 12 * time.Hour},
		Engine: EngineConfig{OutgoingReversal: "restore", MaxAttempts: 3},
		Worker: WorkerConfig{
			PollInterval:   time.Second,
			BatchSize:      100,
			PurgeAfter:     7 * 24 * time.Hour,
			MetricsAddress: ":9091",
		},
	}
}

// Load reads path (when non-empty) over Default, then applies env overrides.
// An empty path falls back to CONFIG_FILE.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Port = getEnv("APP_PORT", cfg.App.Port)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(cfg.Database.MaxConns)))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.IdempotencyTTL = getEnvDuration("IDEMPOTENCY_TTL", cfg.Redis.IdempotencyTTL)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Auth.Secret = getEnv("JWT_SECRET", cfg.Auth.Secret)
	cfg.Auth.TokenTTL = getEnvDuration("JWT_TTL", cfg.Auth.TokenTTL)

	cfg.Engine.OutgoingReversal = getEnv("OUTGOING_REVERSAL", cfg.Engine.OutgoingReversal)
	cfg.Engine.MaxAttempts = getEnvInt("ENGINE_MAX_ATTEMPTS", cfg.Engine.MaxAttempts)

	cfg.Worker.PollInterval = getEnvDuration("OUTBOX_POLL_INTERVAL", cfg.Worker.PollInterval)
	cfg.Worker.BatchSize = getEnvInt("OUTBOX_BATCH_SIZE", cfg.Worker.BatchSize)
	cfg.Worker.MetricsAddress = getEnv("WORKER_METRICS_ADDR", cfg.Worker.MetricsAddress)
}

// Validate rejects configurations no binary can run with.
func (c Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url (DATABASE_URL) is required"))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("database.max_conns must be positive, got %d", c.Database.MaxConns))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("database.min_conns %d exceeds max_conns %d", c.Database.MinConns, c.Database.MaxConns))
	}
	if _, err := strconv.Atoi(c.App.Port); err != nil {
		errs = append(errs, fmt.Errorf("app.port must be numeric, got %q", c.App.Port))
	}
	switch c.Engine.OutgoingReversal {
	case "restore", "ledger_only":
	default:
		errs = append(errs, fmt.Errorf("engine.outgoing_reversal must be restore or ledger_only, got %q", c.Engine.OutgoingReversal))
	}
	if c.Engine.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("engine.max_attempts must be at least 1, got %d", c.Engine.MaxAttempts))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.Auth.Enabled() && len(c.Auth.Secret) < 16 {
		errs = append(errs, errors.New("auth.secret must be at least 16 bytes"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive, got %d", c.Worker.BatchSize))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
