package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// EngineConfig — политика движка сетки. Может задаваться YAML-файлом.
type EngineConfig struct {
	GroupSize           int    `yaml:"group_size"`
	SplitPolicy         string `yaml:"split_policy"`
	TxMaxRetries        uint64 `yaml:"tx_max_retries"`
	ConsistencySchedule string `yaml:"consistency_schedule"`
	SweepConcurrency    int    `yaml:"sweep_concurrency"`
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Enabled reports whether snapshot archival is configured.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.BucketName != ""
}

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	Store          string
	DatabaseURL    string
	MigrateOnStart bool
	JWTSecretKey   string
	ServerPort     int
	LogLevel       slog.Level
	LogFile        string
	Environment    string

	RedisURL        string
	SentryDSN       string
	OperatorKeyHash string
	CORSOrigins     []string
	R2              R2Config

	Engine EngineConfig
}

func defaultEngine() EngineConfig {
	return EngineConfig{
		GroupSize:           16,
		SplitPolicy:         "halves",
		TxMaxRetries:        5,
		ConsistencySchedule: "*/10 * * * *",
		SweepConcurrency:    4,
	}
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv(os.Getenv)
}

// LoadFromEnv builds the config from getenv. Values from BRACKET_CONFIG_FILE are
// applied first and environment variables override them.
func LoadFromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Store:           strings.ToLower(valueOr(getenv("STORE"), StorePostgres)),
		DatabaseURL:     getenv("DATABASE_URL"),
		JWTSecretKey:    getenv("JWT_SECRET_KEY"),
		LogFile:         getenv("LOG_FILE"),
		Environment:     valueOr(getenv("APP_ENV"), "development"),
		RedisURL:        getenv("REDIS_URL"),
		SentryDSN:       getenv("SENTRY_DSN"),
		OperatorKeyHash: getenv("OPERATOR_KEY_HASH"),
		CORSOrigins:     splitList(valueOr(getenv("CORS_ALLOWED_ORIGINS"), "*")),
		R2: R2Config{
			AccountID:       getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),
		},
		Engine: defaultEngine(),
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL environment variable is not set")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}

	if cfg.JWTSecretKey == "" {
		return nil, errors.New("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(valueOr(getenv("SERVER_PORT"), "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	if err := cfg.LogLevel.UnmarshalText([]byte(valueOr(getenv("LOG_LEVEL"), "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if v := getenv("MIGRATE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MIGRATE_ON_START: %w", err)
		}
		cfg.MigrateOnStart = b
	}

	if path := getenv("BRACKET_CONFIG_FILE"); path != "" {
		if err := cfg.Engine.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Engine.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (e *EngineConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, e); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (e *EngineConfig) applyEnv(getenv func(string) string) error {
	if v := getenv("GROUP_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GROUP_SIZE: %w", err)
		}
		e.GroupSize = n
	}
	if v := getenv("SPLIT_POLICY"); v != "" {
		e.SplitPolicy = v
	}
	if v := getenv("TX_MAX_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TX_MAX_RETRIES: %w", err)
		}
		e.TxMaxRetries = n
	}
	if v := getenv("CONSISTENCY_SCHEDULE"); v != "" {
		e.ConsistencySchedule = v
	}
	if v := getenv("SWEEP_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SWEEP_CONCURRENCY: %w", err)
		}
		e.SweepConcurrency = n
	}
	return nil
}

func (e EngineConfig) Validate() error {
	if e.GroupSize < 4 || e.GroupSize&(e.GroupSize-1) != 0 {
		return fmt.Errorf("group size must be a power of two of at least 4, got %d", e.GroupSize)
	}
	switch e.SplitPolicy {
	case "halves", "alternate":
	default:
		return fmt.Errorf("split policy must be halves or alternate, got %q", e.SplitPolicy)
	}
	if e.SweepConcurrency <= 0 {
		return fmt.Errorf("sweep concurrency must be positive, got %d", e.SweepConcurrency)
	}
	return nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
