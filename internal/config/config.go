package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTPAddr        string        `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	Storage Storage `yaml:"storage"`
	Auth    Auth    `yaml:"auth"`

	SeedCategories []string `yaml:"seed_categories" env:"SEED_CATEGORIES" env-separator:"," env-default:"General,Work,Personal,Shopping"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" env-default:"0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" env-default:"10"`

	TraceExporter string `yaml:"trace_exporter" env:"TRACE_EXPORTER" env-default:"none"`
	OTLPEndpoint  string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT" env-default:"localhost:4318"`
}

type Storage struct {
	Backend       string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"sqlite"`
	SQLitePath    string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"data/tasks.db"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPrefix   string `yaml:"redis_prefix" env:"REDIS_PREFIX" env-default:"lightly:"`
	TasksKey      string `yaml:"tasks_key" env:"TASKS_KEY" env-default:"tasks_v2"`
	CategoriesKey string `yaml:"categories_key" env:"CATEGORIES_KEY" env-default:"categories_v1"`
}

type Auth struct {
	Mode        string `yaml:"mode" env:"AUTH_MODE" env-default:"none"`
	APIKey      string `yaml:"api_key" env:"API_KEY"`
	BearerToken string `yaml:"bearer_token" env:"BEARER_TOKEN"`
	JWTSecret   string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer   string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
}

// Load reads configPath when it is set and exists, otherwise the environment
// alone. Environment variables override file values.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
		return cfg, cfg.validate()
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("read config %q: %w", configPath, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch strings.ToLower(c.Auth.Mode) {
	case "none", "":
	case "apikey":
		if c.Auth.APIKey == "" {
			return errors.New("auth mode apikey needs API_KEY")
		}
	case "bearer":
		if c.Auth.BearerToken == "" {
			return errors.New("auth mode bearer needs BEARER_TOKEN")
		}
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return errors.New("auth mode jwt needs JWT_SECRET")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	return nil
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
