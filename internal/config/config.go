// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	FrontendURL    string        `yaml:"frontend_url"` // CORS origin
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Version        string        `yaml:"version"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // apply embedded schema on startup
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // empty disables message encryption at rest
}

type RateLimitConfig struct {
	Requests     int           `yaml:"requests"`
	AuthRequests int           `yaml:"auth_requests"`
	Window       time.Duration `yaml:"window"`
}

type DispatchConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	LeaseTTL  time.Duration `yaml:"lease_ttl"`
}

type RealtimeConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PongWait     time.Duration `yaml:"pong_wait"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Realtime  RealtimeConfig  `yaml:"realtime"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides
// (a .env file next to the binary is honoured) and fills defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse builds a Config from raw YAML. Split out of LoadConfig for tests.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if n := len(cfg.Security.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", n)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		cfg.Server.FrontendURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Server.Port = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = "http://localhost:3000"
	}
	cfg.Server.ReadTimeout = orDefault(cfg.Server.ReadTimeout, 15*time.Second)
	cfg.Server.WriteTimeout = orDefault(cfg.Server.WriteTimeout, 15*time.Second)
	cfg.Server.RequestTimeout = orDefault(cfg.Server.RequestTimeout, 10*time.Second)
	if cfg.Server.Version == "" {
		cfg.Server.Version = "dev"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}

	cfg.Auth.TokenTTL = orDefault(cfg.Auth.TokenTTL, 7*24*time.Hour)

	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 100
	}
	if cfg.RateLimit.AuthRequests <= 0 {
		cfg.RateLimit.AuthRequests = 5
	}
	cfg.RateLimit.Window = orDefault(cfg.RateLimit.Window, 15*time.Minute)

	cfg.Dispatch.Interval = orDefault(cfg.Dispatch.Interval, 10*time.Second)
	if cfg.Dispatch.BatchSize <= 0 {
		cfg.Dispatch.BatchSize = 20
	}
	cfg.Dispatch.LeaseTTL = orDefault(cfg.Dispatch.LeaseTTL, cfg.Dispatch.Interval)

	if cfg.Realtime.SendBuffer <= 0 {
		cfg.Realtime.SendBuffer = 32
	}
	cfg.Realtime.WriteTimeout = orDefault(cfg.Realtime.WriteTimeout, 10*time.Second)
	cfg.Realtime.PongWait = orDefault(cfg.Realtime.PongWait, 60*time.Second)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
