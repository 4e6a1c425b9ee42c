package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MKT_"

// Config is the full application configuration. Values are layered:
// defaults, then an optional YAML file, then MKT_-prefixed environment
// variables.
type Config struct {
	Environment string         `koanf:"environment"`
	Server      ServerConfig   `koanf:"server"`
	Database    DatabaseConfig `koanf:"database"`
	Redis       RedisConfig    `koanf:"redis"`
	Resolver    ResolverConfig `koanf:"resolver"`
	Bidding     BiddingConfig  `koanf:"bidding"`
	Sharing     SharingConfig  `koanf:"sharing"`
	Log         LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
}

type RedisConfig struct {
	URL      string        `koanf:"url"`
	LockTTL  time.Duration `koanf:"lock_ttl"`
	LockWait time.Duration `koanf:"lock_wait"`
}

type ResolverConfig struct {
	TransactionInterval time.Duration `koanf:"transaction_interval"`
	AuctionInterval     time.Duration `koanf:"auction_interval"`
	SharingInterval     time.Duration `koanf:"sharing_interval"`
}

type BiddingConfig struct {
	RateEvery time.Duration `koanf:"rate_every"`
	RateBurst int           `koanf:"rate_burst"`
}

type SharingConfig struct {
	Ceiling time.Duration `koanf:"ceiling"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/meetpoint?sslmode=disable",
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			URL:      "redis://localhost:6379/0",
			LockTTL:  10 * time.Second,
			LockWait: 5 * time.Second,
		},
		Resolver: ResolverConfig{
			TransactionInterval: time.Minute,
			AuctionInterval:     30 * time.Second,
			SharingInterval:     5 * time.Minute,
		},
		Bidding: BiddingConfig{
			RateEvery: 3 * time.Second,
			RateBurst: 10,
		},
		Sharing: SharingConfig{
			Ceiling: 2 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. path may be empty; a missing file is not an
// error, so containers can run on env vars alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	// Double underscore separates nesting levels so keys with underscores
	// survive: MKT_DATABASE__MAX_CONNS -> database.max_conns
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis url is required")
	}
	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
