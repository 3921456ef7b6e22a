// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Economy     EconomyConfig     `mapstructure:"economy"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Referral    ReferralConfig    `mapstructure:"referral"`
	Bot         BotConfig         `mapstructure:"bot"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// StoreConfig selects the economy store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig holds the leaderboard cache connection settings.
// An empty Addr disables the cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DailyTTL     time.Duration `mapstructure:"daily_ttl"`
}

// KafkaConfig holds click event streaming settings.
// No brokers means events are not published.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	GroupID      string        `mapstructure:"group_id"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// EconomyConfig holds the tunables of the click economy.
type EconomyConfig struct {
	EnergyRegenInterval time.Duration `mapstructure:"energy_regen_interval"`
	DefaultMaxEnergy    int           `mapstructure:"default_max_energy"`
	StreakMinClicks     int64         `mapstructure:"streak_min_clicks"`
	PriceGrowth         string        `mapstructure:"price_growth"`
}

// LeaderboardConfig holds daily ranking settings.
type LeaderboardConfig struct {
	Limit             int           `mapstructure:"limit"`
	MaxLimit          int           `mapstructure:"max_limit"`
	Rewards           []int64       `mapstructure:"rewards"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
}

// ReferralConfig holds referral bonus settings.
type ReferralConfig struct {
	Bonus string `mapstructure:"bonus"`
}

// BotConfig holds Telegram companion bot configuration.
// The bot is started only when a token is set.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Enabled reports whether a Redis address is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Enabled reports whether Kafka brokers are configured.
func (k *KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. AUTH_JWT_SECRET, DATABASE_HOST, ECONOMY_ENERGY_REGEN_INTERVAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Economy.EnergyRegenInterval <= 0 {
		return fmt.Errorf("economy.energy_regen_interval must be positive")
	}
	if c.Economy.DefaultMaxEnergy < 1 {
		return fmt.Errorf("economy.default_max_energy must be at least 1")
	}
	if c.Leaderboard.Limit < 1 || c.Leaderboard.Limit > c.Leaderboard.MaxLimit {
		return fmt.Errorf("leaderboard.limit must be between 1 and %d", c.Leaderboard.MaxLimit)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "clicker")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "clicker")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("store.driver", StoreDriverPostgres)

	// Keys without a real default are still registered so that
	// AutomaticEnv overrides reach Unmarshal.
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("bot.token", "")

	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.daily_ttl", "72h")

	v.SetDefault("kafka.topic", "clicker-clicks")
	v.SetDefault("kafka.group_id", "clicker-history")
	v.SetDefault("kafka.batch_size", 200)
	v.SetDefault("kafka.batch_timeout", "2s")

	v.SetDefault("economy.energy_regen_interval", "1s")
	v.SetDefault("economy.default_max_energy", 1000)
	v.SetDefault("economy.streak_min_clicks", 100)
	v.SetDefault("economy.price_growth", "1.5")

	v.SetDefault("leaderboard.limit", 10)
	v.SetDefault("leaderboard.max_limit", 100)
	v.SetDefault("leaderboard.rewards", []int64{10000, 5000, 2500})
	v.SetDefault("leaderboard.broadcast_interval", "2s")

	v.SetDefault("referral.bonus", "5")
}
