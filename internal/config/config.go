package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override file settings.
// Nested keys are separated by a double underscore: ARCADE_SERVER__PORT.
const EnvPrefix = "ARCADE_"

// Storage backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" koanf:"server"`
	Log       LogConfig       `yaml:"log" koanf:"log"`
	Storage   StorageConfig   `yaml:"storage" koanf:"storage"`
	Redis     RedisConfig     `yaml:"redis" koanf:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres" koanf:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka" koanf:"kafka"`
	Broadcast BroadcastConfig `yaml:"broadcast" koanf:"broadcast"`
	Limits    LimitsConfig    `yaml:"limits" koanf:"limits"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" koanf:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" koanf:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
}

// SlogLevel parses Level, falling back to info for unknown names
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// StorageConfig selects where player progress is kept
type StorageConfig struct {
	Backend    string `yaml:"backend" koanf:"backend"`
	SQLitePath string `yaml:"sqlite_path" koanf:"sqlite_path"`
}

// RedisConfig holds Redis connection configuration. Redis serves as blob
// storage when it is the storage backend and hosts the global leaderboards
// whenever it is enabled.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" koanf:"enabled"`
	Addr         string        `yaml:"addr" koanf:"addr"`
	Password     string        `yaml:"password" koanf:"password"`
	DB           int           `yaml:"db" koanf:"db"`
	PoolSize     int           `yaml:"pool_size" koanf:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" koanf:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" koanf:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" koanf:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix" koanf:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host" koanf:"host"`
	Port            int           `yaml:"port" koanf:"port"`
	User            string        `yaml:"user" koanf:"user"`
	Password        string        `yaml:"password" koanf:"password"`
	Database        string        `yaml:"database" koanf:"database"`
	SSLMode         string        `yaml:"ssl_mode" koanf:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections" koanf:"max_connections"`
	MinConnections  int           `yaml:"min_connections" koanf:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" koanf:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" koanf:"brokers"`
	Topic        string        `yaml:"topic" koanf:"topic"`
	GroupID      string        `yaml:"group_id" koanf:"group_id"`
	Enabled      bool          `yaml:"enabled" koanf:"enabled"`
	BatchSize    int           `yaml:"batch_size" koanf:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" koanf:"batch_timeout"`
	MaxAttempts  int           `yaml:"max_attempts" koanf:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff" koanf:"retry_backoff"`
}

// BroadcastConfig controls the periodic leaderboard push
type BroadcastConfig struct {
	Enabled  bool          `yaml:"enabled" koanf:"enabled"`
	Interval time.Duration `yaml:"interval" koanf:"interval"`
	TopN     int           `yaml:"top_n" koanf:"top_n"`
}

// LimitsConfig bounds list sizes served by the API
type LimitsConfig struct {
	DefaultTop    int `yaml:"default_top" koanf:"default_top"`
	DefaultRecent int `yaml:"default_recent" koanf:"default_recent"`
	MaxLimit      int `yaml:"max_limit" koanf:"max_limit"`
	HotThreshold  int `yaml:"hot_threshold" koanf:"hot_threshold"`
}

// Load reads configuration from a YAML file, then applies environment
// overrides and defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds a configuration from environment overrides and defaults only
func FromEnv() (*Config, error) {
	var cfg Config
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays ARCADE_* variables onto c
func (c *Config) applyEnv() error {
	k := koanf.New(".")

	provider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}
	return nil
}

// Validate reports settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Limits.DefaultTop > c.Limits.MaxLimit || c.Limits.DefaultRecent > c.Limits.MaxLimit {
		return fmt.Errorf("default limits exceed max_limit %d", c.Limits.MaxLimit)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	// Storage defaults
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "arcade.db"
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "arcade"
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "arcade-sessions"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "arcade-progress"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}
	if c.Kafka.MaxAttempts == 0 {
		c.Kafka.MaxAttempts = 3
	}
	if c.Kafka.RetryBackoff == 0 {
		c.Kafka.RetryBackoff = 500 * time.Millisecond
	}

	// Broadcast defaults
	if c.Broadcast.Interval == 0 {
		c.Broadcast.Interval = 5 * time.Second
	}
	if c.Broadcast.TopN == 0 {
		c.Broadcast.TopN = 10
	}

	// Limit defaults
	if c.Limits.DefaultTop == 0 {
		c.Limits.DefaultTop = 10
	}
	if c.Limits.DefaultRecent == 0 {
		c.Limits.DefaultRecent = 20
	}
	if c.Limits.MaxLimit == 0 {
		c.Limits.MaxLimit = 100
	}
	if c.Limits.HotThreshold == 0 {
		c.Limits.HotThreshold = 5
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
