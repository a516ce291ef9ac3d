package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents gateway configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Flow table configuration
	Table TableConfig `yaml:"table"`

	// Redis configuration (flow event sink)
	Redis RedisConfig `yaml:"redis"`

	// Flow event publishing
	Events EventsConfig `yaml:"events"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Tracing configuration
	Tracing TracingConfig `yaml:"tracing"`

	// Graceful shutdown timeout
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// How often the config file is re-read; 0 disables hot reload
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	// Listen address for client connections
	ListenAddr string `yaml:"listen_addr"`

	// Listen address for /metrics, /healthz, /readyz and /flows
	HTTPAddr string `yaml:"http_addr"`

	// Log level: debug, info, warn, error (hot reloadable)
	LogLevel string `yaml:"log_level"`

	// Per-frame read deadline for client connections
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// TableConfig sizes the flow table. The table never grows past Capacity;
// the least recently active flow is recycled instead.
type TableConfig struct {
	// Total number of flow slots across all shards
	Capacity int `yaml:"capacity"`

	// Slots per hash bucket
	LoadFactor float64 `yaml:"load_factor"`

	// Number of independently locked shards (power of two)
	Shards int `yaml:"shards"`

	// Flows idle longer than this are released (hot reloadable)
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// Interval of the idle sweep
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Key prefix for Redis keys
	KeyPrefix string `yaml:"key_prefix"`

	// Connection pool configuration
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// EventsConfig controls publishing of flow eviction/expiry/close events
type EventsConfig struct {
	// Publish to Redis; when false events are only logged
	Enabled bool `yaml:"enabled"`

	// Flush after this many events
	BatchSize int `yaml:"batch_size"`

	// Flush at least this often
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Length of the capped recent-events list
	RecentLimit int64 `yaml:"recent_limit"`

	// Consecutive publish failures before the breaker opens
	BreakerMaxFailures int64 `yaml:"breaker_max_failures"`

	// Time the breaker stays open
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`

	// Startup connectivity check
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	// Maximum concurrent client connections
	MaxConnections int `yaml:"max_connections"`

	// Maximum connections per IP address
	MaxConnectionsPerIP int `yaml:"max_connections_per_ip"`

	// Connection rate limit (connections per second per IP)
	ConnectionRateLimit int `yaml:"connection_rate_limit"`

	// Maximum frame body size (bytes)
	MaxMessageSize int `yaml:"max_message_size"`
}

// TracingConfig represents tracing configuration
type TracingConfig struct {
	// Jaeger collector endpoint; empty disables tracing
	JaegerEndpoint string `yaml:"jaeger_endpoint"`

	// Service name reported to the collector
	ServiceName string `yaml:"service_name"`
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses, defaults and validates configuration from yaml bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set default values
	setDefaults(&cfg)

	// Validate configuration
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// ValidateConfig validates the configuration (exported for hot reload)
func ValidateConfig(cfg *Config) error {
	return validateConfig(cfg)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	// Validate server configuration
	if cfg.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if cfg.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be greater than 0")
	}

	// Validate table configuration
	if cfg.Table.Capacity <= 0 {
		return fmt.Errorf("table.capacity must be greater than 0")
	}
	if cfg.Table.LoadFactor <= 0 {
		return fmt.Errorf("table.load_factor must be greater than 0")
	}
	if cfg.Table.Shards <= 0 || cfg.Table.Shards&(cfg.Table.Shards-1) != 0 {
		return fmt.Errorf("table.shards must be a power of two")
	}
	if cfg.Table.Shards > cfg.Table.Capacity {
		return fmt.Errorf("table.shards (%d) must not exceed table.capacity (%d)", cfg.Table.Shards, cfg.Table.Capacity)
	}
	if cfg.Table.IdleTimeout <= 0 {
		return fmt.Errorf("table.idle_timeout must be greater than 0")
	}
	if cfg.Table.CleanupInterval <= 0 {
		return fmt.Errorf("table.cleanup_interval must be greater than 0")
	}

	// Validate Redis configuration
	if cfg.Events.Enabled {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when events are enabled")
		}
		if cfg.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be greater than 0")
		}
	}

	// Validate events configuration
	if cfg.Events.BatchSize <= 0 {
		return fmt.Errorf("events.batch_size must be greater than 0")
	}
	if cfg.Events.FlushInterval <= 0 {
		return fmt.Errorf("events.flush_interval must be greater than 0")
	}

	// Validate security configuration
	if cfg.Security.MaxConnections <= 0 {
		return fmt.Errorf("security.max_connections must be greater than 0")
	}
	if cfg.Security.MaxMessageSize <= 0 || cfg.Security.MaxMessageSize > 0xFFFF {
		return fmt.Errorf("security.max_message_size must be between 1 and 65535")
	}

	// Validate graceful shutdown timeout
	if cfg.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be greater than 0")
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":9091"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 60 * time.Second
	}

	if cfg.Table.Capacity == 0 {
		cfg.Table.Capacity = 65536
	}
	if cfg.Table.LoadFactor == 0 {
		cfg.Table.LoadFactor = 0.75
	}
	if cfg.Table.Shards == 0 {
		cfg.Table.Shards = 16
	}
	if cfg.Table.IdleTimeout == 0 {
		cfg.Table.IdleTimeout = 5 * time.Minute
	}
	if cfg.Table.CleanupInterval == 0 {
		cfg.Table.CleanupInterval = 30 * time.Second
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "flow-gateway:"
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.MinIdleConns == 0 {
		cfg.Redis.MinIdleConns = 2
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}

	if cfg.Events.BatchSize == 0 {
		cfg.Events.BatchSize = 100
	}
	if cfg.Events.FlushInterval == 0 {
		cfg.Events.FlushInterval = 5 * time.Second
	}
	if cfg.Events.RecentLimit == 0 {
		cfg.Events.RecentLimit = 1000
	}
	if cfg.Events.BreakerMaxFailures == 0 {
		cfg.Events.BreakerMaxFailures = 5
	}
	if cfg.Events.BreakerTimeout == 0 {
		cfg.Events.BreakerTimeout = 30 * time.Second
	}
	if cfg.Events.MaxRetries == 0 {
		cfg.Events.MaxRetries = 3
	}
	if cfg.Events.RetryDelay == 0 {
		cfg.Events.RetryDelay = 100 * time.Millisecond
	}

	// Security defaults
	if cfg.Security.MaxConnections == 0 {
		cfg.Security.MaxConnections = 10000
	}
	if cfg.Security.MaxConnectionsPerIP == 0 {
		cfg.Security.MaxConnectionsPerIP = 10 // 10 connections per IP default
	}
	if cfg.Security.ConnectionRateLimit == 0 {
		cfg.Security.ConnectionRateLimit = 5 // 5 connections per second per IP
	}
	if cfg.Security.MaxMessageSize == 0 {
		cfg.Security.MaxMessageSize = 0xFFFF
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "flow-gateway"
	}

	if cfg.GracefulShutdownTimeout == 0 {
		cfg.GracefulShutdownTimeout = 30 * time.Second
	}
}
