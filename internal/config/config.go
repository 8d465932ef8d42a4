// Package config defines all configuration structures for the
// FairPlay-Intelligence platform.  No I/O or parsing logic lives here — only
// plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	// Debug registers the reflection service, letting grpcurl explore the
	// server. Leave off in production.
	Debug bool `mapstructure:"debug"`
}

// EngineConfig holds UCI chess-engine process parameters.
type EngineConfig struct {
	// BinaryPath is the engine executable, resolved via $PATH when relative.
	BinaryPath string `mapstructure:"binary_path"`
	// HashMB is the engine transposition-table size in megabytes.
	HashMB int `mapstructure:"hash_mb"`
	// Threads is the engine search thread count.  Keep at 1 for reproducible
	// evaluations; multi-threaded search is nondeterministic.
	Threads int `mapstructure:"threads"`
	// PoolSize is the number of engine processes kept alive for concurrent
	// game analysis.
	PoolSize int `mapstructure:"pool_size"`
	// MoveTimeout bounds a single position evaluation.
	MoveTimeout time.Duration `mapstructure:"move_timeout"`
}

// AnalysisConfig holds the per-game analysis pipeline parameters.
type AnalysisConfig struct {
	// Depth is the default engine search depth per position.
	Depth int `mapstructure:"depth"`
	// MultiPV is the number of candidate lines requested per position.
	// Complexity scoring consumes the top three.
	MultiPV int `mapstructure:"multi_pv"`
	// MaxOpeningMoves caps the number of plies probed against opening theory.
	MaxOpeningMoves int `mapstructure:"max_opening_moves"`
	// GameThreshold is the minimum number of database games for a position to
	// still count as known theory.
	GameThreshold int `mapstructure:"game_threshold"`
	// RateLimitDelay is the pause between consecutive opening-explorer queries.
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay"`
}

// ExplorerConfig holds the opening-explorer HTTP client parameters.
type ExplorerConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	TimeoutMS       int      `mapstructure:"timeout_ms"`
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	QueueDepth     int           `mapstructure:"queue_depth"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	HealthPort     int           `mapstructure:"health_port"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire platform.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Explorer ExplorerConfig `mapstructure:"explorer"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  logging.Config `mapstructure:"logging"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
	}

	// Engine
	if c.Engine.BinaryPath == "" {
		return fmt.Errorf("config: engine.binary_path is required")
	}
	if c.Engine.Threads < 1 {
		return fmt.Errorf("config: engine.threads must be >= 1, got %d", c.Engine.Threads)
	}
	if c.Engine.PoolSize < 1 {
		return fmt.Errorf("config: engine.pool_size must be >= 1, got %d", c.Engine.PoolSize)
	}

	// Analysis
	if c.Analysis.Depth < 1 || c.Analysis.Depth > 30 {
		return fmt.Errorf("config: analysis.depth %d is out of range [1, 30]", c.Analysis.Depth)
	}
	if c.Analysis.MultiPV < 1 || c.Analysis.MultiPV > 10 {
		return fmt.Errorf("config: analysis.multi_pv %d is out of range [1, 10]", c.Analysis.MultiPV)
	}
	if c.Analysis.MaxOpeningMoves < 1 {
		return fmt.Errorf("config: analysis.max_opening_moves must be >= 1, got %d", c.Analysis.MaxOpeningMoves)
	}
	if c.Analysis.GameThreshold < 0 {
		return fmt.Errorf("config: analysis.game_threshold must be >= 0, got %d", c.Analysis.GameThreshold)
	}

	// Explorer
	if c.Explorer.BaseURL == "" {
		return fmt.Errorf("config: explorer.base_url is required")
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is invalid; expected debug|info|warn|error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: logging.format %q is invalid; expected json|console", c.Logging.Format)
	}

	return nil
}
