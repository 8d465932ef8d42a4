// Package config provides configuration loading, defaults, and validation for
// the FairPlay-Intelligence platform.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"
	DefaultGRPCPort   = 9090

	DefaultEngineBinary   = "stockfish"
	DefaultEngineHashMB   = 64
	DefaultEngineThreads  = 1
	DefaultEnginePoolSize = 2

	DefaultAnalysisDepth   = 12
	DefaultAnalysisMultiPV = 3
	DefaultMaxOpeningMoves = 40
	DefaultGameThreshold   = 10
	DefaultRateLimitDelay  = 100 * time.Millisecond

	DefaultExplorerBaseURL = "https://explorer.lichess.ovh/lichess"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "fairplay"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "fairplay:"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "fairplay-workers"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "fairplay-pgn"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 4
	DefaultWorkerHealthPort  = 8081

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "fairplay"
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling raw config data and before Validate() so that
// optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Synchronous analysis holds the connection open for the whole game.
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 1 << 20 // 1 MiB covers any realistic PGN
	}
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	if cfg.Engine.BinaryPath == "" {
		cfg.Engine.BinaryPath = DefaultEngineBinary
	}
	if cfg.Engine.HashMB == 0 {
		cfg.Engine.HashMB = DefaultEngineHashMB
	}
	if cfg.Engine.Threads == 0 {
		cfg.Engine.Threads = DefaultEngineThreads
	}
	if cfg.Engine.PoolSize == 0 {
		cfg.Engine.PoolSize = DefaultEnginePoolSize
	}
	if cfg.Engine.MoveTimeout == 0 {
		cfg.Engine.MoveTimeout = 30 * time.Second
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.Depth == 0 {
		cfg.Analysis.Depth = DefaultAnalysisDepth
	}
	if cfg.Analysis.MultiPV == 0 {
		cfg.Analysis.MultiPV = DefaultAnalysisMultiPV
	}
	if cfg.Analysis.MaxOpeningMoves == 0 {
		cfg.Analysis.MaxOpeningMoves = DefaultMaxOpeningMoves
	}
	if cfg.Analysis.GameThreshold == 0 {
		cfg.Analysis.GameThreshold = DefaultGameThreshold
	}
	if cfg.Analysis.RateLimitDelay == 0 {
		cfg.Analysis.RateLimitDelay = DefaultRateLimitDelay
	}

	// ── Explorer ──────────────────────────────────────────────────────────────
	if cfg.Explorer.BaseURL == "" {
		cfg.Explorer.BaseURL = DefaultExplorerBaseURL
	}
	if cfg.Explorer.Timeout == 0 {
		cfg.Explorer.Timeout = 10 * time.Second
	}
	if cfg.Explorer.CacheTTL == 0 {
		cfg.Explorer.CacheTTL = 12 * time.Hour
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = time.Hour
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 15 * time.Minute
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.QueueDepth == 0 {
		cfg.Worker.QueueDepth = 64
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = time.Second
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}
	if cfg.Worker.DrainTimeout == 0 {
		cfg.Worker.DrainTimeout = 30 * time.Second
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Logging ───────────────────────────────────────────────────────────────
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}
