// The apiserver binary serves the REST API, the Prometheus exposition
// endpoint and the gRPC health service. Synchronous analysis runs in the
// request path; asynchronous submissions are queued on Kafka for the worker
// binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/config"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/engine/uci"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/explorer/lichess"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/storage/minio"
	grpcserver "github.com/turtacn/FairPlay-Intelligence/internal/interfaces/grpc"
	httpserver "github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http"
	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var version = "dev"

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	migrate := flag.Bool("migrate", true, "apply pending schema migrations on startup")
	flag.Parse()

	if err := run(*configPath, *migrate); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, migrate bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting fairplay API server",
		logging.String("version", version),
		logging.Int("http_port", cfg.Server.Port),
		logging.Bool("grpc_enabled", cfg.GRPC.Enabled),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	ctx := context.Background()

	// ─── Infrastructure ──────────────────────────────────────────────────

	conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if migrate {
		if err := conn.Migrate(); err != nil {
			return err
		}
	}

	games := repositories.NewGameRepository(conn.Pool(), logger)
	assessments := repositories.NewAssessmentRepository(conn.Pool(), logger)

	redisClient, err := redis.NewClient(&redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	storeClient, err := minio.NewClient(minio.Config{
		Endpoint:      cfg.MinIO.Endpoint,
		AccessKey:     cfg.MinIO.AccessKey,
		SecretKey:     cfg.MinIO.SecretKey,
		Bucket:        cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		PresignExpiry: cfg.MinIO.PresignExpiry,
	}, logger)
	if err != nil {
		return err
	}
	pgnStore := minio.NewPGNStore(storeClient, logger)

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		MaxRetries: cfg.Kafka.ProducerRetries,
		BatchSize:  cfg.Kafka.BatchSize,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = producer.Close() }()

	enginePool, err := uci.NewPool(cfg.Engine.PoolSize, uci.Config{
		BinaryPath: cfg.Engine.BinaryPath,
		HashMB:     cfg.Engine.HashMB,
		Threads:    cfg.Engine.Threads,
		MultiPV:    cfg.Analysis.MultiPV,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = enginePool.Close() }()

	var oracle opening.TheoryOracle = lichess.NewClient(lichess.Config{
		BaseURL: cfg.Explorer.BaseURL,
		Timeout: cfg.Explorer.Timeout,
	}, logger)
	oracle = lichess.NewCachedOracle(oracle, redis.NewCache(redisClient, logger), logger, cfg.Explorer.CacheTTL)

	// ─── Application ─────────────────────────────────────────────────────

	svc, err := assessment.NewService(assessment.Deps{
		Engine:      enginePool,
		Oracle:      oracle,
		Pool:        conn.Pool(),
		Games:       games,
		Assessments: assessments,
		Store:       pgnStore,
		Producer:    producer,
		Logger:      logger,
		Metrics:     appMetrics,
	}, assessment.Options{
		Depth:           cfg.Analysis.Depth,
		MultiPV:         cfg.Analysis.MultiPV,
		MaxOpeningMoves: cfg.Analysis.MaxOpeningMoves,
		GameThreshold:   cfg.Analysis.GameThreshold,
		RateLimitDelay:  cfg.Analysis.RateLimitDelay,
	})
	if err != nil {
		return err
	}

	// ─── Interfaces ──────────────────────────────────────────────────────

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	defer limiter.Stop()

	checkers := buildCheckers(conn, redisClient, storeClient)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Service:     svc,
		Logger:      logger,
		Collector:   collector,
		Version:     version,
		Checkers:    checkers,
		RateLimiter: limiter,
		Mode:        cfg.Server.Mode,
		MaxBodySize: cfg.Server.MaxBodySize,
	})
	httpSrv := httpserver.NewServer(cfg.Server, router, logger)

	httpErr := make(chan error, 1)
	go func() { httpErr <- httpSrv.Start() }()

	var grpcSrv *grpcserver.Server
	grpcErr := make(chan error, 1)
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(collector),
		)
		if err != nil {
			return err
		}
		go func() { grpcErr <- grpcSrv.Start() }()

		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go mirrorHealth(watchCtx, grpcSrv, checkers, 15*time.Second)
	}

	// ─── Shutdown ────────────────────────────────────────────────────────

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	case err := <-httpErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case err := <-grpcErr:
		if err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", logging.Err(err))
	}
	if grpcSrv != nil {
		if err := grpcSrv.Stop(shutdownCtx); err != nil {
			logger.Error("grpc shutdown failed", logging.Err(err))
		}
	}

	logger.Info("servers stopped")
	return nil
}

// loadConfig reads the file when it exists and falls back to environment
// variables, so the binary runs in containers with nothing mounted.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	if path != defaultConfigPath {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.LoadFromEnv()
}

func postgresConfig(cfg config.DatabaseConfig) postgres.Config {
	return postgres.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		DBName:          cfg.DBName,
		SSLMode:         cfg.SSLMode,
		MaxConns:        int32(cfg.MaxConns),
		MinConns:        int32(cfg.MinConns),
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}
