// The worker binary drains the analysis queue. Each consumer in the group
// takes a partition share of game.analysis.request, runs the full pipeline
// on every job and writes the result back through Postgres, MinIO and the
// completion topic. Parallelism scales with the consumer count, one engine
// search at a time each.
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
)

// Build-time variables injected via ldflags.
var version = "dev"

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	consumers := flag.Int("consumers", 0, "consumer count (overrides worker.concurrency)")
	ensureTopics := flag.Bool("ensure-topics", true, "create missing Kafka topics on startup")
	flag.Parse()

	if err := run(*configPath, *consumers, *ensureTopics); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, consumerCount int, ensureTopics bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if consumerCount <= 0 {
		consumerCount = cfg.Worker.Concurrency
	}
	if consumerCount <= 0 {
		consumerCount = 1
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting fairplay worker",
		logging.String("version", version),
		logging.Int("consumers", consumerCount),
		logging.String("group", cfg.Kafka.GroupID),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Infrastructure ──────────────────────────────────────────────────

	conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer conn.Close()

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

	if ensureTopics {
		tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
		if err != nil {
			return err
		}
		err = tm.EnsureDefaultTopics(ctx)
		_ = tm.Close()
		if err != nil {
			return err
		}
	}

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
		Locks:       redis.NewLockFactory(redisClient, logger),
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

	// ─── Consumers ───────────────────────────────────────────────────────

	consumers := make([]*kafka.Consumer, 0, consumerCount)
	defer func() {
		for _, c := range consumers {
			_ = c.Close()
		}
	}()

	for i := 0; i < consumerCount; i++ {
		c, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         cfg.Kafka.GroupID,
			Topics:          []string{kafka.TopicAnalysisRequest},
			AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
			Retry: kafka.RetryConfig{
				MaxRetries:      cfg.Worker.MaxRetries,
				RetryBackoff:    cfg.Worker.RetryBackoff,
				DeadLetterTopic: kafka.TopicAnalysisDLQ,
			},
		}, logger)
		if err != nil {
			return err
		}
		consumers = append(consumers, c)

		if err := c.Subscribe(kafka.TopicAnalysisRequest, svc.ProcessJob); err != nil {
			return err
		}
		if err := c.Start(ctx); err != nil {
			return err
		}
	}

	gauges := newQueueGauges(collector)
	go gauges.poll(ctx, consumers, producer, 15*time.Second)

	healthSrv := startHealthServer(cfg, collector, buildCheckers(conn, redisClient, storeClient), logger)

	// ─── Shutdown ────────────────────────────────────────────────────────

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", logging.String("signal", sig.String()))

	// Closing a consumer interrupts its in-flight job; the uncommitted
	// offset is redelivered to another group member, so no job is lost.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Worker.DrainTimeout)
	defer drainCancel()

	done := make(chan struct{})
	go func() {
		for _, c := range consumers {
			_ = c.Close()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-drainCtx.Done():
		logger.Warn("drain timeout exceeded, forcing exit")
		cancel()
		<-done
	}
	consumers = nil

	if err := healthSrv.Stop(drainCtx); err != nil {
		logger.Error("health server shutdown failed", logging.Err(err))
	}

	logger.Info("worker stopped")
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
