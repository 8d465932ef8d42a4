package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FairPlay-Intelligence/internal/config"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/storage/minio"
	httpserver "github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http"
	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http/middleware"
)

// buildCheckers wires the infrastructure probes behind the readiness
// endpoint.
func buildCheckers(conn *postgres.Connection, redisClient *redis.Client, store *minio.Client) []handlers.HealthChecker {
	return []handlers.HealthChecker{
		handlers.CheckerFunc{ComponentName: "postgres", Probe: conn.HealthCheck},
		handlers.CheckerFunc{ComponentName: "redis", Probe: redisClient.Ping},
		handlers.CheckerFunc{ComponentName: "minio", Probe: store.HealthCheck},
	}
}

// startHealthServer exposes probes and metrics on the worker's sidecar
// port. The worker takes no API traffic, so this is the whole HTTP surface.
func startHealthServer(cfg *config.Config, collector prometheus.MetricsCollector, checkers []handlers.HealthChecker, log logging.Logger) *httpserver.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(log))

	health := handlers.NewHealthHandler(version, checkers...)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(collector.Handler()))

	srv := httpserver.NewServer(config.ServerConfig{Port: cfg.Worker.HealthPort}, r, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("health server failed", logging.Err(err))
		}
	}()
	return srv
}

// queueGauges mirrors the Kafka client counters into the registry. The
// clients keep their counters as atomics, so a periodic poll is cheaper
// than instrumenting every message.
type queueGauges struct {
	consumer prometheus.GaugeVec
	producer prometheus.GaugeVec
	lag      prometheus.Gauge
}

func newQueueGauges(c prometheus.MetricsCollector) *queueGauges {
	return &queueGauges{
		consumer: c.RegisterGauge("kafka_consumer_messages",
			"Consumer counters by state, polled from the client.", "state"),
		producer: c.RegisterGauge("kafka_producer_messages",
			"Producer counters by state, polled from the client.", "state"),
		lag: c.RegisterGauge("kafka_consumer_lag",
			"Summed distance to the high-water mark at the last fetch.").WithLabelValues(),
	}
}

func (g *queueGauges) poll(ctx context.Context, consumers []*kafka.Consumer, producer *kafka.Producer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.scrape(consumers, producer)
		}
	}
}

func (g *queueGauges) scrape(consumers []*kafka.Consumer, producer *kafka.Producer) {
	var total kafka.ConsumerStats
	for _, c := range consumers {
		s := c.Metrics()
		total.MessagesConsumed += s.MessagesConsumed
		total.MessagesProcessed += s.MessagesProcessed
		total.MessagesFailed += s.MessagesFailed
		total.MessagesRetried += s.MessagesRetried
		total.MessagesDeadLettered += s.MessagesDeadLettered
		total.Lag += s.Lag
	}

	g.consumer.WithLabelValues("consumed").Set(float64(total.MessagesConsumed))
	g.consumer.WithLabelValues("processed").Set(float64(total.MessagesProcessed))
	g.consumer.WithLabelValues("failed").Set(float64(total.MessagesFailed))
	g.consumer.WithLabelValues("retried").Set(float64(total.MessagesRetried))
	g.consumer.WithLabelValues("dead_lettered").Set(float64(total.MessagesDeadLettered))
	g.lag.Set(float64(total.Lag))

	ps := producer.Metrics()
	g.producer.WithLabelValues("sent").Set(float64(ps.MessagesSent))
	g.producer.WithLabelValues("failed").Set(float64(ps.MessagesFailed))
}
