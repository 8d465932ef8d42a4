package main

import (
	"context"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/storage/minio"
	grpcserver "github.com/turtacn/FairPlay-Intelligence/internal/interfaces/grpc"
	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http/handlers"
)

const probeTimeout = 3 * time.Second

// buildCheckers wires the infrastructure probes consumed by both the HTTP
// readiness endpoint and the gRPC health mirror.
func buildCheckers(conn *postgres.Connection, redisClient *redis.Client, store *minio.Client) []handlers.HealthChecker {
	return []handlers.HealthChecker{
		handlers.CheckerFunc{ComponentName: "postgres", Probe: conn.HealthCheck},
		handlers.CheckerFunc{ComponentName: "redis", Probe: redisClient.Ping},
		handlers.CheckerFunc{ComponentName: "minio", Probe: store.HealthCheck},
	}
}

// mirrorHealth republishes checker results to the gRPC health service so
// grpc-aware load balancers see the same view as the HTTP readiness probe.
func mirrorHealth(ctx context.Context, srv *grpcserver.Server, checkers []handlers.HealthChecker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	probe := func() {
		for _, c := range checkers {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			err := c.Check(probeCtx)
			cancel()
			srv.SetComponentStatus(c.Name(), err == nil)
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
