//go:build integration

// Cross-layer tests of the analysis pipeline against real PostgreSQL and
// MinIO containers. The engine is scripted: the containers exist to prove
// the persistence semantics, and engine behavior has its own suite. The
// broker is deliberately absent, so jobs are fed to the worker handler as
// hand-built messages; the full wire round trip lives in test/e2e.
package integration

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/chess"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/FairPlay-Intelligence/internal/testutil"
)

const startupTimeout = 60 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Containers
// ─────────────────────────────────────────────────────────────────────────────

func startPostgres(t *testing.T) postgres.Config {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "fairplay_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(startupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return postgres.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		DBName:   "fairplay_test",
		SSLMode:  "disable",
	}
}

func startMinIO(t *testing.T) minio.Config {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:RELEASE.2024-01-16T16-07-38Z",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "fairplay",
			"MINIO_ROOT_PASSWORD": "fairplay-secret",
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(startupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return minio.Config{
		Endpoint:  host + ":" + port.Port(),
		AccessKey: "fairplay",
		SecretKey: "fairplay-secret",
		Bucket:    "fairplay-pgn",
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Environment
// ─────────────────────────────────────────────────────────────────────────────

type env struct {
	Conn        *postgres.Connection
	Games       *repositories.GameRepository
	Assessments *repositories.AssessmentRepository
	Store       minio.PGNStore
	Engine      *testutil.FakeEngine
	Service     *assessment.Service
	Parser      *chess.Parser
}

// newEnv starts both containers and wires a service with persistence but no
// broker.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	log := logging.NewNopLogger()

	conn, err := postgres.NewConnection(ctx, startPostgres(t), log)
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	require.NoError(t, conn.Migrate())

	storeClient, err := minio.NewClient(startMinIO(t), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storeClient.Close() })

	e := &env{
		Conn:        conn,
		Games:       repositories.NewGameRepository(conn.Pool(), log),
		Assessments: repositories.NewAssessmentRepository(conn.Pool(), log),
		Store:       minio.NewPGNStore(storeClient, log),
		Engine:      &testutil.FakeEngine{Fallback: testutil.RankedResult("a3a4", 35, 12), MoveEval: 10},
		Parser:      chess.NewParser(log),
	}

	// Job locks run against an in-process redis; a real server adds nothing
	// to what these tests prove.
	mr := miniredis.RunT(t)
	redisClient, err := redis.NewClient(&redis.Config{Addr: mr.Addr()}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	e.Service, err = assessment.NewService(assessment.Deps{
		Engine:      e.Engine,
		Pool:        conn.Pool(),
		Games:       e.Games,
		Assessments: e.Assessments,
		Store:       e.Store,
		Locks:       redis.NewLockFactory(redisClient, log),
		Logger:      log,
	}, assessment.Options{Depth: 12, MultiPV: 3, SkipOpening: true})
	require.NoError(t, err)

	return e
}

// seedSubmission performs the writes SubmitAsync would do before the
// publish: PGN object, game row and pending assessment row. Returns the
// parsed game, the pending row and the stored object key.
func (e *env) seedSubmission(t *testing.T, pgn string) (*game.Game, *repositories.AssessmentRecord, string) {
	t.Helper()
	ctx := context.Background()

	g, err := e.Parser.ParsePGN(bytes.NewReader([]byte(pgn)))
	require.NoError(t, err)

	info, err := e.Store.Put(ctx, g.ID, []byte(pgn))
	require.NoError(t, err)

	gameRec := repositories.NewGameRecord(g, info.Key)
	require.NoError(t, e.Games.Create(ctx, gameRec))

	rec := &repositories.AssessmentRecord{GameID: g.ID, EngineDepth: 12, MultiPV: 3}
	require.NoError(t, e.Assessments.Create(ctx, rec))

	return g, rec, info.Key
}

// jobMessage builds the consumer message a queued submission would produce.
func jobMessage(t *testing.T, rec *repositories.AssessmentRecord, objectKey string) *kafka.Message {
	t.Helper()

	env, err := kafka.NewEnvelope(kafka.EventAnalysisRequested, kafka.AnalysisRequestPayload{
		AssessmentID: rec.ID,
		GameID:       rec.GameID,
		PGNObjectKey: objectKey,
		EngineDepth:  rec.EngineDepth,
		MultiPV:      rec.MultiPV,
		RequestedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	msg, err := env.ToMessage(kafka.TopicAnalysisRequest, []byte(rec.GameID))
	require.NoError(t, err)

	return &kafka.Message{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: time.Now(),
	}
}
