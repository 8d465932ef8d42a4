//go:build e2e

// End-to-end tests of the asynchronous pipeline over real PostgreSQL,
// MinIO and Kafka containers: submit, queue, consume, complete, outcome
// event. Only the chess engine is scripted. These are the slowest tests in
// the repo; everything below the broker has faster coverage in
// test/integration.
package e2e

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/FairPlay-Intelligence/internal/testutil"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

const (
	startupTimeout = 60 * time.Second

	// Kafka in KRaft mode formats its log dir on first boot.
	kafkaStartupTimeout = 120 * time.Second

	// jobTimeout bounds one submit-to-completed round trip.
	jobTimeout = 90 * time.Second
)

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

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432")
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

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return minio.Config{
		Endpoint:  host + ":" + port.Port(),
		AccessKey: "fairplay",
		SecretKey: "fairplay-secret",
		Bucket:    "fairplay-pgn",
	}
}

// freePort reserves a host port and releases it for the container to bind.
func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
}

// startKafka runs a single-node KRaft broker and returns its address.
//
// The broker hands clients its advertised listener during the metadata
// exchange, and that address is fixed in the container environment before
// start. A randomly mapped port would be unknown at that point, so the host
// port is reserved up front and bound explicitly.
func startKafka(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()
	hostPort := freePort(t)

	req := testcontainers.ContainerRequest{
		Image:        "bitnami/kafka:3.6",
		ExposedPorts: []string{"9092/tcp"},
		Env: map[string]string{
			"KAFKA_CFG_NODE_ID":                        "0",
			"KAFKA_CFG_PROCESS_ROLES":                  "controller,broker",
			"KAFKA_CFG_CONTROLLER_QUORUM_VOTERS":       "0@127.0.0.1:9093",
			"KAFKA_CFG_LISTENERS":                      "PLAINTEXT://:9092,CONTROLLER://:9093",
			"KAFKA_CFG_ADVERTISED_LISTENERS":           "PLAINTEXT://127.0.0.1:" + hostPort,
			"KAFKA_CFG_LISTENER_SECURITY_PROTOCOL_MAP": "CONTROLLER:PLAINTEXT,PLAINTEXT:PLAINTEXT",
			"KAFKA_CFG_CONTROLLER_LISTENER_NAMES":      "CONTROLLER",
			"ALLOW_PLAINTEXT_LISTENER":                 "yes",
		},
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.PortBindings = nat.PortMap{
				"9092/tcp": []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}},
			}
		},
		WaitingFor: wait.ForLog("Kafka Server started").WithStartupTimeout(kafkaStartupTimeout),
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	return []string{"127.0.0.1:" + hostPort}
}

// ─────────────────────────────────────────────────────────────────────────────
// Environment
// ─────────────────────────────────────────────────────────────────────────────

type env struct {
	Brokers     []string
	Conn        *postgres.Connection
	Games       *repositories.GameRepository
	Assessments *repositories.AssessmentRepository
	Store       minio.PGNStore
	Engine      *testutil.FakeEngine
	Service     *assessment.Service
	Producer    *kafka.Producer
	Log         logging.Logger
}

// newEnv starts all three containers and wires a service with the full
// async dependency set. Consumers are started per test so each can pick its
// own retry policy.
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

	brokers := startKafka(t)

	// Create the topics up front; first-use auto-creation would race the
	// watcher consumers.
	topics, err := kafka.NewTopicManager(brokers, log)
	require.NoError(t, err)
	require.NoError(t, topics.EnsureDefaultTopics(ctx))
	require.NoError(t, topics.Close())

	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: brokers}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = producer.Close() })

	e := &env{
		Brokers:     brokers,
		Conn:        conn,
		Games:       repositories.NewGameRepository(conn.Pool(), log),
		Assessments: repositories.NewAssessmentRepository(conn.Pool(), log),
		Store:       minio.NewPGNStore(storeClient, log),
		Engine:      &testutil.FakeEngine{Fallback: testutil.RankedResult("a3a4", 35, 12), MoveEval: 10},
		Producer:    producer,
		Log:         log,
	}

	e.Service, err = assessment.NewService(assessment.Deps{
		Engine:      e.Engine,
		Pool:        conn.Pool(),
		Games:       e.Games,
		Assessments: e.Assessments,
		Store:       e.Store,
		Producer:    producer,
		Logger:      log,
	}, assessment.Options{Depth: 12, MultiPV: 3, SkipOpening: true})
	require.NoError(t, err)

	return e
}

// startWorker runs one consumer in the worker group with the given retry
// policy, handling jobs exactly as the worker binary does.
func (e *env) startWorker(t *testing.T, retry kafka.RetryConfig) *kafka.Consumer {
	t.Helper()

	c, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         e.Brokers,
		GroupID:         "fairplay-e2e-workers",
		Topics:          []string{kafka.TopicAnalysisRequest},
		AutoOffsetReset: "earliest",
		Retry:           retry,
	}, e.Log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Subscribe(kafka.TopicAnalysisRequest, e.Service.ProcessJob))
	require.NoError(t, c.Start(context.Background()))
	return c
}

// watchTopic drains one topic into a channel through a dedicated consumer
// group, so watching never steals records from the worker group.
func (e *env) watchTopic(t *testing.T, topic, group string) <-chan *kafka.Message {
	t.Helper()
	ch := make(chan *kafka.Message, 16)

	c, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         e.Brokers,
		GroupID:         group,
		Topics:          []string{topic},
		AutoOffsetReset: "earliest",
	}, e.Log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Subscribe(topic, func(ctx context.Context, msg *kafka.Message) error {
		select {
		case ch <- msg:
		default:
		}
		return nil
	}))
	require.NoError(t, c.Start(context.Background()))
	return ch
}

// waitForStatus polls the assessment row until it reaches want. A row that
// fails while the test expects another status aborts immediately with the
// recorded error.
func (e *env) waitForStatus(t *testing.T, id common.ID, want repositories.AssessmentStatus, timeout time.Duration) *repositories.AssessmentRecord {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(timeout)

	for {
		rec, err := e.Assessments.GetByID(ctx, id)
		require.NoError(t, err)
		if rec.Status == want {
			return rec
		}
		if rec.Status == repositories.StatusFailed && want != repositories.StatusFailed {
			t.Fatalf("assessment %s failed: %s", id, rec.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("assessment %s stuck in %s, want %s", id, rec.Status, want)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func awaitMessage(t *testing.T, ch <-chan *kafka.Message, timeout time.Duration) *kafka.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatal("no message arrived in time")
		return nil
	}
}
