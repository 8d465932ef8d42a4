//go:build integration

// Integration tests for the game and assessment repositories.  They require
// Docker and are gated behind the "integration" build tag.
package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/analysis"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/metrics"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/risk"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

// startPostgres launches a PostgreSQL 16 container, applies the embedded
// migrations and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
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
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
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

	cfg := postgres.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		DBName:   "fairplay_test",
		SSLMode:  "disable",
	}
	require.NoError(t, postgres.RunMigrations(postgres.MigrateDSN(cfg)))

	pool, err := pgxpool.New(ctx, postgres.BuildDSN(cfg))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func sampleGame(white, black string) *game.Game {
	return &game.Game{
		ID:          common.NewID(),
		White:       game.Player{Name: white, Elo: 2650},
		Black:       game.Player{Name: black, Elo: 2480},
		Event:       "Titled Tuesday",
		Site:        "chess.com",
		PlayedAt:    time.Date(2024, 3, 12, 18, 0, 0, 0, time.UTC),
		Result:      "1-0",
		TimeControl: "180+1",
		ECO:         "B90",
		Opening:     "Sicilian Defense: Najdorf Variation",
	}
}

func sampleMetrics() *metrics.GameMetrics {
	m := &metrics.GameMetrics{
		TotalMoves: 42,
		ValidMoves: 40,
	}
	m.Accuracy.MeanCentipawnLoss = 18.5
	m.Accuracy.Score = 98.15
	m.Matching.PV1Percentage = 85
	m.Temporal.Overall.CV = 0.21
	m.Risk = &risk.Assessment{
		Score: 0.85,
		Level: risk.LevelVeryHigh,
		Factors: []risk.Factor{
			{Name: "very_high_pv1", Weight: 0.9},
			{Name: "very_consistent_timing", Weight: 0.8},
		},
		Summary: "Risk Level: VERY_HIGH (Score: 0.85)",
	}
	return m
}

func sampleRecords() []analysis.MoveRecord {
	sec := 4.2
	return []analysis.MoveRecord{
		{
			Ply: 1, MoveNumber: 1, Player: game.ColorWhite,
			Move: "e2e4", SAN: "e4", MoveTime: &sec, LegalMoveCount: 20,
			Engine:  analysis.EngineAnalysis{Evaluation: 30, MoveRank: 1, Depth: 12, Valid: true},
			Opening: analysis.OpeningStatus{InTheory: true, Popularity: 500000},
		},
		{
			Ply: 2, MoveNumber: 1, Player: game.ColorBlack,
			Move: "c7c5", SAN: "c5", LegalMoveCount: 20,
			Engine:  analysis.EngineAnalysis{Evaluation: -25, MoveRank: 2, CentipawnLoss: 12, Depth: 12, Valid: true},
			Opening: analysis.OpeningStatus{InTheory: true, Popularity: 310000},
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GameRepository
// ─────────────────────────────────────────────────────────────────────────────

func TestGameRepositoryLifecycle(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewGameRepository(pool, nil)
	ctx := context.Background()

	rec := repositories.NewGameRecord(sampleGame("Caruana, F.", "So, W."), "")
	rec.PGNObjectKey = "games/" + string(rec.ID) + ".pgn"
	require.NoError(t, repo.Create(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero(), "Create must fill CreatedAt")

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.White, got.White)
	assert.Equal(t, rec.Black, got.Black)
	assert.Equal(t, "1-0", got.Result)
	assert.Equal(t, "B90", got.ECO)
	assert.Equal(t, rec.PGNObjectKey, got.PGNObjectKey)
	assert.True(t, rec.PlayedAt.Equal(got.PlayedAt))

	// Re-inserting the same ID is a conflict, not a generic failure.
	err = repo.Create(ctx, &repositories.GameRecord{ID: rec.ID, Result: "*"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRepositoryConflict))
}

func TestGameRepositoryGetByIDNotFound(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewGameRepository(pool, nil)

	_, err := repo.GetByID(context.Background(), common.NewID())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeGameNotFound))
}

func TestGameRepositoryListPaginates(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewGameRepository(pool, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := repositories.NewGameRecord(sampleGame("White", "Black"), "")
		// Spread creation times so the newest-first order is deterministic.
		rec.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, rec))
	}

	page1, total, err := repo.List(ctx, common.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page1, 2)
	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt))

	page2, _, err := repo.List(ctx, common.Pagination{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 1)
}

// ─────────────────────────────────────────────────────────────────────────────
// AssessmentRepository
// ─────────────────────────────────────────────────────────────────────────────

func createGame(t *testing.T, pool *pgxpool.Pool) common.ID {
	t.Helper()

	repo := repositories.NewGameRepository(pool, nil)
	rec := repositories.NewGameRecord(sampleGame("Nakamura, H.", "Firouzja, A."), "")
	require.NoError(t, repo.Create(context.Background(), rec))
	return rec.ID
}

func TestAssessmentRepositoryLifecycle(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewAssessmentRepository(pool, nil)
	ctx := context.Background()
	gameID := createGame(t, pool)

	rec := &repositories.AssessmentRecord{GameID: gameID, EngineDepth: 12, MultiPV: 3}
	require.NoError(t, repo.Create(ctx, rec))
	assert.Equal(t, repositories.StatusPending, rec.Status, "Create must default status")

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repositories.StatusPending, got.Status)
	assert.Nil(t, got.RiskScore)
	assert.Nil(t, got.Metrics)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, rec.ID, repositories.StatusRunning))

	require.NoError(t, repo.Complete(ctx, rec.ID, sampleMetrics(), sampleRecords()))

	got, err = repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repositories.StatusCompleted, got.Status)
	require.NotNil(t, got.RiskScore)
	assert.InDelta(t, 0.85, *got.RiskScore, 1e-9)
	require.NotNil(t, got.RiskLevel)
	assert.Equal(t, string(risk.LevelVeryHigh), *got.RiskLevel)
	require.NotNil(t, got.CompletedAt)

	// The jsonb payloads survive the round trip intact.
	require.NotNil(t, got.Metrics)
	assert.Equal(t, 42, got.Metrics.TotalMoves)
	assert.InDelta(t, 85.0, got.Metrics.Matching.PV1Percentage, 1e-9)
	require.NotNil(t, got.Metrics.Risk)
	assert.Len(t, got.Metrics.Risk.Factors, 2)
	require.Len(t, got.Records, 2)
	assert.Equal(t, "e2e4", got.Records[0].Move)
	require.NotNil(t, got.Records[0].MoveTime)
	assert.InDelta(t, 4.2, *got.Records[0].MoveTime, 1e-9)
	assert.True(t, got.Records[1].Opening.InTheory)
}

func TestAssessmentRepositoryMarkFailed(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewAssessmentRepository(pool, nil)
	ctx := context.Background()
	gameID := createGame(t, pool)

	rec := &repositories.AssessmentRecord{GameID: gameID}
	require.NoError(t, repo.Create(ctx, rec))

	require.NoError(t, repo.MarkFailed(ctx, rec.ID, "engine unavailable"))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repositories.StatusFailed, got.Status)
	assert.Equal(t, "engine unavailable", got.Error)
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.RiskScore)
}

func TestAssessmentRepositoryNotFound(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewAssessmentRepository(pool, nil)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, common.NewID())
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentNotFound))

	err = repo.UpdateStatus(ctx, common.NewID(), repositories.StatusRunning)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentNotFound))

	err = repo.Complete(ctx, common.NewID(), sampleMetrics(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentNotFound))

	err = repo.MarkFailed(ctx, common.NewID(), "boom")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentNotFound))
}

func TestAssessmentRepositoryListFiltersByRiskLevel(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewAssessmentRepository(pool, nil)
	ctx := context.Background()
	gameID := createGame(t, pool)

	high := &repositories.AssessmentRecord{GameID: gameID}
	require.NoError(t, repo.Create(ctx, high))
	require.NoError(t, repo.Complete(ctx, high.ID, sampleMetrics(), nil))

	pending := &repositories.AssessmentRecord{GameID: gameID}
	require.NoError(t, repo.Create(ctx, pending))

	recs, total, err := repo.List(ctx, repositories.ListFilter{
		RiskLevel: string(risk.LevelVeryHigh),
		Page:      common.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, recs, 1)
	assert.Equal(t, high.ID, recs[0].ID)

	recs, total, err = repo.List(ctx, repositories.ListFilter{
		Status: repositories.StatusPending,
		Page:   common.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, recs, 1)
	assert.Equal(t, pending.ID, recs[0].ID)
}

func TestAssessmentRepositoryListByGame(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewAssessmentRepository(pool, nil)
	ctx := context.Background()

	gameA := createGame(t, pool)
	gameB := createGame(t, pool)

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Create(ctx, &repositories.AssessmentRecord{GameID: gameA}))
	}
	require.NoError(t, repo.Create(ctx, &repositories.AssessmentRecord{GameID: gameB}))

	recs, err := repo.ListByGame(ctx, gameA)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = repo.ListByGame(ctx, gameB)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRepositoriesShareTransaction(t *testing.T) {
	pool := startPostgres(t)
	games := repositories.NewGameRepository(pool, nil)
	assessments := repositories.NewAssessmentRepository(pool, nil)
	ctx := context.Background()

	// A failing transaction leaves neither row behind.
	gameRec := repositories.NewGameRecord(sampleGame("A", "B"), "")
	err := postgres.WithTransaction(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := games.WithTx(tx).Create(ctx, gameRec); err != nil {
			return err
		}
		if err := assessments.WithTx(tx).Create(ctx, &repositories.AssessmentRecord{GameID: gameRec.ID}); err != nil {
			return err
		}
		return context.Canceled
	})
	require.Error(t, err)

	_, err = games.GetByID(ctx, gameRec.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeGameNotFound))

	// The committed path persists both rows.
	gameRec = repositories.NewGameRecord(sampleGame("A", "B"), "")
	assessRec := &repositories.AssessmentRecord{GameID: gameRec.ID}
	err = postgres.WithTransaction(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := games.WithTx(tx).Create(ctx, gameRec); err != nil {
			return err
		}
		return assessments.WithTx(tx).Create(ctx, assessRec)
	})
	require.NoError(t, err)

	_, err = games.GetByID(ctx, gameRec.ID)
	require.NoError(t, err)
	_, err = assessments.GetByID(ctx, assessRec.ID)
	require.NoError(t, err)
}
