//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FairPlay-Intelligence/internal/testutil"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

func TestWorkerPipeline_CompletesJob(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	g, rec, key := e.seedSubmission(t, testutil.SamplePGN)

	require.NoError(t, e.Service.ProcessJob(ctx, jobMessage(t, rec, key)))

	stored, err := e.Assessments.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repositories.StatusCompleted, stored.Status)
	require.NotNil(t, stored.RiskScore)
	assert.GreaterOrEqual(t, *stored.RiskScore, 0.0)
	assert.LessOrEqual(t, *stored.RiskScore, 1.0)
	require.NotNil(t, stored.RiskLevel)
	require.NotNil(t, stored.CompletedAt)

	require.NotNil(t, stored.Metrics)
	assert.Equal(t, len(g.Moves), stored.Metrics.TotalMoves)
	assert.Len(t, stored.Records, len(g.Moves))

	// Every ply went through the engine once.
	assert.Equal(t, len(g.Moves), e.Engine.Evaluations())

	// The completed run rebuilds into a full analysis view.
	viewRec, view, err := e.Service.GetAssessment(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, viewRec.ID)
	require.NotNil(t, view)
	assert.Equal(t, *stored.RiskScore, view.Metrics.Risk.Score)
	assert.Equal(t, g.ID, view.Game.ID)
}

func TestWorkerPipeline_MissingObjectFailsJobPermanently(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, rec, key := e.seedSubmission(t, testutil.SamplePGN)
	require.NoError(t, e.Store.Delete(ctx, key))

	// A permanently broken job is acknowledged, not retried.
	require.NoError(t, e.Service.ProcessJob(ctx, jobMessage(t, rec, key)))

	stored, err := e.Assessments.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repositories.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "missing")
	assert.Zero(t, e.Engine.Evaluations())
}

func TestWorkerPipeline_EngineFailureReturnsError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, rec, key := e.seedSubmission(t, testutil.SamplePGN)
	e.Engine.SetFailAll(true)

	// The consumer must see the error so the job retries and eventually
	// dead-letters; the row still records the failure.
	require.Error(t, e.Service.ProcessJob(ctx, jobMessage(t, rec, key)))

	stored, err := e.Assessments.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repositories.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)

	_, view, err := e.Service.GetAssessment(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestWorkerPipeline_UnknownAssessmentIsDropped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ghost := &repositories.AssessmentRecord{
		ID:          common.ID(uuid.NewString()),
		GameID:      common.ID(uuid.NewString()),
		EngineDepth: 12,
		MultiPV:     3,
	}

	require.NoError(t, e.Service.ProcessJob(ctx, jobMessage(t, ghost, "games/ghost.pgn")))

	_, total, err := e.Service.ListAssessments(ctx, repositories.ListFilter{
		Page: common.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestWorkerPipeline_MalformedMessages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	garbage := &kafka.Message{
		Topic:     kafka.TopicAnalysisRequest,
		Value:     []byte("not an envelope"),
		Timestamp: time.Now(),
	}
	err := e.Service.ProcessJob(ctx, garbage)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeJobPayloadInvalid))

	// A well-formed envelope of the wrong type is ignored, not retried.
	env, err := kafka.NewEnvelope(kafka.EventAnalysisCompleted, kafka.AnalysisCompletedPayload{
		AssessmentID: common.ID(uuid.NewString()),
		GameID:       common.ID(uuid.NewString()),
		Status:       string(repositories.StatusCompleted),
		CompletedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	pm, err := env.ToMessage(kafka.TopicAnalysisRequest, nil)
	require.NoError(t, err)
	require.NoError(t, e.Service.ProcessJob(ctx, &kafka.Message{Topic: pm.Topic, Value: pm.Value}))
}
