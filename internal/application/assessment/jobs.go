package assessment

import (
	"bytes"
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// Job is the receipt returned to a client that queued an analysis.
type Job struct {
	AssessmentID common.ID                     `json:"assessment_id"`
	GameID       common.ID                     `json:"game_id"`
	Status       repositories.AssessmentStatus `json:"status"`
	EngineDepth  int                           `json:"engine_depth"`
	MultiPV      int                           `json:"multipv"`
	CreatedAt    time.Time                     `json:"created_at"`
}

func (s *Service) requirePersistence() error {
	if s.games == nil || s.assessments == nil {
		return errors.New(errors.ErrCodeNotImplemented, "persistence is not configured")
	}
	return nil
}

func (s *Service) requireAsync() error {
	if err := s.requirePersistence(); err != nil {
		return err
	}
	if s.pool == nil || s.store == nil || s.producer == nil {
		return errors.New(errors.ErrCodeNotImplemented, "asynchronous analysis is not configured")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Submit
// ─────────────────────────────────────────────────────────────────────────────

// SubmitAsync accepts raw PGN, stores it, records the game and a pending
// assessment in one transaction, and queues the analysis job.  The PGN
// object is written first: an orphaned object is harmless, a row pointing at
// a missing object is not.
func (s *Service) SubmitAsync(ctx context.Context, pgn []byte, opts Options) (*Job, error) {
	if err := s.requireAsync(); err != nil {
		return nil, err
	}
	opts = s.opts.merged(opts)

	g, err := s.parser.ParsePGN(bytes.NewReader(pgn))
	if err != nil {
		prometheus.RecordGameIngested(s.metrics, false, 0)
		return nil, err
	}
	prometheus.RecordGameIngested(s.metrics, true, len(pgn))

	info, err := s.store.Put(ctx, g.ID, pgn)
	if err != nil {
		return nil, err
	}

	gameRec := repositories.NewGameRecord(g, info.Key)
	assessRec := &repositories.AssessmentRecord{
		GameID:      g.ID,
		EngineDepth: opts.Depth,
		MultiPV:     opts.MultiPV,
	}
	err = postgres.WithTransaction(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.games.WithTx(tx).Create(ctx, gameRec); err != nil {
			return err
		}
		return s.assessments.WithTx(tx).Create(ctx, assessRec)
	})
	if err != nil {
		return nil, err
	}

	env, err := kafka.NewEnvelope(kafka.EventAnalysisRequested, kafka.AnalysisRequestPayload{
		AssessmentID: assessRec.ID,
		GameID:       g.ID,
		PGNObjectKey: info.Key,
		EngineDepth:  opts.Depth,
		MultiPV:      opts.MultiPV,
		RequestedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	// Keyed by game ID so repeated analyses of one game stay ordered.
	if perr := s.producer.PublishEnvelope(ctx, kafka.TopicAnalysisRequest, []byte(g.ID), env); perr != nil {
		prometheus.RecordMessagePublished(s.metrics, kafka.TopicAnalysisRequest, perr)
		if ferr := s.assessments.MarkFailed(ctx, assessRec.ID, "publishing analysis job: "+perr.Error()); ferr != nil {
			s.logger.Error("marking unpublishable job failed",
				logging.String("assessment_id", string(assessRec.ID)), logging.Err(ferr))
		}
		return nil, errors.Wrap(perr, errors.ErrCodeJobPublishFailed, "publishing analysis job")
	}
	prometheus.RecordMessagePublished(s.metrics, kafka.TopicAnalysisRequest, nil)

	s.logger.Info("analysis job queued",
		logging.String("assessment_id", string(assessRec.ID)),
		logging.String("game_id", string(g.ID)),
		logging.Int("depth", opts.Depth))

	return &Job{
		AssessmentID: assessRec.ID,
		GameID:       g.ID,
		Status:       assessRec.Status,
		EngineDepth:  opts.Depth,
		MultiPV:      opts.MultiPV,
		CreatedAt:    assessRec.CreatedAt,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Worker
// ─────────────────────────────────────────────────────────────────────────────

// jobLockTTL is the initial lease on a job's dedup lock.  The watchdog
// extends it while the analysis runs, so a crashed worker frees the job
// after at most this long.
const jobLockTTL = 2 * time.Minute

// ProcessJob is the consumer handler for the analysis request topic.  A nil
// return acknowledges the message; permanent input failures (missing object,
// unparseable PGN, unknown assessment) are recorded against the assessment
// row and acknowledged, while transient failures return an error so the
// consumer retries and eventually dead-letters.  With a lock factory
// configured, a job redelivered while its first delivery is still running
// becomes a retryable conflict instead of a double run.
func (s *Service) ProcessJob(ctx context.Context, msg *kafka.Message) (err error) {
	start := time.Now()
	defer func() {
		prometheus.RecordMessageConsumed(s.metrics, msg.Topic, time.Since(start), err)
	}()
	if s.metrics != nil {
		s.metrics.AnalysisJobsInFlight.WithLabelValues().Inc()
		defer s.metrics.AnalysisJobsInFlight.WithLabelValues().Dec()
	}

	env, perr := kafka.ParseEnvelope(msg)
	if perr != nil {
		err = errors.Wrap(perr, errors.ErrCodeJobPayloadInvalid, "decoding job envelope")
		return err
	}
	if env.Type != kafka.EventAnalysisRequested {
		s.logger.Warn("ignoring unexpected event type",
			logging.String("event_type", env.Type), logging.String("topic", msg.Topic))
		return nil
	}

	var payload kafka.AnalysisRequestPayload
	if derr := env.DecodePayload(&payload); derr != nil {
		err = errors.Wrap(derr, errors.ErrCodeJobPayloadInvalid, "decoding job payload")
		return err
	}
	if payload.AssessmentID == "" || payload.GameID == "" {
		err = errors.New(errors.ErrCodeJobPayloadInvalid, "job payload is missing assessment or game id")
		return err
	}

	log := s.logger.With(
		logging.String("assessment_id", string(payload.AssessmentID)),
		logging.String("game_id", string(payload.GameID)))
	log.Info("analysis job started")

	if s.locks != nil {
		mu := s.locks.NewMutex("analysis:"+string(payload.AssessmentID),
			redis.WithLockTTL(jobLockTTL), redis.WithWatchdog(true))
		held, lerr := mu.TryLock(ctx)
		switch {
		case lerr != nil:
			// The lock is duplicate suppression only; without redis the job
			// still runs.
			log.Warn("job lock unavailable, running unguarded", logging.Err(lerr))
		case !held:
			err = errors.New(errors.ErrCodeConflict, "analysis is already running on another worker")
			return err
		default:
			defer func() {
				unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if uerr := mu.Unlock(unlockCtx); uerr != nil {
					log.Warn("releasing job lock", logging.Err(uerr))
				}
			}()
		}
	}

	if uerr := s.assessments.UpdateStatus(ctx, payload.AssessmentID, repositories.StatusRunning); uerr != nil {
		if errors.IsCode(uerr, errors.ErrCodeAssessmentNotFound) {
			log.Warn("job references an unknown assessment, dropping")
			return nil
		}
		err = uerr
		return err
	}

	key := payload.PGNObjectKey
	if key == "" {
		key = minio.ObjectKey(payload.GameID)
	}
	pgn, gerr := s.store.Get(ctx, key)
	if gerr != nil {
		if errors.IsCode(gerr, errors.ErrCodeObjectNotFound) {
			s.failJob(ctx, payload, "stored PGN object "+key+" is missing")
			return nil
		}
		err = gerr
		return err
	}

	g, perr2 := s.parser.ParsePGN(bytes.NewReader(pgn))
	if perr2 != nil {
		s.failJob(ctx, payload, "parsing stored PGN: "+perr2.Error())
		return nil
	}
	// Reparsing mints a fresh ID; restore the persisted identity.
	g.ID = payload.GameID

	result, aerr := s.AnalyzeGame(ctx, g, Options{Depth: payload.EngineDepth, MultiPV: payload.MultiPV})
	if aerr != nil {
		if ctx.Err() != nil {
			// Shutdown mid-run: leave the row in running, redelivery
			// restarts the job from scratch.
			err = aerr
			return err
		}
		s.failJob(ctx, payload, aerr.Error())
		err = aerr
		return err
	}

	if cerr := s.assessments.Complete(ctx, payload.AssessmentID, result.Metrics, result.Records); cerr != nil {
		err = cerr
		return err
	}

	s.publishOutcome(ctx, kafka.AnalysisCompletedPayload{
		AssessmentID: payload.AssessmentID,
		GameID:       payload.GameID,
		Status:       string(repositories.StatusCompleted),
		RiskScore:    &result.Metrics.Risk.Score,
		RiskLevel:    string(result.Metrics.Risk.Level),
		CompletedAt:  time.Now().UTC(),
	})

	log.Info("analysis job completed",
		logging.Float64("risk_score", result.Metrics.Risk.Score),
		logging.String("risk_level", string(result.Metrics.Risk.Level)),
		logging.Duration("elapsed", result.Elapsed))
	return nil
}

// failJob records the failure on the assessment row and announces it.  Both
// writes are best effort; the job outcome is already decided.
func (s *Service) failJob(ctx context.Context, p kafka.AnalysisRequestPayload, reason string) {
	if ferr := s.assessments.MarkFailed(ctx, p.AssessmentID, reason); ferr != nil {
		s.logger.Error("marking assessment failed",
			logging.String("assessment_id", string(p.AssessmentID)), logging.Err(ferr))
	}
	s.publishOutcome(ctx, kafka.AnalysisCompletedPayload{
		AssessmentID: p.AssessmentID,
		GameID:       p.GameID,
		Status:       string(repositories.StatusFailed),
		Error:        reason,
		CompletedAt:  time.Now().UTC(),
	})
}

// publishOutcome emits the terminal event for a job.  Failures are logged
// and swallowed: the assessment row is the source of truth and watchers of
// the completed topic must tolerate gaps and duplicates.
func (s *Service) publishOutcome(ctx context.Context, payload kafka.AnalysisCompletedPayload) {
	if s.producer == nil {
		return
	}
	eventType := kafka.EventAnalysisCompleted
	if payload.Status == string(repositories.StatusFailed) {
		eventType = kafka.EventAnalysisFailed
	}
	env, err := kafka.NewEnvelope(eventType, payload)
	if err != nil {
		s.logger.Error("encoding outcome event", logging.Err(err))
		return
	}
	err = s.producer.PublishEnvelope(ctx, kafka.TopicAnalysisCompleted, []byte(payload.GameID), env)
	prometheus.RecordMessagePublished(s.metrics, kafka.TopicAnalysisCompleted, err)
	if err != nil {
		s.logger.Warn("publishing outcome event failed",
			logging.String("assessment_id", string(payload.AssessmentID)), logging.Err(err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// GetAssessment loads one assessment row plus, for completed runs, the
// rebuilt analysis view.  The view is nil while the run is pending, running
// or failed.
func (s *Service) GetAssessment(ctx context.Context, id common.ID) (*repositories.AssessmentRecord, *GameAssessment, error) {
	if err := s.requirePersistence(); err != nil {
		return nil, nil, err
	}
	rec, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rec.Status != repositories.StatusCompleted {
		return rec, nil, nil
	}
	gameRec, err := s.games.GetByID(ctx, rec.GameID)
	if err != nil {
		return nil, nil, err
	}
	return rec, viewFromRecords(gameRec, rec), nil
}

// ListAssessments returns one page of assessment rows.
func (s *Service) ListAssessments(ctx context.Context, f repositories.ListFilter) ([]*repositories.AssessmentRecord, int64, error) {
	if err := s.requirePersistence(); err != nil {
		return nil, 0, err
	}
	return s.assessments.List(ctx, f)
}

// GetGame returns one stored game header.
func (s *Service) GetGame(ctx context.Context, id common.ID) (*repositories.GameRecord, error) {
	if err := s.requirePersistence(); err != nil {
		return nil, err
	}
	return s.games.GetByID(ctx, id)
}

// ListGames returns one page of stored game headers.
func (s *Service) ListGames(ctx context.Context, p common.Pagination) ([]*repositories.GameRecord, int64, error) {
	if err := s.requirePersistence(); err != nil {
		return nil, 0, err
	}
	return s.games.List(ctx, p)
}

// PresignPGN returns a time-limited download URL for a game's stored PGN.
func (s *Service) PresignPGN(ctx context.Context, gameID common.ID, expiry time.Duration) (string, error) {
	if err := s.requirePersistence(); err != nil {
		return "", err
	}
	if s.store == nil {
		return "", errors.New(errors.ErrCodeNotImplemented, "object storage is not configured")
	}
	rec, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return "", err
	}
	if rec.PGNObjectKey == "" {
		return "", errors.New(errors.ErrCodeObjectNotFound, "game has no stored PGN")
	}
	return s.store.PresignGet(ctx, rec.PGNObjectKey, expiry)
}

// viewFromRecords rebuilds the in-memory assessment view from its persisted
// rows.  The game header carries no move list; the per-ply data lives in
// Records.
func viewFromRecords(gameRec *repositories.GameRecord, rec *repositories.AssessmentRecord) *GameAssessment {
	header := &game.Game{
		ID:          gameRec.ID,
		White:       gameRec.White,
		Black:       gameRec.Black,
		Event:       gameRec.Event,
		Site:        gameRec.Site,
		PlayedAt:    gameRec.PlayedAt,
		Result:      gameRec.Result,
		TimeControl: gameRec.TimeControl,
		ECO:         gameRec.ECO,
		Opening:     gameRec.Opening,
	}
	view := &GameAssessment{
		ID:          rec.ID,
		Game:        header,
		EngineDepth: rec.EngineDepth,
		MultiPV:     rec.MultiPV,
		Records:     rec.Records,
		Metrics:     rec.Metrics,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.CompletedAt != nil {
		view.Elapsed = rec.CompletedAt.Sub(rec.CreatedAt)
	}
	return view
}
