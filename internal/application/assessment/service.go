// Package assessment orchestrates the full game-analysis pipeline: parse,
// opening-deviation scan, per-ply engine analysis, metric aggregation and
// risk fusion.  It is the only layer that sees both the domain packages and
// the infrastructure adapters; handlers and workers talk to the Service,
// never to the pipeline stages directly.
//
// The Service runs in two configurations.  The CLI builds it with just an
// engine and (optionally) a theory oracle and calls AnalyzePGN inline.  The
// API server and worker add persistence, object storage and the message
// producer, enabling SubmitAsync and ProcessJob.
package assessment

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/analysis"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/evaluation"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/metrics"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/risk"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/chess"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// abortAfterFailures is the number of consecutive engine failures from ply 1
// that aborts the run.  A single bad position is absorbed as an invalid
// record; every early ply failing means the engine itself is unusable.
const abortAfterFailures = 5

// progressInterval is how many plies pass between progress log lines.
const progressInterval = 10

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// Options tunes one analysis run.  Zero values fall back to the Service
// defaults, which in turn fall back to the domain defaults.
type Options struct {
	// Depth is the engine search depth per position.
	Depth int
	// MultiPV is how many candidate lines the engine reports per position.
	MultiPV int
	// MaxOpeningMoves caps the opening-deviation scan.
	MaxOpeningMoves int
	// GameThreshold is the minimum recorded-game count for theory membership.
	GameThreshold int
	// RateLimitDelay is the pause between theory oracle queries.
	RateLimitDelay time.Duration
	// SkipOpening disables the deviation scan entirely.
	SkipOpening bool
}

// merged overlays the non-zero fields of override onto o.  SkipOpening can
// only be switched on by an override, never off.
func (o Options) merged(override Options) Options {
	out := o
	if override.Depth > 0 {
		out.Depth = override.Depth
	}
	if override.MultiPV > 0 {
		out.MultiPV = override.MultiPV
	}
	if override.MaxOpeningMoves > 0 {
		out.MaxOpeningMoves = override.MaxOpeningMoves
	}
	if override.GameThreshold > 0 {
		out.GameThreshold = override.GameThreshold
	}
	if override.RateLimitDelay > 0 {
		out.RateLimitDelay = override.RateLimitDelay
	}
	if override.SkipOpening {
		out.SkipOpening = true
	}
	return out
}

func (o Options) withDefaults() Options {
	if o.Depth <= 0 {
		o.Depth = analysis.DefaultDepth
	}
	if o.MultiPV <= 0 {
		o.MultiPV = analysis.DefaultTopK
	}
	if o.MaxOpeningMoves <= 0 {
		o.MaxOpeningMoves = opening.DefaultMaxOpeningMoves
	}
	if o.GameThreshold <= 0 {
		o.GameThreshold = opening.DefaultGameThreshold
	}
	if o.RateLimitDelay <= 0 {
		o.RateLimitDelay = opening.DefaultRateLimitDelay
	}
	return o
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// Deps are the collaborators the Service is built from.  Engine is the only
// hard requirement; Oracle enables the opening scan, and the persistence
// trio (Pool+Games+Assessments), Store and Producer enable the async
// pipeline.  Locks, when set, suppresses concurrent duplicate runs of a
// redelivered job.
type Deps struct {
	Engine      evaluation.Engine
	Oracle      opening.TheoryOracle
	Parser      *chess.Parser
	Pool        *pgxpool.Pool
	Games       *repositories.GameRepository
	Assessments *repositories.AssessmentRepository
	Store       minio.PGNStore
	Producer    *kafka.Producer
	Locks       redis.LockFactory
	Logger      logging.Logger
	Metrics     *prometheus.AppMetrics
}

// Service runs game assessments.
type Service struct {
	engine      evaluation.Engine
	oracle      opening.TheoryOracle
	parser      *chess.Parser
	pool        *pgxpool.Pool
	games       *repositories.GameRepository
	assessments *repositories.AssessmentRepository
	store       minio.PGNStore
	producer    *kafka.Producer
	locks       redis.LockFactory
	opts        Options
	logger      logging.Logger
	metrics     *prometheus.AppMetrics
}

// NewService wires a Service.  Returns ErrCodeBadRequest when no engine is
// supplied.
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Engine == nil {
		return nil, errors.New(errors.ErrCodeBadRequest, "assessment service requires an engine")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Parser == nil {
		deps.Parser = chess.NewParser(deps.Logger)
	}

	engine := deps.Engine
	oracle := deps.Oracle
	if deps.Metrics != nil {
		engine = &meteredEngine{inner: engine, metrics: deps.Metrics}
		if oracle != nil {
			oracle = &meteredOracle{inner: oracle, metrics: deps.Metrics}
		}
	}

	return &Service{
		engine:      engine,
		oracle:      oracle,
		parser:      deps.Parser,
		pool:        deps.Pool,
		games:       deps.Games,
		assessments: deps.Assessments,
		store:       deps.Store,
		producer:    deps.Producer,
		locks:       deps.Locks,
		opts:        opts.withDefaults(),
		logger:      deps.Logger.Named("assessment"),
		metrics:     deps.Metrics,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Result type
// ─────────────────────────────────────────────────────────────────────────────

// GameAssessment is the complete outcome of one analysis run.  Game carries
// the parsed header for in-process consumers; views rebuilt from storage
// hold a header-only Game with an empty move list, since the per-ply data
// lives in Records.
type GameAssessment struct {
	ID          common.ID             `json:"id"`
	Game        *game.Game            `json:"game"`
	EngineDepth int                   `json:"engine_depth"`
	MultiPV     int                   `json:"multipv"`
	Records     []analysis.MoveRecord `json:"records"`
	Metrics     *metrics.GameMetrics  `json:"metrics"`
	CreatedAt   time.Time             `json:"created_at"`
	Elapsed     time.Duration         `json:"elapsed"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Synchronous pipeline
// ─────────────────────────────────────────────────────────────────────────────

// AnalyzePGN parses raw PGN and runs the full pipeline on it.
func (s *Service) AnalyzePGN(ctx context.Context, pgn []byte, opts Options) (*GameAssessment, error) {
	g, err := s.parser.ParsePGN(bytes.NewReader(pgn))
	if err != nil {
		prometheus.RecordGameIngested(s.metrics, false, 0)
		return nil, err
	}
	prometheus.RecordGameIngested(s.metrics, true, len(pgn))
	return s.AnalyzeGame(ctx, g, opts)
}

// AnalyzeGame runs the pipeline over an already parsed game: one deviation
// scan, one engine analysis per ply, aggregation, risk fusion.  Individual
// engine failures become invalid records and the run continues; the first
// min(abortAfterFailures, plies) plies all failing aborts the run, because
// an engine that cannot evaluate a single opening position is down, not
// struggling.
func (s *Service) AnalyzeGame(ctx context.Context, g *game.Game, opts Options) (*GameAssessment, error) {
	if g == nil || g.MoveCount() == 0 {
		return nil, errors.New(errors.ErrCodePGNEmpty, "game has no moves to analyze")
	}
	opts = s.opts.merged(opts)
	start := time.Now()

	s.logger.Info("analysis started",
		logging.String("game_id", string(g.ID)),
		logging.Int("moves", g.MoveCount()),
		logging.Int("depth", opts.Depth),
		logging.Int("multipv", opts.MultiPV))

	dev := s.scanOpening(ctx, g, opts)

	asm := analysis.NewAssembler(s.engine, analysis.Options{
		Depth:  opts.Depth,
		TopK:   opts.MultiPV,
		Logger: s.logger,
	})

	abortAt := abortAfterFailures
	if n := g.MoveCount(); n < abortAt {
		abortAt = n
	}

	records := make([]analysis.MoveRecord, 0, g.MoveCount())
	leadingFailures := 0
	for i, mv := range g.Moves {
		if err := ctx.Err(); err != nil {
			prometheus.RecordAssessment(s.metrics, "failed", time.Since(start), len(records), 0, "")
			return nil, errors.Wrap(err, errors.ErrCodeAnalysisAborted,
				fmt.Sprintf("analysis aborted at ply %d", mv.Ply))
		}

		features, err := chess.ExtractFeatures(mv.FENBefore)
		if err != nil {
			// Parsed games carry engine-generated FENs, so this indicates a
			// parser bug rather than bad input.  Score the ply without
			// features instead of dropping it.
			s.logger.Warn("feature extraction failed",
				logging.Int("ply", mv.Ply), logging.Err(err))
		}

		rec := asm.Assemble(ctx, analysis.Input{
			FEN:      mv.FENBefore,
			Move:     mv,
			Features: features,
			Opening:  openingStatusFor(dev, mv.Ply),
		})
		records = append(records, rec)

		if !rec.Engine.Valid && leadingFailures == i {
			leadingFailures++
			if leadingFailures == abortAt {
				prometheus.RecordAssessment(s.metrics, "failed", time.Since(start), 0, 0, "")
				return nil, errors.New(errors.ErrCodeAnalysisFailed,
					fmt.Sprintf("engine failed on the first %d plies, aborting analysis", leadingFailures))
			}
		}

		if (i+1)%progressInterval == 0 {
			s.logger.Debug("analysis progress",
				logging.String("game_id", string(g.ID)),
				logging.Int("analyzed", i+1),
				logging.Int("total", g.MoveCount()))
		}
	}

	m := metrics.Aggregate(records, dev)
	verdict := risk.Assess(m.RiskSignals())
	m.Risk = &verdict

	elapsed := time.Since(start)
	prometheus.RecordAssessment(s.metrics, "completed", elapsed, len(records), verdict.Score, string(verdict.Level))
	s.logger.Info("analysis completed",
		logging.String("game_id", string(g.ID)),
		logging.Float64("risk_score", verdict.Score),
		logging.String("risk_level", string(verdict.Level)),
		logging.Duration("elapsed", elapsed))

	return &GameAssessment{
		ID:          common.NewID(),
		Game:        g,
		EngineDepth: opts.Depth,
		MultiPV:     opts.MultiPV,
		Records:     records,
		Metrics:     &m,
		CreatedAt:   start.UTC(),
		Elapsed:     elapsed,
	}, nil
}

// scanOpening runs the deviation scan once per game.  A nil oracle or the
// SkipOpening option yields the zero Deviation, which marks every ply as out
// of theory downstream.
func (s *Service) scanOpening(ctx context.Context, g *game.Game, opts Options) opening.Deviation {
	if opts.SkipOpening || s.oracle == nil {
		return opening.Deviation{}
	}
	analyzer := opening.NewAnalyzer(s.oracle, opening.Options{
		MaxOpeningMoves: opts.MaxOpeningMoves,
		GameThreshold:   opts.GameThreshold,
		RateLimitDelay:  opts.RateLimitDelay,
		Logger:          s.logger,
	})
	dev := analyzer.AnalyzeDeviation(ctx, g.UCIMoves())
	s.logger.Info("opening scan finished",
		logging.String("game_id", string(g.ID)),
		logging.Int("opening_moves", dev.OpeningMoveCount),
		logging.Int("deviation_move", dev.DeviationMove))
	return dev
}

// openingStatusFor derives the per-ply theory status from the scan result:
// plies up to the deviation point are in theory and carry the probe's
// recorded-game count; everything after is out of theory.
func openingStatusFor(dev opening.Deviation, ply int) analysis.OpeningStatus {
	if ply <= 0 || ply > dev.OpeningMoveCount {
		return analysis.OpeningStatus{}
	}
	st := analysis.OpeningStatus{InTheory: true}
	if ply-1 < len(dev.Probes) {
		st.Popularity = dev.Probes[ply-1].TotalGames
	}
	return st
}

// ─────────────────────────────────────────────────────────────────────────────
// Metric decorators
// ─────────────────────────────────────────────────────────────────────────────

type meteredEngine struct {
	inner   evaluation.Engine
	metrics *prometheus.AppMetrics
}

func (e *meteredEngine) Evaluate(ctx context.Context, fen string, depth, topK int) (*evaluation.Result, error) {
	start := time.Now()
	res, err := e.inner.Evaluate(ctx, fen, depth, topK)
	prometheus.RecordEngineEvaluation(e.metrics, depth, time.Since(start), err)
	return res, err
}

func (e *meteredEngine) EvaluateMove(ctx context.Context, fen, moveUCI string, depth int) (int, error) {
	start := time.Now()
	v, err := e.inner.EvaluateMove(ctx, fen, moveUCI, depth)
	prometheus.RecordEngineEvaluation(e.metrics, depth, time.Since(start), err)
	return v, err
}

type meteredOracle struct {
	inner   opening.TheoryOracle
	metrics *prometheus.AppMetrics
}

func (o *meteredOracle) QueryTheory(ctx context.Context, movesUCI []string) (*opening.TheoryStats, error) {
	start := time.Now()
	stats, err := o.inner.QueryTheory(ctx, movesUCI)
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case stats == nil:
		outcome = "miss"
	}
	prometheus.RecordTheoryProbe(o.metrics, outcome, time.Since(start))
	return stats, err
}
