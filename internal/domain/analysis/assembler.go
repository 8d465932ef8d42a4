// Package analysis assembles the per-ply MoveRecord: the engine verdict on
// the position, how the played move ranks against the engine's candidates,
// the centipawn loss it incurred, and the position's complexity score.
//
// The assembler is the only pipeline stage that talks to the engine oracle.
// It makes one Evaluate call per ply, plus at most one supplementary
// EvaluateMove call when the played move is not among the returned
// candidates.  Board state threading is the caller's responsibility: each
// call receives the position before the move as a FEN plus pre-extracted
// features.
package analysis

import (
	"context"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/complexity"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/evaluation"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// Default engine-query parameters.
const (
	DefaultDepth = 12
	DefaultTopK  = 3
)

// ─────────────────────────────────────────────────────────────────────────────
// Record types
// ─────────────────────────────────────────────────────────────────────────────

// EngineAnalysis is the engine's verdict on one played move.
type EngineAnalysis struct {
	// Evaluation is the position's primary (best-line) evaluation in
	// centipawns from the mover's perspective.
	Evaluation int `json:"evaluation"`
	// MoveRank is the played move's 1-based rank among the candidates, 0
	// when the move is not among them.
	MoveRank int `json:"move_rank"`
	// CentipawnLoss is max(0, bestEval − playedEval).
	CentipawnLoss int `json:"centipawn_loss"`
	// Candidates are the engine's ranked lines for the position.
	Candidates []evaluation.Candidate `json:"candidates,omitempty"`
	// Depth is the search depth the verdict was obtained at.
	Depth int `json:"depth"`
	// Valid is false when the engine failed on this position.  Invalid
	// records carry zeroed numeric fields and are excluded from every
	// aggregate denominator downstream.
	Valid bool `json:"valid"`
}

// OpeningStatus is the theory verdict for the position, supplied by the
// caller from the opening scan.
type OpeningStatus struct {
	InTheory bool `json:"in_theory"`
	// Popularity is the recorded-game count for the position, 0 when
	// unknown.
	Popularity int `json:"popularity,omitempty"`
}

// MoveRecord is the full per-ply analysis row.  It is created once by
// Assemble and immutable thereafter.
type MoveRecord struct {
	Ply        int        `json:"ply"`
	MoveNumber int        `json:"move_number"`
	Player     game.Color `json:"player"`
	// Move is the played move in UCI notation.
	Move string `json:"move"`
	SAN  string `json:"san,omitempty"`
	// MoveTime is the seconds spent on the move, nil when unknown.
	MoveTime *float64 `json:"move_time,omitempty"`
	// ClockRemaining is the clock after the move, nil when unknown.
	ClockRemaining *float64 `json:"clock_remaining,omitempty"`
	LegalMoveCount int      `json:"legal_move_count"`

	Engine     EngineAnalysis   `json:"engine"`
	Complexity complexity.Score `json:"complexity"`
	Opening    OpeningStatus    `json:"opening"`
}

// Input is everything Assemble needs for one ply.
type Input struct {
	// FEN is the position before the move.
	FEN string
	// Move is the played move with its clock data.
	Move game.Move
	// Features are the board features of the position before the move.
	Features complexity.PositionFeatures
	// Opening is the caller-supplied theory status for the position.
	Opening OpeningStatus
}

// ─────────────────────────────────────────────────────────────────────────────
// Assembler
// ─────────────────────────────────────────────────────────────────────────────

// Options tunes the assembler.  Zero values fall back to the defaults above.
type Options struct {
	Depth  int
	TopK   int
	Logger logging.Logger
}

// Assembler turns one played move into a MoveRecord.
type Assembler struct {
	engine evaluation.Engine
	scorer *complexity.Calculator
	depth  int
	topK   int
	logger logging.Logger
}

// NewAssembler builds an Assembler around the given engine oracle.
func NewAssembler(engine evaluation.Engine, opts Options) *Assembler {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Assembler{
		engine: engine,
		scorer: complexity.NewCalculator(),
		depth:  opts.Depth,
		topK:   opts.TopK,
		logger: opts.Logger.Named("assembler"),
	}
}

// Assemble analyses one ply.  Engine failures are absorbed: the returned
// record has Engine.Valid=false and a zero-valued Complexity (deliberately
// distinct from complexity.DefaultScore, so "engine failed" and "position
// unscorable" stay distinguishable downstream), and the pipeline continues
// with the next ply.
func (a *Assembler) Assemble(ctx context.Context, in Input) MoveRecord {
	rec := MoveRecord{
		Ply:            in.Move.Ply,
		MoveNumber:     in.Move.Number,
		Player:         in.Move.Color,
		Move:           in.Move.UCI,
		SAN:            in.Move.SAN,
		MoveTime:       in.Move.TimeSpent,
		ClockRemaining: in.Move.ClockRemaining,
		LegalMoveCount: in.Features.LegalMoveCount,
		Opening:        in.Opening,
	}

	res, err := a.engine.Evaluate(ctx, in.FEN, a.depth, a.topK)
	if err != nil {
		a.logger.Warn("engine evaluation failed, marking ply invalid",
			logging.Int("ply", in.Move.Ply), logging.String("move", in.Move.UCI), logging.Err(err))
		return rec
	}
	best := res.Best()
	if best == nil {
		a.logger.Warn("engine returned no candidates, marking ply invalid",
			logging.Int("ply", in.Move.Ply))
		return rec
	}

	rank := res.RankOf(in.Move.UCI)
	playedEval := best.Score
	switch {
	case rank > 0:
		for _, c := range res.Candidates {
			if c.Rank == rank {
				playedEval = c.Score
				break
			}
		}
	default:
		v, evalErr := a.engine.EvaluateMove(ctx, in.FEN, in.Move.UCI, a.depth)
		if evalErr != nil {
			// Lossy fallback: treat the played move as matching the best
			// line, which records zero loss for this ply.
			a.logger.Debug("supplementary evaluation failed, assuming best-line eval",
				logging.Int("ply", in.Move.Ply), logging.String("move", in.Move.UCI), logging.Err(evalErr))
		} else {
			playedEval = v
		}
	}

	loss := best.Score - playedEval
	if loss < 0 {
		loss = 0
	}

	rec.Engine = EngineAnalysis{
		Evaluation:    res.Evaluation,
		MoveRank:      rank,
		CentipawnLoss: loss,
		Candidates:    res.Candidates,
		Depth:         res.Depth,
		Valid:         true,
	}
	rec.Complexity = a.scorer.Score(in.Features, res.Candidates)
	return rec
}
