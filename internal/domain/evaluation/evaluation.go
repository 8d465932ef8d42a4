// Package evaluation defines the engine-oracle contract used by the analysis
// pipeline.  Implementations live under internal/infrastructure/engine; the
// domain only depends on the interface so scoring stays engine-agnostic.
package evaluation

import (
	"context"
	"time"
)

// MateScore is the sentinel magnitude used to encode forced mates as
// centipawn values: a candidate that mates carries sign×MateScore from the
// mover's perspective.  Downstream consumers must treat any score at or
// beyond this magnitude as a mate, not a material evaluation.
const MateScore = 10000

// Candidate is one engine line for a position, ranked by desirability for
// the side to move.
type Candidate struct {
	// Rank is 1-based; rank 1 is the engine's preferred move.
	Rank int `json:"rank"`
	// Move is the candidate move in UCI notation.
	Move string `json:"move"`
	// SAN is the candidate move in Standard Algebraic Notation.
	SAN string `json:"san,omitempty"`
	// Score is the evaluation in centipawns from the mover's perspective;
	// mates are encoded as ±MateScore.
	Score int `json:"score"`
	// IsMate reports whether Score encodes a forced mate.
	IsMate bool `json:"is_mate,omitempty"`
	// MateIn is the number of moves to mate when IsMate is set; positive
	// means the mover delivers the mate.
	MateIn int `json:"mate_in,omitempty"`
	// PV is the principal variation continuation, possibly empty.
	PV []string `json:"pv,omitempty"`
}

// Result is a full multi-line evaluation of a single position.
type Result struct {
	// Evaluation is the primary (rank-1) score from the mover's perspective.
	Evaluation int `json:"evaluation"`
	// Candidates holds up to topK ranked lines, rank-ascending.
	Candidates []Candidate `json:"candidates"`
	// Depth is the search depth the result was obtained at.
	Depth int `json:"depth"`
	// Nodes is the number of nodes searched, when the engine reports it.
	Nodes int64 `json:"nodes,omitempty"`
	// Elapsed is the wall-clock time of the search.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Best returns the rank-1 candidate, or nil when the result carries no
// candidates.
func (r *Result) Best() *Candidate {
	for i := range r.Candidates {
		if r.Candidates[i].Rank == 1 {
			return &r.Candidates[i]
		}
	}
	if len(r.Candidates) > 0 {
		return &r.Candidates[0]
	}
	return nil
}

// RankOf returns the 1-based rank of the given UCI move among the result's
// candidates, or 0 when the move is not among them.
func (r *Result) RankOf(uci string) int {
	for _, c := range r.Candidates {
		if c.Move == uci {
			return c.Rank
		}
	}
	return 0
}

// Engine evaluates chess positions.  Implementations must be deterministic
// for a fixed (position, depth) pair; both methods report scores from the
// perspective of the side to move in the given FEN.
type Engine interface {
	// Evaluate analyses the position and returns the topK ranked candidate
	// lines.  The returned Result always has at least one candidate on
	// success.
	Evaluate(ctx context.Context, fen string, depth, topK int) (*Result, error)

	// EvaluateMove returns the evaluation of the position reached after
	// playing moveUCI from fen, from the perspective of the side that played
	// the move.  Implementations perform the necessary sign flip; mates are
	// encoded as ±MateScore.
	EvaluateMove(ctx context.Context, fen, moveUCI string, depth int) (int, error)
}
