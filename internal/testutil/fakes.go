package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/evaluation"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
)

// FakeEngine implements evaluation.Engine from a script keyed by FEN.
// Positions without a script entry fall back to Fallback; with neither, the
// engine reports itself unavailable.
type FakeEngine struct {
	mu sync.Mutex

	// Results maps FEN to the evaluation to return.
	Results map[string]*evaluation.Result

	// Fallback is returned for positions not present in Results.
	Fallback *evaluation.Result

	// FailAll makes every call fail, as if the engine process died.
	FailAll bool

	// MoveEval is what EvaluateMove reports for every move.
	MoveEval int

	evaluates int
	moveEvals int
}

// Evaluate implements evaluation.Engine.
func (f *FakeEngine) Evaluate(ctx context.Context, fen string, depth, topK int) (*evaluation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluates++

	if f.FailAll {
		return nil, errors.New("engine unavailable")
	}
	if r, ok := f.Results[fen]; ok {
		return r, nil
	}
	if f.Fallback != nil {
		return f.Fallback, nil
	}
	return nil, errors.New("engine unavailable")
}

// EvaluateMove implements evaluation.Engine.
func (f *FakeEngine) EvaluateMove(ctx context.Context, fen, moveUCI string, depth int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moveEvals++

	if f.FailAll {
		return 0, errors.New("engine unavailable")
	}
	return f.MoveEval, nil
}

// SetFailAll flips the failure mode; safe while calls are in flight.
func (f *FakeEngine) SetFailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailAll = fail
}

// Evaluations returns how many Evaluate calls were made.
func (f *FakeEngine) Evaluations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evaluates
}

// MoveEvaluations returns how many EvaluateMove calls were made.
func (f *FakeEngine) MoveEvaluations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moveEvals
}

// RankedResult builds an engine result whose top candidate is bestUCI at the
// given score, trailed by two filler lines.
func RankedResult(bestUCI string, score, depth int) *evaluation.Result {
	return &evaluation.Result{
		Evaluation: score,
		Candidates: []evaluation.Candidate{
			{Rank: 1, Move: bestUCI, Score: score},
			{Rank: 2, Move: "a2a3", Score: score - 20},
			{Rank: 3, Move: "h2h3", Score: score - 35},
		},
		Depth: depth,
	}
}

// FakeTheoryOracle implements opening.TheoryOracle from a script of game
// totals, one per successive query. A negative total means the position is
// absent from the theory database.
type FakeTheoryOracle struct {
	mu sync.Mutex

	// Totals holds the game count returned per query, in order. Queries past
	// the end of the script report zero games.
	Totals []int

	// Err, when set, fails every query.
	Err error

	calls int
}

// QueryTheory implements opening.TheoryOracle.
func (f *FakeTheoryOracle) QueryTheory(ctx context.Context, movesUCI []string) (*opening.TheoryStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}

	total := 0
	if f.calls < len(f.Totals) {
		total = f.Totals[f.calls]
	}
	f.calls++

	if total < 0 {
		return nil, nil
	}
	half := total / 2
	quarter := total / 4
	return &opening.TheoryStats{
		WhiteWins: half,
		Draws:     quarter,
		BlackWins: total - half - quarter,
	}, nil
}

// Calls returns how many queries were made.
func (f *FakeTheoryOracle) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
