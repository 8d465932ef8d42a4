package opening

import (
	"context"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Defaults
// ─────────────────────────────────────────────────────────────────────────────

const (
	// DefaultMaxOpeningMoves caps how deep the incremental theory scan goes.
	DefaultMaxOpeningMoves = 40
	// DefaultGameThreshold is the minimum recorded-game count for a prefix to
	// still count as theory.
	DefaultGameThreshold = 10
	// DefaultRateLimitDelay is the pause between successive oracle queries.
	DefaultRateLimitDelay = 100 * time.Millisecond
	// mostlyOpeningCap bounds how many theory moves a game needs before it is
	// considered "mostly opening" regardless of its length.
	mostlyOpeningCap = 15
)

// ─────────────────────────────────────────────────────────────────────────────
// Results
// ─────────────────────────────────────────────────────────────────────────────

// Probe records one oracle query made during the scan.
type Probe struct {
	// MoveIndex is the 1-based length of the probed prefix.
	MoveIndex int `json:"move_index"`
	// TotalGames is the oracle's recorded-game count, 0 when absent or failed.
	TotalGames int `json:"total_games"`
	// InTheory reports whether the probe passed the game threshold.
	InTheory bool `json:"in_theory"`
}

// Deviation describes where the game left opening theory.
type Deviation struct {
	// OpeningMoveCount is the number of leading moves still in theory.
	OpeningMoveCount int `json:"opening_move_count"`
	// DeviationMove is the 1-based index of the first out-of-theory move, or
	// 0 when every scanned move stayed in theory.
	DeviationMove int `json:"deviation_move,omitempty"`
	// OpeningPercentage is OpeningMoveCount over the game's move count.
	OpeningPercentage float64 `json:"opening_percentage"`
	// IsMostlyOpening reports whether theory covered most of the game.
	IsMostlyOpening bool `json:"is_mostly_opening"`
	// Probes preserves the scan trace for reporting.
	Probes []Probe `json:"probes,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Analyzer
// ─────────────────────────────────────────────────────────────────────────────

// Options tunes the deviation scan.  Zero values fall back to the defaults
// above.
type Options struct {
	MaxOpeningMoves int
	GameThreshold   int
	RateLimitDelay  time.Duration
	Logger          logging.Logger
}

// Analyzer walks a game's move sequence through the theory oracle and finds
// the deviation point.
type Analyzer struct {
	oracle    TheoryOracle
	maxMoves  int
	threshold int
	delay     time.Duration
	logger    logging.Logger
}

// NewAnalyzer builds an Analyzer around the given oracle.
func NewAnalyzer(oracle TheoryOracle, opts Options) *Analyzer {
	if opts.MaxOpeningMoves <= 0 {
		opts.MaxOpeningMoves = DefaultMaxOpeningMoves
	}
	if opts.GameThreshold <= 0 {
		opts.GameThreshold = DefaultGameThreshold
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Analyzer{
		oracle:    oracle,
		maxMoves:  opts.MaxOpeningMoves,
		threshold: opts.GameThreshold,
		delay:     opts.RateLimitDelay,
		logger:    opts.Logger.Named("opening"),
	}
}

// AnalyzeDeviation scans prefixes of increasing length until one falls out of
// theory.  The first prefix whose recorded-game count drops below the
// threshold, that the oracle cannot find, or that the oracle fails on,
// terminates the scan.  Theory support is not guaranteed monotonic in the
// oracle's sample, but first-failure termination is the accepted policy.
//
// Oracle failures are never fatal: the failed prefix counts as out of theory
// and the result reflects the scan up to that point.
func (a *Analyzer) AnalyzeDeviation(ctx context.Context, movesUCI []string) Deviation {
	total := len(movesUCI)
	if total == 0 {
		return Deviation{}
	}

	limit := total
	if limit > a.maxMoves {
		limit = a.maxMoves
	}

	openingMoves := 0
	probes := make([]Probe, 0, limit)

scan:
	for i := 1; i <= limit; i++ {
		if i > 1 && !a.pause(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		stats, err := a.oracle.QueryTheory(ctx, movesUCI[:i])
		switch {
		case err != nil:
			a.logger.Warn("theory query failed, treating as out of theory",
				logging.Int("move_index", i), logging.Err(err))
			probes = append(probes, Probe{MoveIndex: i})
			break scan
		case stats == nil:
			a.logger.Debug("prefix absent from theory database", logging.Int("move_index", i))
			probes = append(probes, Probe{MoveIndex: i})
			break scan
		}

		games := stats.TotalGames()
		inTheory := games >= a.threshold
		probes = append(probes, Probe{MoveIndex: i, TotalGames: games, InTheory: inTheory})
		if !inTheory {
			a.logger.Debug("theory ends",
				logging.Int("move_index", i), logging.Int("total_games", games))
			break
		}
		openingMoves = i
	}

	deviation := 0
	if openingMoves+1 <= total {
		deviation = openingMoves + 1
	}

	mostlyBar := total / 2
	if mostlyBar > mostlyOpeningCap {
		mostlyBar = mostlyOpeningCap
	}

	return Deviation{
		OpeningMoveCount:  openingMoves,
		DeviationMove:     deviation,
		OpeningPercentage: float64(openingMoves) / float64(total) * 100,
		IsMostlyOpening:   openingMoves >= mostlyBar,
		Probes:            probes,
	}
}

// pause sleeps the rate-limit delay, returning false when the context ended
// first.
func (a *Analyzer) pause(ctx context.Context) bool {
	if a.delay <= 0 {
		return true
	}
	timer := time.NewTimer(a.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
