// Package opening locates the point where a game leaves known opening theory.
// Theory membership is decided by an external oracle (in production the
// Lichess opening explorer, see internal/infrastructure/explorer/lichess)
// reporting how many recorded games reached a given move-sequence prefix.
package opening

import "context"

// TheoryStats are the recorded-game counts the theory oracle reports for one
// move-sequence prefix.
type TheoryStats struct {
	WhiteWins int `json:"white_wins"`
	Draws     int `json:"draws"`
	BlackWins int `json:"black_wins"`
}

// TotalGames is the number of recorded games that reached the position.
func (s TheoryStats) TotalGames() int {
	return s.WhiteWins + s.Draws + s.BlackWins
}

// InTheory reports whether the position has enough recorded games to count
// as established theory.
func (s TheoryStats) InTheory(threshold int) bool {
	return s.TotalGames() >= threshold
}

// TheoryOracle answers "how often has this move sequence been played".
//
// A (nil, nil) return means the position is absent from the oracle's
// database, which is an ordinary answer, not an error.  Implementations are
// expected to be slow (remote calls); callers rate-limit between queries.
type TheoryOracle interface {
	QueryTheory(ctx context.Context, movesUCI []string) (*TheoryStats, error)
}
