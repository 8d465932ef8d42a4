// Package game implements the parsed-game bounded context: colors, players,
// the per-ply Move value object, and the Game aggregate that the analysis
// pipeline consumes.  All structural invariants of a move list (contiguous
// plies, alternating colors) are enforced here; PGN parsing itself is an
// infrastructure concern handled by internal/infrastructure/chess.
package game

import (
	"fmt"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Color
// ─────────────────────────────────────────────────────────────────────────────

// Color identifies the side to move.  The zero value is invalid; use the
// ColorWhite / ColorBlack constants.
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// IsValid reports whether c is one of the two defined colors.
func (c Color) IsValid() bool {
	return c == ColorWhite || c == ColorBlack
}

// ColorForPly returns the side that moves on the given 1-based ply:
// white on odd plies, black on even plies.
func ColorForPly(ply int) Color {
	if ply%2 == 1 {
		return ColorWhite
	}
	return ColorBlack
}

// ─────────────────────────────────────────────────────────────────────────────
// Result
// ─────────────────────────────────────────────────────────────────────────────

// Game results as written in PGN tags.
const (
	ResultWhiteWins = "1-0"
	ResultBlackWins = "0-1"
	ResultDraw      = "1/2-1/2"
	ResultUnknown   = "*"
)

// ─────────────────────────────────────────────────────────────────────────────
// Player
// ─────────────────────────────────────────────────────────────────────────────

// Player carries the identity of one side.  Elo 0 means the rating is unknown.
type Player struct {
	Name string `json:"name"`
	Elo  int    `json:"elo,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Move value object
// ─────────────────────────────────────────────────────────────────────────────

// Move is one ply of the game, immutable once appended to a Game.  FENBefore
// is the position the mover faced; FENAfter the position after the move was
// played.  ClockRemaining and TimeSpent are nil when the source PGN carried
// no clock annotations.
type Move struct {
	// Ply is the 1-based half-move index.
	Ply int `json:"ply"`
	// Number is the full-move number as printed in PGN (1 for plies 1–2).
	Number int `json:"number"`
	// Color is the side that played this move.
	Color Color `json:"color"`
	// SAN is the move in Standard Algebraic Notation (e.g. "Nf3").
	SAN string `json:"san"`
	// UCI is the move in UCI long algebraic notation (e.g. "g1f3").
	UCI string `json:"uci"`
	// FENBefore is the position before the move.
	FENBefore string `json:"fen_before"`
	// FENAfter is the position after the move.
	FENAfter string `json:"fen_after"`
	// ClockRemaining is the mover's clock (seconds) after the move, from the
	// PGN [%clk] annotation.
	ClockRemaining *float64 `json:"clock_remaining,omitempty"`
	// TimeSpent is the derived thinking time for this move in seconds.
	TimeSpent *float64 `json:"time_spent,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Game aggregate
// ─────────────────────────────────────────────────────────────────────────────

// Game is the aggregate root for a single parsed game.  Moves must be appended
// through AppendMove so that ply continuity and color alternation hold; the
// analysis pipeline depends on both.
type Game struct {
	ID          common.ID `json:"id"`
	White       Player    `json:"white"`
	Black       Player    `json:"black"`
	Event       string    `json:"event,omitempty"`
	Site        string    `json:"site,omitempty"`
	PlayedAt    time.Time `json:"played_at,omitempty"`
	Result      string    `json:"result"`
	TimeControl string    `json:"time_control,omitempty"`
	ECO         string    `json:"eco,omitempty"`
	Opening     string    `json:"opening,omitempty"`
	// Source names where the PGN came from (upload, file path, URL).
	Source string `json:"source,omitempty"`
	Moves  []Move `json:"moves"`
}

// NewGame constructs an empty Game with a fresh ID and the given players.
func NewGame(white, black Player) *Game {
	return &Game{
		ID:     common.NewID(),
		White:  white,
		Black:  black,
		Result: ResultUnknown,
		Moves:  make([]Move, 0, 80),
	}
}

// AppendMove appends m to the game, enforcing:
//   - m.Ply == len(g.Moves)+1 (plies are contiguous and 1-based),
//   - m.Color matches the side to move on that ply,
//   - m.SAN and m.UCI are non-empty.
func (g *Game) AppendMove(m Move) error {
	wantPly := len(g.Moves) + 1
	if m.Ply != wantPly {
		return errors.InvalidParam(
			fmt.Sprintf("move ply %d breaks continuity; expected %d", m.Ply, wantPly))
	}
	if want := ColorForPly(m.Ply); m.Color != want {
		return errors.InvalidParam(
			fmt.Sprintf("ply %d must be played by %s, got %s", m.Ply, want, m.Color))
	}
	if m.SAN == "" || m.UCI == "" {
		return errors.New(errors.ErrCodeMoveIllegal,
			fmt.Sprintf("ply %d is missing SAN or UCI notation", m.Ply))
	}
	g.Moves = append(g.Moves, m)
	return nil
}

// MoveCount returns the number of plies in the game.
func (g *Game) MoveCount() int {
	return len(g.Moves)
}

// MovesByColor returns the subsequence of moves played by the given side,
// in game order.
func (g *Game) MovesByColor(c Color) []Move {
	out := make([]Move, 0, (len(g.Moves)+1)/2)
	for _, m := range g.Moves {
		if m.Color == c {
			out = append(out, m)
		}
	}
	return out
}

// PlayerByColor returns the Player on the given side.
func (g *Game) PlayerByColor(c Color) Player {
	if c == ColorWhite {
		return g.White
	}
	return g.Black
}

// UCIMoves returns the full move list in UCI notation, in game order.
// This is the shape the opening-theory oracle consumes.
func (g *Game) UCIMoves() []string {
	out := make([]string, len(g.Moves))
	for i, m := range g.Moves {
		out[i] = m.UCI
	}
	return out
}

// Winner returns the winning color, or nil for a draw or an unknown result.
func (g *Game) Winner() *Color {
	switch g.Result {
	case ResultWhiteWins:
		c := ColorWhite
		return &c
	case ResultBlackWins:
		c := ColorBlack
		return &c
	default:
		return nil
	}
}
