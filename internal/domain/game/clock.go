package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Time-control parsing
// ─────────────────────────────────────────────────────────────────────────────

// ParseTimeControl parses a PGN TimeControl tag of the form "600+5" (base
// seconds + increment seconds) or "600" (no increment).  Composite classical
// controls ("40/7200:3600") and the unknown markers "-", "?" are rejected.
func ParseTimeControl(tc string) (base, increment float64, err error) {
	tc = strings.TrimSpace(tc)
	if tc == "" || tc == "-" || tc == "?" || strings.EqualFold(tc, "unknown") {
		return 0, 0, errors.New(errors.ErrCodeClockParseFailed,
			fmt.Sprintf("time control %q carries no base time", tc))
	}
	if strings.ContainsAny(tc, "/:") {
		return 0, 0, errors.New(errors.ErrCodeClockParseFailed,
			fmt.Sprintf("composite time control %q is not supported", tc))
	}

	basePart, incPart, hasInc := strings.Cut(tc, "+")
	base, err = strconv.ParseFloat(basePart, 64)
	if err != nil || base <= 0 {
		return 0, 0, errors.New(errors.ErrCodeClockParseFailed,
			fmt.Sprintf("time control %q has an invalid base time", tc))
	}
	if hasInc {
		increment, err = strconv.ParseFloat(incPart, 64)
		if err != nil || increment < 0 {
			return 0, 0, errors.New(errors.ErrCodeClockParseFailed,
				fmt.Sprintf("time control %q has an invalid increment", tc))
		}
	}
	return base, increment, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Move-time derivation
// ─────────────────────────────────────────────────────────────────────────────

// DeriveMoveTimes fills in Move.TimeSpent for every move that has enough
// clock information, in place.  The thinking time for a move is
//
//	previous same-color clock − current clock + increment
//
// clamped at zero.  The increment is added back because the [%clk] annotation
// records the clock after the increment was applied.  The first move of each
// color uses the base time as the previous clock when base > 0; otherwise its
// time stays nil.  Moves without a clock annotation, or whose same-color
// predecessor lacks one, keep a nil TimeSpent.
func DeriveMoveTimes(moves []Move, base, increment float64) {
	prev := map[Color]*float64{}
	if base > 0 {
		w, b := base, base
		prev[ColorWhite] = &w
		prev[ColorBlack] = &b
	} else {
		prev[ColorWhite] = nil
		prev[ColorBlack] = nil
	}

	for i := range moves {
		m := &moves[i]
		if m.ClockRemaining == nil {
			// The chain is broken for this color: a later move cannot measure
			// itself against a clock we never saw.
			prev[m.Color] = nil
			continue
		}
		if p := prev[m.Color]; p != nil {
			spent := *p - *m.ClockRemaining + increment
			if spent < 0 {
				spent = 0
			}
			m.TimeSpent = &spent
		}
		prev[m.Color] = m.ClockRemaining
	}
}

// ComputeMoveTimes parses g.TimeControl and derives per-move thinking times.
// It is best-effort: an unparseable or absent time control still derives
// times from consecutive clock annotations alone (with zero base and
// increment), and a game without clock annotations is left untouched.
func (g *Game) ComputeMoveTimes() {
	base, increment, err := ParseTimeControl(g.TimeControl)
	if err != nil {
		base, increment = 0, 0
	}
	DeriveMoveTimes(g.Moves, base, increment)
}
