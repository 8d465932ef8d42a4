// Package chess adapts the notnil/chess board library to the domain model:
// it parses PGN text into game.Game aggregates and extracts per-position
// features for the complexity scorer.  It is the only package that imports
// the board library; everything above it works with FEN strings and domain
// types.
package chess

import (
	stdliberrors "errors"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	chesslib "github.com/notnil/chess"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

const (
	// maxSalvageTokens bounds how many trailing tokens the parser strips when
	// retrying unparseable movetext.  Covers a truncated final move plus a
	// short stretch of stray bytes after it.
	maxSalvageTokens = 12

	pgnDateLayout = "2006.01.02"
)

// ─────────────────────────────────────────────────────────────────────────────
// Parser
// ─────────────────────────────────────────────────────────────────────────────

// Parser turns raw PGN text into the domain Game aggregate: tag pairs, one
// Move per ply with SAN/UCI notation and the FEN before and after, clock
// annotations, and derived per-move thinking times.  Only the first game of a
// multi-game file is read.
type Parser struct {
	logger logging.Logger
}

// NewParser constructs a Parser.  A nil logger disables logging.
func NewParser(logger logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Parser{logger: logger.Named("pgn")}
}

// ParsePGN reads one game from r.  Input with no moves at all is a hard
// error (ErrCodePGNEmpty): the pipeline has nothing to analyze and must not
// report an empty assessment as a clean result.  Unparseable trailing
// movetext is dropped with a warning and the parseable prefix is returned.
func (p *Parser) ParsePGN(r io.Reader) (*game.Game, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePGNParseFailed, "reading PGN input failed")
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, errors.New(errors.ErrCodePGNEmpty, "PGN input is empty")
	}

	cg, err := p.scanGame(text)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePGNParseFailed, "PGN movetext could not be parsed")
	}

	moves := cg.Moves()
	if len(moves) == 0 {
		return nil, errors.New(errors.ErrCodePGNEmpty, "PGN contains no moves")
	}
	positions := cg.Positions()
	if len(positions) != len(moves)+1 {
		return nil, errors.Newf(errors.ErrCodePGNParseFailed,
			"position fold yielded %d positions for %d moves", len(positions), len(moves))
	}

	g := game.NewGame(
		game.Player{Name: tagValue(cg, "White"), Elo: tagInt(cg, "WhiteElo")},
		game.Player{Name: tagValue(cg, "Black"), Elo: tagInt(cg, "BlackElo")},
	)
	g.Event = tagValue(cg, "Event")
	g.Site = tagValue(cg, "Site")
	g.TimeControl = tagValue(cg, "TimeControl")
	g.ECO = tagValue(cg, "ECO")
	g.Opening = tagValue(cg, "Opening")
	if result := tagValue(cg, "Result"); result != "" {
		g.Result = result
	} else if outcome := cg.Outcome(); outcome != chesslib.NoOutcome {
		g.Result = outcome.String()
	}
	if playedAt, ok := tagDate(cg); ok {
		g.PlayedAt = playedAt
	}

	clocks := p.clockAnnotations(len(moves), cg.Comments(), text)
	sanNotation := chesslib.AlgebraicNotation{}
	uciNotation := chesslib.UCINotation{}
	hasClocks := false
	for i, mv := range moves {
		before := positions[i]
		m := game.Move{
			Ply:            i + 1,
			Number:         i/2 + 1,
			Color:          game.ColorForPly(i + 1),
			SAN:            sanNotation.Encode(before, mv),
			UCI:            uciNotation.Encode(before, mv),
			FENBefore:      before.String(),
			FENAfter:       positions[i+1].String(),
			ClockRemaining: clocks[i],
		}
		if clocks[i] != nil {
			hasClocks = true
		}
		if err := g.AppendMove(m); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePGNParseFailed, "assembling move list failed")
		}
	}
	g.ComputeMoveTimes()

	p.logger.Debug("parsed game",
		logging.String("white", g.White.Name),
		logging.String("black", g.Black.Name),
		logging.Int("moves", g.MoveCount()),
		logging.Bool("clocks", hasClocks))
	return g, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Movetext scanning
// ─────────────────────────────────────────────────────────────────────────────

// scanGame parses the first game in text.  When the movetext fails to parse
// it retries with trailing tokens stripped, so an export truncated mid-move
// or followed by stray bytes still yields the prefix that does parse.
func (p *Parser) scanGame(text string) (*chesslib.Game, error) {
	cg, err := readGame(text)
	if err == nil {
		return cg, nil
	}
	trimmed := text
	for dropped := 1; dropped <= maxSalvageTokens; dropped++ {
		trimmed = dropLastToken(trimmed)
		if trimmed == "" {
			break
		}
		cg, retryErr := readGame(trimmed)
		if retryErr != nil {
			continue
		}
		if len(cg.Moves()) == 0 {
			// Stripping reached the tag section; the movetext never parsed.
			break
		}
		p.logger.Warn("dropped unparseable trailing movetext",
			logging.Int("dropped_tokens", dropped),
			logging.Err(err))
		return cg, nil
	}
	return nil, err
}

// readGame scans one game out of text.  Bare movetext without a tag section
// does not scan as a game, so it falls back to decoding the text directly.
func readGame(text string) (*chesslib.Game, error) {
	scanner := chesslib.NewScanner(strings.NewReader(text))
	if scanner.Scan() {
		if cg := scanner.Next(); cg != nil {
			return cg, nil
		}
	}
	scanErr := scanner.Err()

	cg := chesslib.NewGame()
	if err := cg.UnmarshalText([]byte(text)); err != nil {
		if scanErr != nil && !stdliberrors.Is(scanErr, io.EOF) {
			return nil, scanErr
		}
		return nil, err
	}
	return cg, nil
}

// dropLastToken removes the final whitespace-separated token, preserving the
// layout of everything before it (tag pairs must keep their own lines).
func dropLastToken(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	i := strings.LastIndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimRightFunc(s[:i], unicode.IsSpace)
}

// ─────────────────────────────────────────────────────────────────────────────
// Tag pairs
// ─────────────────────────────────────────────────────────────────────────────

func tagValue(cg *chesslib.Game, key string) string {
	if tp := cg.GetTagPair(key); tp != nil {
		return tp.Value
	}
	return ""
}

func tagInt(cg *chesslib.Game, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(tagValue(cg, key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// tagDate reads UTCDate, then Date.  Placeholder dates ("????.??.??") are
// treated as absent.
func tagDate(cg *chesslib.Game) (time.Time, bool) {
	for _, key := range []string{"UTCDate", "Date"} {
		v := tagValue(cg, key)
		if v == "" || strings.Contains(v, "?") {
			continue
		}
		if d, err := time.Parse(pgnDateLayout, v); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Clock annotations
// ─────────────────────────────────────────────────────────────────────────────

var (
	clockHMSRegex = regexp.MustCompile(`\[%clk\s+(\d+):(\d+):(\d+)(?:\.(\d+))?\]`)
	clockMSRegex  = regexp.MustCompile(`\[%clk\s+(\d+):(\d+)(?:\.(\d+))?\]`)
	clockAnyRegex = regexp.MustCompile(`\[%clk\s+[\d:.]+\]`)
)

// clockAnnotations returns the remaining-time annotation for each ply, nil
// where a move carries none.
func (p *Parser) clockAnnotations(moveCount int, comments [][]string, raw string) []*float64 {
	out := make([]*float64, moveCount)
	found := 0
	for i := 0; i < moveCount && i < len(comments); i++ {
		for _, comment := range comments[i] {
			if secs, ok := parseClock(comment); ok {
				out[i] = &secs
				found++
				break
			}
		}
	}
	if found > 0 {
		return out
	}

	// Some exports carry annotations the tokenizer does not surface as
	// per-move comments.  Recover them from the raw text, but only when the
	// count lines up exactly with the move count; a partial set cannot be
	// attributed to plies safely.
	matches := clockAnyRegex.FindAllString(raw, -1)
	if len(matches) != moveCount {
		if len(matches) > 0 {
			p.logger.Debug("clock annotations skipped",
				logging.Int("annotations", len(matches)),
				logging.Int("moves", moveCount))
		}
		return out
	}
	for i, match := range matches {
		if secs, ok := parseClock(match); ok {
			out[i] = &secs
		}
	}
	return out
}

// parseClock extracts the remaining time in seconds from a PGN comment.
// Both the H:MM:SS(.fff) form and the bare M:SS form used by some sites are
// accepted.
func parseClock(comment string) (float64, bool) {
	if m := clockHMSRegex.FindStringSubmatch(comment); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		return float64(h*3600+mi*60+s) + fraction(m[4]), true
	}
	if m := clockMSRegex.FindStringSubmatch(comment); m != nil {
		mi, _ := strconv.Atoi(m[1])
		s, _ := strconv.Atoi(m[2])
		return float64(mi*60+s) + fraction(m[3]), true
	}
	return 0, false
}

func fraction(digits string) float64 {
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return float64(n) / math.Pow(10, float64(len(digits)))
}
