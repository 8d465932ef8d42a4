// Package uci drives a Stockfish process over the UCI protocol and adapts it
// to the evaluation.Engine contract.  One Engine owns one subprocess; a
// search is a strict request/response cycle, so all calls on an Engine are
// serialized.  Use Pool for concurrent evaluation.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/evaluation"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

const (
	DefaultBinaryPath = "stockfish"
	DefaultHashMB     = 64
	// DefaultThreads is 1: a single search thread keeps results
	// deterministic for a fixed position and depth.
	DefaultThreads = 1
	DefaultMultiPV = 3

	// maxInfoLineBytes sizes the scanner buffer; deep searches emit long
	// principal variations.
	maxInfoLineBytes = 1 << 20
)

// Config holds the engine process settings.
type Config struct {
	// BinaryPath is the engine executable.
	BinaryPath string
	// HashMB is the transposition-table size in megabytes.
	HashMB int
	// Threads is the number of search threads per process.
	Threads int
	// MultiPV is the number of candidate lines requested at startup; each
	// Evaluate call may override it.
	MultiPV int
	Logger  logging.Logger
}

func (c *Config) applyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.HashMB <= 0 {
		c.HashMB = DefaultHashMB
	}
	if c.Threads <= 0 {
		c.Threads = DefaultThreads
	}
	if c.MultiPV <= 0 {
		c.MultiPV = DefaultMultiPV
	}
	if c.Logger == nil {
		c.Logger = logging.NewNopLogger()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Session: line-oriented I/O with the engine process
// ─────────────────────────────────────────────────────────────────────────────

type session struct {
	in      *bufio.Writer
	out     *bufio.Scanner
	closers []io.Closer
}

func newSession(in io.WriteCloser, out io.ReadCloser) *session {
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), maxInfoLineBytes)
	return &session{
		in:      bufio.NewWriter(in),
		out:     scanner,
		closers: []io.Closer{in, out},
	}
}

func (s *session) send(cmd string) error {
	if _, err := s.in.WriteString(cmd + "\n"); err != nil {
		return err
	}
	return s.in.Flush()
}

func (s *session) readLine() (string, error) {
	if s.out.Scan() {
		return s.out.Text(), nil
	}
	if err := s.out.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// expect discards lines until one containing marker arrives.
func (s *session) expect(marker string) (string, error) {
	for {
		line, err := s.readLine()
		if err != nil {
			return "", err
		}
		if strings.Contains(line, marker) {
			return line, nil
		}
	}
}

func (s *session) close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

// Engine is a single UCI engine process.  Implements evaluation.Engine.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	cmd     *exec.Cmd
	session *session
	logger  logging.Logger
	multiPV int
	closed  bool
}

// NewEngine starts the engine process and performs the UCI handshake.
func NewEngine(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	cmd := exec.Command(cfg.BinaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEngineStartFailed, "opening engine stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEngineStartFailed, "opening engine stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEngineStartFailed,
			fmt.Sprintf("starting %s", cfg.BinaryPath))
	}

	e := &Engine{
		cfg:     cfg,
		cmd:     cmd,
		session: newSession(stdin, stdout),
		logger:  cfg.Logger.Named("engine"),
	}
	if err := e.handshake(); err != nil {
		e.kill()
		return nil, err
	}
	e.logger.Debug("engine process started",
		logging.String("binary", cfg.BinaryPath),
		logging.Int("hash_mb", cfg.HashMB),
		logging.Int("threads", cfg.Threads))
	return e, nil
}

func (e *Engine) handshake() error {
	if err := e.session.send("uci"); err != nil {
		return errors.Wrap(err, errors.ErrCodeEngineProtocol, "sending uci")
	}
	if _, err := e.session.expect("uciok"); err != nil {
		return errors.Wrap(err, errors.ErrCodeEngineProtocol, "waiting for uciok")
	}
	for _, opt := range []string{
		fmt.Sprintf("setoption name Hash value %d", e.cfg.HashMB),
		fmt.Sprintf("setoption name Threads value %d", e.cfg.Threads),
		fmt.Sprintf("setoption name MultiPV value %d", e.cfg.MultiPV),
	} {
		if err := e.session.send(opt); err != nil {
			return errors.Wrap(err, errors.ErrCodeEngineProtocol, "sending engine options")
		}
	}
	e.multiPV = e.cfg.MultiPV
	return e.ready()
}

func (e *Engine) ready() error {
	if err := e.session.send("isready"); err != nil {
		return errors.Wrap(err, errors.ErrCodeEngineProtocol, "sending isready")
	}
	if _, err := e.session.expect("readyok"); err != nil {
		return errors.Wrap(err, errors.ErrCodeEngineProtocol, "waiting for readyok")
	}
	return nil
}

func (e *Engine) setMultiPV(k int) error {
	if k == e.multiPV {
		return nil
	}
	if err := e.session.send(fmt.Sprintf("setoption name MultiPV value %d", k)); err != nil {
		return errors.Wrap(err, errors.ErrCodeEngineProtocol, "setting MultiPV")
	}
	e.multiPV = k
	return e.ready()
}

// Evaluate searches fen to the given depth and returns the topK ranked lines,
// scores from the mover's perspective and mates encoded as ±MateScore.
func (e *Engine) Evaluate(ctx context.Context, fen string, depth, topK int) (*evaluation.Result, error) {
	if depth < 1 {
		return nil, errors.Newf(errors.ErrCodeEngineDepthInvalid, "depth %d is out of range", depth)
	}
	if topK < 1 {
		topK = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New(errors.ErrCodeEngineUnavailable, "engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "evaluation not started")
	}
	if err := e.setMultiPV(topK); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := e.startSearch("position fen "+fen, depth); err != nil {
		return nil, err
	}
	lines, err := e.runSearch(ctx)
	if err != nil {
		return nil, err
	}

	result := searchToResult(lines, topK, depth)
	result.Elapsed = time.Since(start)
	if len(result.Candidates) == 0 {
		return nil, errors.New(errors.ErrCodeEngineEvalFailed, "engine produced no candidate lines")
	}
	return result, nil
}

// EvaluateMove evaluates the position reached after playing moveUCI from fen
// and returns the score from the perspective of the side that played it.
// The raw engine score is for the opponent, who is then to move, so the sign
// is flipped here.
func (e *Engine) EvaluateMove(ctx context.Context, fen, moveUCI string, depth int) (int, error) {
	if depth < 1 {
		return 0, errors.Newf(errors.ErrCodeEngineDepthInvalid, "depth %d is out of range", depth)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errors.New(errors.ErrCodeEngineUnavailable, "engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeTimeout, "evaluation not started")
	}
	if err := e.setMultiPV(1); err != nil {
		return 0, err
	}

	if err := e.startSearch("position fen "+fen+" moves "+moveUCI, depth); err != nil {
		return 0, err
	}
	lines, err := e.runSearch(ctx)
	if err != nil {
		return 0, err
	}
	line, ok := lines[1]
	if !ok {
		return 0, errors.New(errors.ErrCodeEngineEvalFailed, "engine returned no evaluation for the played move")
	}
	return -scoreOf(line), nil
}

func (e *Engine) startSearch(positionCmd string, depth int) error {
	if err := e.session.send(positionCmd); err != nil {
		return errors.Wrap(err, errors.ErrCodeEngineProtocol, "sending position")
	}
	if err := e.session.send(fmt.Sprintf("go depth %d", depth)); err != nil {
		return errors.Wrap(err, errors.ErrCodeEngineProtocol, "starting search")
	}
	return nil
}

// runSearch reads engine output until bestmove.  Cancellation kills the
// process: a UCI search cannot be abandoned mid-stream without losing
// protocol synchronization.
func (e *Engine) runSearch(ctx context.Context) (map[int]searchLine, error) {
	type outcome struct {
		lines map[int]searchLine
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		lines, err := e.session.collectSearch()
		done <- outcome{lines: lines, err: err}
	}()

	select {
	case <-ctx.Done():
		e.kill()
		<-done
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "engine search canceled")
	case out := <-done:
		if out.err != nil {
			e.kill()
			return nil, errors.Wrap(out.err, errors.ErrCodeEngineProtocol, "reading search output")
		}
		return out.lines, nil
	}
}

// Healthy reports whether the engine can still accept searches.
func (e *Engine) Healthy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

// Close sends quit and waits briefly for the process to exit before killing
// it.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	_ = e.session.send("quit")
	if e.cmd != nil {
		waited := make(chan error, 1)
		go func() { waited <- e.cmd.Wait() }()
		select {
		case <-waited:
		case <-time.After(2 * time.Second):
			_ = e.cmd.Process.Kill()
			<-waited
		}
	}
	e.session.close()
	e.logger.Debug("engine closed")
	return nil
}

// kill hard-stops the process and poisons the engine.  Callers must hold
// e.mu or otherwise own the engine exclusively.
func (e *Engine) kill() {
	if e.closed {
		return
	}
	e.closed = true
	e.session.close()
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
		_ = e.cmd.Wait()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Search output parsing
// ─────────────────────────────────────────────────────────────────────────────

// searchLine is one parsed "info ... multipv ..." line.
type searchLine struct {
	depth   int
	multipv int
	scoreCP int
	isMate  bool
	mateIn  int
	bound   bool
	nodes   int64
	pv      []string
}

// collectSearch reads until bestmove, keeping the deepest line per multipv
// index.
func (s *session) collectSearch() (map[int]searchLine, error) {
	lines := make(map[int]searchLine)
	for {
		text, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(text, "bestmove") {
			return lines, nil
		}
		line, ok := parseInfoLine(text)
		if !ok {
			continue
		}
		if prev, seen := lines[line.multipv]; !seen || line.depth >= prev.depth {
			lines[line.multipv] = line
		}
	}
}

// parseInfoLine extracts the fields the pipeline needs from one engine info
// line.  Lines without a score, bound lines from aspiration re-searches, and
// pv-less lines above depth 0 are rejected; a pv-less depth-0 line is the
// engine reporting a terminal position (mate or stalemate on the board).
func parseInfoLine(text string) (searchLine, bool) {
	if !strings.HasPrefix(text, "info ") {
		return searchLine{}, false
	}
	parts := strings.Fields(text)
	line := searchLine{multipv: 1}
	hasScore := false
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				line.depth, _ = strconv.Atoi(parts[i+1])
			}
		case "multipv":
			if i+1 < len(parts) {
				line.multipv, _ = strconv.Atoi(parts[i+1])
			}
		case "score":
			if i+2 < len(parts) {
				switch parts[i+1] {
				case "cp":
					line.scoreCP, _ = strconv.Atoi(parts[i+2])
					hasScore = true
				case "mate":
					line.mateIn, _ = strconv.Atoi(parts[i+2])
					line.isMate = true
					hasScore = true
				}
				i += 2
			}
		case "lowerbound", "upperbound":
			line.bound = true
		case "nodes":
			if i+1 < len(parts) {
				line.nodes, _ = strconv.ParseInt(parts[i+1], 10, 64)
			}
		case "pv":
			if i+1 < len(parts) {
				line.pv = append([]string(nil), parts[i+1:]...)
			}
			i = len(parts)
		}
	}
	if !hasScore || line.bound {
		return line, false
	}
	if len(line.pv) == 0 && line.depth > 0 {
		return line, false
	}
	return line, true
}

// scoreOf converts a parsed line to centipawns from the mover's perspective,
// encoding mates as ±MateScore.
func scoreOf(line searchLine) int {
	if line.isMate {
		if line.mateIn > 0 {
			return evaluation.MateScore
		}
		return -evaluation.MateScore
	}
	return line.scoreCP
}

func searchToResult(lines map[int]searchLine, topK, depth int) *evaluation.Result {
	res := &evaluation.Result{Depth: depth}
	for rank := 1; rank <= topK; rank++ {
		line, ok := lines[rank]
		if !ok || len(line.pv) == 0 {
			continue
		}
		res.Candidates = append(res.Candidates, evaluation.Candidate{
			Rank:   rank,
			Move:   line.pv[0],
			Score:  scoreOf(line),
			IsMate: line.isMate,
			MateIn: line.mateIn,
			PV:     line.pv,
		})
		if line.nodes > res.Nodes {
			res.Nodes = line.nodes
		}
	}
	if best := res.Best(); best != nil {
		res.Evaluation = best.Score
	}
	return res
}
