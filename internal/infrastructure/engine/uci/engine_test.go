package uci

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/evaluation"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

const testFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// fakeServer scripts the engine side of the UCI conversation over in-memory
// pipes.  It answers the handshake, replies to every "go" with the canned
// search output, and records each command it receives.
type fakeServer struct {
	mu   sync.Mutex
	cmds []string
	onGo []string
}

func (f *fakeServer) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
}

func (f *fakeServer) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}

func startFakeEngine(t *testing.T, searchOutput []string) (*Engine, *fakeServer) {
	t.Helper()
	srv := &fakeServer{onGo: searchOutput}
	cmdReader, cmdWriter := io.Pipe()
	respReader, respWriter := io.Pipe()

	go func() {
		scanner := bufio.NewScanner(cmdReader)
		for scanner.Scan() {
			cmd := scanner.Text()
			srv.record(cmd)
			var reply []string
			switch {
			case cmd == "uci":
				reply = []string{"id name Stockfish 16", "uciok"}
			case cmd == "isready":
				reply = []string{"readyok"}
			case strings.HasPrefix(cmd, "go "):
				reply = srv.onGo
			case cmd == "quit":
				_ = respWriter.Close()
				return
			}
			for _, line := range reply {
				if _, err := io.WriteString(respWriter, line+"\n"); err != nil {
					return
				}
			}
		}
		_ = respWriter.Close()
	}()

	e := &Engine{
		cfg: Config{
			HashMB:  DefaultHashMB,
			Threads: DefaultThreads,
			MultiPV: DefaultMultiPV,
			Logger:  logging.NewNopLogger(),
		},
		session: newSession(cmdWriter, respReader),
		logger:  logging.NewNopLogger(),
	}
	require.NoError(t, e.handshake())
	return e, srv
}

func TestHandshakeSendsOptions(t *testing.T) {
	e, srv := startFakeEngine(t, nil)
	defer e.Close()

	assert.Equal(t, []string{
		"uci",
		"setoption name Hash value 64",
		"setoption name Threads value 1",
		"setoption name MultiPV value 3",
		"isready",
	}, srv.commands())
}

func TestEvaluateParsesMultiPV(t *testing.T) {
	e, srv := startFakeEngine(t, []string{
		"info depth 11 multipv 1 score cp 30 nodes 100000 nps 1000000 pv e2e4 e7e5",
		"info depth 12 multipv 1 score cp 35 nodes 250000 nps 1000000 pv e2e4 e7e5 g1f3",
		"info depth 12 multipv 2 score cp 20 nodes 250000 nps 1000000 pv d2d4 d7d5",
		"info depth 12 multipv 3 score cp -15 nodes 250000 nps 1000000 pv g2g4 d7d5",
		"bestmove e2e4 ponder e7e5",
	})
	defer e.Close()

	res, err := e.Evaluate(context.Background(), testFEN, 12, 3)
	require.NoError(t, err)

	assert.Equal(t, 35, res.Evaluation)
	assert.Equal(t, 12, res.Depth)
	assert.Equal(t, int64(250000), res.Nodes)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, evaluation.Candidate{
		Rank: 1, Move: "e2e4", Score: 35, PV: []string{"e2e4", "e7e5", "g1f3"},
	}, res.Candidates[0])
	assert.Equal(t, 2, res.Candidates[1].Rank)
	assert.Equal(t, "d2d4", res.Candidates[1].Move)
	assert.Equal(t, 20, res.Candidates[1].Score)
	assert.Equal(t, -15, res.Candidates[2].Score)

	assert.Contains(t, srv.commands(), "position fen "+testFEN)
	assert.Contains(t, srv.commands(), "go depth 12")
}

func TestEvaluateAdjustsMultiPV(t *testing.T) {
	e, srv := startFakeEngine(t, []string{
		"info depth 8 multipv 1 score cp 10 pv e2e4",
		"bestmove e2e4",
	})
	defer e.Close()

	_, err := e.Evaluate(context.Background(), testFEN, 8, 5)
	require.NoError(t, err)
	assert.Contains(t, srv.commands(), "setoption name MultiPV value 5")
}

func TestEvaluateEncodesMates(t *testing.T) {
	e, _ := startFakeEngine(t, []string{
		"info depth 12 multipv 1 score mate 3 nodes 5000 pv d1h5 g7g6 h5f7",
		"info depth 12 multipv 2 score mate -2 nodes 5000 pv a2a3 d8h4",
		"bestmove d1h5",
	})
	defer e.Close()

	res, err := e.Evaluate(context.Background(), testFEN, 12, 2)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)

	assert.Equal(t, evaluation.MateScore, res.Candidates[0].Score)
	assert.True(t, res.Candidates[0].IsMate)
	assert.Equal(t, 3, res.Candidates[0].MateIn)
	assert.Equal(t, -evaluation.MateScore, res.Candidates[1].Score)
	assert.Equal(t, -2, res.Candidates[1].MateIn)
}

func TestEvaluateSkipsBoundLines(t *testing.T) {
	e, _ := startFakeEngine(t, []string{
		"info depth 12 multipv 1 score cp 40 nodes 1000 pv e2e4",
		"info depth 12 multipv 1 score cp 55 lowerbound nodes 1200 pv e2e4",
		"bestmove e2e4",
	})
	defer e.Close()

	res, err := e.Evaluate(context.Background(), testFEN, 12, 1)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Evaluation)
}

func TestEvaluateNoCandidates(t *testing.T) {
	e, _ := startFakeEngine(t, []string{"bestmove (none)"})
	defer e.Close()

	_, err := e.Evaluate(context.Background(), testFEN, 12, 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEngineEvalFailed))
}

func TestEvaluateMoveFlipsSign(t *testing.T) {
	e, srv := startFakeEngine(t, []string{
		"info depth 10 multipv 1 score cp -25 nodes 99 pv g1f3",
		"bestmove g1f3",
	})
	defer e.Close()

	score, err := e.EvaluateMove(context.Background(), testFEN, "e7e5", 10)
	require.NoError(t, err)
	assert.Equal(t, 25, score)

	assert.Contains(t, srv.commands(), "position fen "+testFEN+" moves e7e5")
	assert.Contains(t, srv.commands(), "setoption name MultiPV value 1")
}

func TestEvaluateMoveMateOnBoard(t *testing.T) {
	// After a mating move the engine reports the terminal position as
	// "mate 0" with no pv; the mover's perspective is +MateScore.
	e, _ := startFakeEngine(t, []string{
		"info depth 0 score mate 0",
		"bestmove (none)",
	})
	defer e.Close()

	score, err := e.EvaluateMove(context.Background(), testFEN, "h5f7", 10)
	require.NoError(t, err)
	assert.Equal(t, evaluation.MateScore, score)
}

func TestEvaluateCanceled(t *testing.T) {
	// The scripted search never sends bestmove, so only cancellation can end
	// it.
	e, _ := startFakeEngine(t, []string{
		"info depth 5 multipv 1 score cp 12 pv e2e4",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Evaluate(ctx, testFEN, 30, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
	assert.False(t, e.Healthy())
}

func TestEvaluateOnClosedEngine(t *testing.T) {
	e, _ := startFakeEngine(t, nil)
	require.NoError(t, e.Close())

	_, err := e.Evaluate(context.Background(), testFEN, 12, 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEngineUnavailable))
}

func TestEvaluateRejectsInvalidDepth(t *testing.T) {
	e, _ := startFakeEngine(t, nil)
	defer e.Close()

	_, err := e.Evaluate(context.Background(), testFEN, 0, 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEngineDepthInvalid))

	_, err = e.EvaluateMove(context.Background(), testFEN, "e2e4", -1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEngineDepthInvalid))
}

func TestParseInfoLine(t *testing.T) {
	tests := []struct {
		name string
		text string
		ok   bool
		want searchLine
	}{
		{
			name: "full line",
			text: "info depth 12 seldepth 16 multipv 2 score cp -42 nodes 123456 nps 900000 time 140 pv d2d4 d7d5 c2c4",
			ok:   true,
			want: searchLine{depth: 12, multipv: 2, scoreCP: -42, nodes: 123456, pv: []string{"d2d4", "d7d5", "c2c4"}},
		},
		{
			name: "mate line",
			text: "info depth 10 multipv 1 score mate 4 nodes 777 pv h5f7",
			ok:   true,
			want: searchLine{depth: 10, multipv: 1, isMate: true, mateIn: 4, nodes: 777, pv: []string{"h5f7"}},
		},
		{
			name: "multipv defaults to one",
			text: "info depth 10 score cp 12 pv e2e4",
			ok:   true,
			want: searchLine{depth: 10, multipv: 1, scoreCP: 12, pv: []string{"e2e4"}},
		},
		{
			name: "terminal position without pv",
			text: "info depth 0 score mate 0",
			ok:   true,
			want: searchLine{depth: 0, multipv: 1, isMate: true, mateIn: 0},
		},
		{
			name: "stalemate without pv",
			text: "info depth 0 score cp 0",
			ok:   true,
			want: searchLine{depth: 0, multipv: 1, scoreCP: 0},
		},
		{name: "currmove progress line", text: "info depth 24 currmove e2e4 currmovenumber 1", ok: false},
		{name: "string line", text: "info string NNUE evaluation using nn-5af11540bbfe.nnue", ok: false},
		{name: "lowerbound line", text: "info depth 12 multipv 1 score cp 55 lowerbound pv e2e4", ok: false},
		{name: "scored line without pv above depth zero", text: "info depth 9 multipv 1 score cp 31 nodes 10", ok: false},
		{name: "not an info line", text: "bestmove e2e4 ponder e7e5", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseInfoLine(tt.text)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestScoreOf(t *testing.T) {
	assert.Equal(t, 73, scoreOf(searchLine{scoreCP: 73}))
	assert.Equal(t, evaluation.MateScore, scoreOf(searchLine{isMate: true, mateIn: 5}))
	assert.Equal(t, -evaluation.MateScore, scoreOf(searchLine{isMate: true, mateIn: -1}))
	assert.Equal(t, -evaluation.MateScore, scoreOf(searchLine{isMate: true, mateIn: 0}))
}

func TestSearchToResultSkipsGaps(t *testing.T) {
	lines := map[int]searchLine{
		1: {depth: 12, multipv: 1, scoreCP: 50, pv: []string{"e2e4"}},
		3: {depth: 12, multipv: 3, scoreCP: -10, pv: []string{"g2g4"}},
	}
	res := searchToResult(lines, 3, 12)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, 1, res.Candidates[0].Rank)
	assert.Equal(t, 3, res.Candidates[1].Rank)
	assert.Equal(t, 50, res.Evaluation)
}
