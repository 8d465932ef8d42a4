package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColor_Opponent(t *testing.T) {
	assert.Equal(t, ColorBlack, ColorWhite.Opponent())
	assert.Equal(t, ColorWhite, ColorBlack.Opponent())
}

func TestColor_IsValid(t *testing.T) {
	assert.True(t, ColorWhite.IsValid())
	assert.True(t, ColorBlack.IsValid())
	assert.False(t, Color("").IsValid())
	assert.False(t, Color("red").IsValid())
}

func TestColorForPly(t *testing.T) {
	assert.Equal(t, ColorWhite, ColorForPly(1))
	assert.Equal(t, ColorBlack, ColorForPly(2))
	assert.Equal(t, ColorWhite, ColorForPly(3))
	assert.Equal(t, ColorBlack, ColorForPly(40))
}

func testMove(ply int, san, uci string) Move {
	return Move{
		Ply:    ply,
		Number: (ply + 1) / 2,
		Color:  ColorForPly(ply),
		SAN:    san,
		UCI:    uci,
	}
}

func TestNewGame_InitialState(t *testing.T) {
	g := NewGame(Player{Name: "Ana", Elo: 2100}, Player{Name: "Boris", Elo: 1980})

	assert.NoError(t, g.ID.Validate())
	assert.Equal(t, "Ana", g.White.Name)
	assert.Equal(t, 1980, g.Black.Elo)
	assert.Equal(t, ResultUnknown, g.Result)
	assert.Equal(t, 0, g.MoveCount())
}

func TestAppendMove_MaintainsContinuity(t *testing.T) {
	g := NewGame(Player{Name: "w"}, Player{Name: "b"})

	require.NoError(t, g.AppendMove(testMove(1, "e4", "e2e4")))
	require.NoError(t, g.AppendMove(testMove(2, "e5", "e7e5")))
	require.NoError(t, g.AppendMove(testMove(3, "Nf3", "g1f3")))

	assert.Equal(t, 3, g.MoveCount())
	assert.Equal(t, 2, g.Moves[2].Number)
}

func TestAppendMove_RejectsPlyGap(t *testing.T) {
	g := NewGame(Player{Name: "w"}, Player{Name: "b"})
	require.NoError(t, g.AppendMove(testMove(1, "e4", "e2e4")))

	err := g.AppendMove(testMove(3, "Nf3", "g1f3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "continuity")
}

func TestAppendMove_RejectsWrongColor(t *testing.T) {
	g := NewGame(Player{Name: "w"}, Player{Name: "b"})

	m := testMove(1, "e4", "e2e4")
	m.Color = ColorBlack
	err := g.AppendMove(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be played by white")
}

func TestAppendMove_RejectsMissingNotation(t *testing.T) {
	g := NewGame(Player{Name: "w"}, Player{Name: "b"})

	m := testMove(1, "", "e2e4")
	assert.Error(t, g.AppendMove(m))

	m = testMove(1, "e4", "")
	assert.Error(t, g.AppendMove(m))
}

func TestMovesByColor_SplitsSides(t *testing.T) {
	g := NewGame(Player{Name: "w"}, Player{Name: "b"})
	require.NoError(t, g.AppendMove(testMove(1, "e4", "e2e4")))
	require.NoError(t, g.AppendMove(testMove(2, "c5", "c7c5")))
	require.NoError(t, g.AppendMove(testMove(3, "Nf3", "g1f3")))

	white := g.MovesByColor(ColorWhite)
	black := g.MovesByColor(ColorBlack)

	require.Len(t, white, 2)
	require.Len(t, black, 1)
	assert.Equal(t, "e2e4", white[0].UCI)
	assert.Equal(t, "g1f3", white[1].UCI)
	assert.Equal(t, "c7c5", black[0].UCI)
}

func TestUCIMoves_PreservesOrder(t *testing.T) {
	g := NewGame(Player{Name: "w"}, Player{Name: "b"})
	require.NoError(t, g.AppendMove(testMove(1, "e4", "e2e4")))
	require.NoError(t, g.AppendMove(testMove(2, "e5", "e7e5")))

	assert.Equal(t, []string{"e2e4", "e7e5"}, g.UCIMoves())
}

func TestPlayerByColor(t *testing.T) {
	g := NewGame(Player{Name: "Ana"}, Player{Name: "Boris"})
	assert.Equal(t, "Ana", g.PlayerByColor(ColorWhite).Name)
	assert.Equal(t, "Boris", g.PlayerByColor(ColorBlack).Name)
}

func TestWinner(t *testing.T) {
	g := NewGame(Player{Name: "w"}, Player{Name: "b"})

	g.Result = ResultWhiteWins
	require.NotNil(t, g.Winner())
	assert.Equal(t, ColorWhite, *g.Winner())

	g.Result = ResultBlackWins
	require.NotNil(t, g.Winner())
	assert.Equal(t, ColorBlack, *g.Winner())

	g.Result = ResultDraw
	assert.Nil(t, g.Winner())

	g.Result = ResultUnknown
	assert.Nil(t, g.Winner())
}
