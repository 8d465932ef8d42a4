package lichess

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// stubOracle answers every query with fixed values and counts invocations.
type stubOracle struct {
	stats *opening.TheoryStats
	err   error
	calls int
}

func (s *stubOracle) QueryTheory(context.Context, []string) (*opening.TheoryStats, error) {
	s.calls++
	return s.stats, s.err
}

func newCacheFixture(t *testing.T) (*miniredis.Miniredis, redis.Cache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return mr, redis.NewCache(client, logging.NewNopLogger())
}

func TestCachedOracleServesSecondLookupFromCache(t *testing.T) {
	_, cache := newCacheFixture(t)
	stub := &stubOracle{stats: &opening.TheoryStats{WhiteWins: 40, Draws: 15, BlackWins: 25}}
	oracle := NewCachedOracle(stub, cache, logging.NewNopLogger(), 0)

	moves := []string{"e2e4", "e7e5", "g1f3"}

	first, err := oracle.QueryTheory(context.Background(), moves)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, *stub.stats, *first)
	assert.Equal(t, 1, stub.calls)

	second, err := oracle.QueryTheory(context.Background(), moves)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, *stub.stats, *second)
	assert.Equal(t, 1, stub.calls, "second lookup must not reach the explorer")
}

func TestCachedOracleNegativeCachesAbsentPositions(t *testing.T) {
	_, cache := newCacheFixture(t)
	stub := &stubOracle{}
	oracle := NewCachedOracle(stub, cache, logging.NewNopLogger(), 0)

	moves := []string{"a2a3", "h7h5", "a3a4"}

	stats, err := oracle.QueryTheory(context.Background(), moves)
	require.NoError(t, err)
	assert.Nil(t, stats)
	assert.Equal(t, 1, stub.calls)

	stats, err = oracle.QueryTheory(context.Background(), moves)
	require.NoError(t, err)
	assert.Nil(t, stats)
	assert.Equal(t, 1, stub.calls, "absence must be negative-cached")
}

func TestCachedOracleDoesNotCacheOracleErrors(t *testing.T) {
	_, cache := newCacheFixture(t)
	stub := &stubOracle{err: assert.AnError}
	oracle := NewCachedOracle(stub, cache, logging.NewNopLogger(), 0)

	moves := []string{"e2e4"}

	_, err := oracle.QueryTheory(context.Background(), moves)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, stub.calls)

	_, err = oracle.QueryTheory(context.Background(), moves)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, stub.calls, "failed lookups stay uncached")
}

func TestCachedOracleDegradesToDirectOnCacheFault(t *testing.T) {
	mr, cache := newCacheFixture(t)
	stub := &stubOracle{stats: &opening.TheoryStats{WhiteWins: 10, Draws: 5, BlackWins: 5}}
	oracle := NewCachedOracle(stub, cache, logging.NewNopLogger(), 0)

	mr.SetError("LOADING Redis is loading the dataset in memory")

	stats, err := oracle.QueryTheory(context.Background(), []string{"e2e4"})
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 20, stats.TotalGames())
	assert.Equal(t, 1, stub.calls)
}

func TestTheoryKeyStaysReadableForShortPrefixes(t *testing.T) {
	assert.Equal(t, "theory:e2e4,e7e5", theoryKey([]string{"e2e4", "e7e5"}))
}

func TestTheoryKeyHashesLongPrefixes(t *testing.T) {
	moves := make([]string, 60)
	for i := range moves {
		moves[i] = "e2e4"
	}

	key := theoryKey(moves)
	assert.True(t, strings.HasPrefix(key, "theory:sha256:"))
	assert.Len(t, key, len("theory:sha256:")+64)

	// Same prefix, same key.
	assert.Equal(t, key, theoryKey(moves))
}
