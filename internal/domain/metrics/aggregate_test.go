package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/analysis"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/complexity"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/metrics"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
)

func validRec(player game.Color, rank, loss int) analysis.MoveRecord {
	return analysis.MoveRecord{
		Player: player,
		Engine: analysis.EngineAnalysis{MoveRank: rank, CentipawnLoss: loss, Valid: true},
	}
}

func invalidRec(player game.Color) analysis.MoveRecord {
	return analysis.MoveRecord{Player: player}
}

func withTime(r analysis.MoveRecord, seconds float64) analysis.MoveRecord {
	r.MoveTime = &seconds
	return r
}

func withComplexity(r analysis.MoveRecord, pcs, normalized float64, cat complexity.Category) analysis.MoveRecord {
	r.Complexity = complexity.Score{PCSScore: pcs, NormalizedComplexity: normalized, Category: cat}
	return r
}

func withTheory(r analysis.MoveRecord, inTheory bool) analysis.MoveRecord {
	r.Opening.InTheory = inTheory
	return r
}

func alternating(ranks ...int) []analysis.MoveRecord {
	records := make([]analysis.MoveRecord, len(ranks))
	for i, rank := range ranks {
		records[i] = validRec(game.ColorForPly(i+1), rank, 0)
	}
	return records
}

func TestAggregate_EngineMatching(t *testing.T) {
	// Ten valid records; two never matched a candidate (rank 0) and drop out
	// of the denominator, one matched outside the top three (rank 4) and
	// stays in the denominator without hitting any counter.
	records := alternating(1, 1, 2, 3, 0, 1, 2, 0, 3, 4)

	m := metrics.Aggregate(records, opening.Deviation{})

	assert.Equal(t, 8, m.Matching.TotalAnalyzed)
	assert.Equal(t, 3, m.Matching.PV1Matches)
	assert.Equal(t, 5, m.Matching.PV2Matches)
	assert.Equal(t, 7, m.Matching.PV3Matches)
	assert.InDelta(t, 37.5, m.Matching.PV1Percentage, 1e-9)
	assert.InDelta(t, 62.5, m.Matching.PV2Percentage, 1e-9)
	assert.InDelta(t, 87.5, m.Matching.PV3Percentage, 1e-9)
}

func TestAggregate_MatchingExcludesInvalidRecords(t *testing.T) {
	records := []analysis.MoveRecord{
		validRec(game.ColorWhite, 1, 0),
		invalidRec(game.ColorBlack),
		invalidRec(game.ColorWhite),
	}

	m := metrics.Aggregate(records, opening.Deviation{})

	assert.Equal(t, 1, m.Matching.TotalAnalyzed)
	assert.InDelta(t, 100.0, m.Matching.PV1Percentage, 1e-9)
}

func TestAggregate_NoMatchedMoves(t *testing.T) {
	records := alternating(0, 0, 0)

	m := metrics.Aggregate(records, opening.Deviation{})

	assert.Zero(t, m.Matching.TotalAnalyzed)
	assert.Zero(t, m.Matching.PV1Percentage)
}

func TestAggregate_Accuracy(t *testing.T) {
	losses := []int{0, 45, 50, 99, 100, 299, 300, 500}
	records := make([]analysis.MoveRecord, len(losses))
	for i, loss := range losses {
		records[i] = validRec(game.ColorForPly(i+1), 1, loss)
	}

	m := metrics.Aggregate(records, opening.Deviation{})

	assert.Equal(t, 1393, m.Accuracy.TotalCentipawnLoss)
	assert.InDelta(t, 174.125, m.Accuracy.MeanCentipawnLoss, 1e-9)
	assert.InDelta(t, 100-174.125/10, m.Accuracy.Score, 1e-9)
	assert.Equal(t, 2, m.Accuracy.Blunders, "300 and 500")
	assert.Equal(t, 2, m.Accuracy.Mistakes, "100 and 299")
	assert.Equal(t, 2, m.Accuracy.Inaccuracies, "50 and 99")
	assert.Equal(t, 8, m.Accuracy.MovesCounted)
}

func TestAggregate_AccuracyBoundaries(t *testing.T) {
	t.Run("zero loss scores 100 on both calibrations", func(t *testing.T) {
		records := []analysis.MoveRecord{
			validRec(game.ColorWhite, 1, 0),
			validRec(game.ColorBlack, 1, 0),
		}
		m := metrics.Aggregate(records, opening.Deviation{})

		assert.InDelta(t, 100.0, m.Accuracy.Score, 1e-9)
		assert.InDelta(t, 100.0, m.White.AccuracyScore, 1e-9)
		assert.InDelta(t, 100.0, m.Black.AccuracyScore, 1e-9)
	})

	t.Run("mean loss 1000 clamps the game score to zero", func(t *testing.T) {
		records := []analysis.MoveRecord{validRec(game.ColorWhite, 0, 1000)}
		m := metrics.Aggregate(records, opening.Deviation{})

		assert.Zero(t, m.Accuracy.Score)
		assert.Zero(t, m.White.AccuracyScore, "per-player /3 calibration clamps too")
	})

	t.Run("no valid records yields the zero summary", func(t *testing.T) {
		records := []analysis.MoveRecord{invalidRec(game.ColorWhite), invalidRec(game.ColorBlack)}
		m := metrics.Aggregate(records, opening.Deviation{})

		assert.Equal(t, metrics.AccuracySummary{}, m.Accuracy)
	})
}

func TestAggregate_InvalidRecordsExcludedFromDenominators(t *testing.T) {
	records := []analysis.MoveRecord{
		validRec(game.ColorWhite, 1, 50),
		invalidRec(game.ColorBlack),
		invalidRec(game.ColorWhite),
		invalidRec(game.ColorBlack),
	}

	m := metrics.Aggregate(records, opening.Deviation{})

	assert.Equal(t, 4, m.TotalMoves)
	assert.Equal(t, 1, m.ValidMoves)
	assert.InDelta(t, 50.0, m.Accuracy.MeanCentipawnLoss, 1e-9, "mean over valid records only")
}

func TestAggregate_Temporal(t *testing.T) {
	records := []analysis.MoveRecord{
		withTime(validRec(game.ColorWhite, 1, 0), 10),
		withTime(validRec(game.ColorBlack, 1, 0), 30),
		withTime(validRec(game.ColorWhite, 1, 0), 10),
		withTime(validRec(game.ColorBlack, 1, 0), 30),
		validRec(game.ColorWhite, 1, 0),              // no clock data
		withTime(validRec(game.ColorBlack, 1, 0), 0), // zero time is treated as missing
	}

	m := metrics.Aggregate(records, opening.Deviation{})

	overall := m.Temporal.Overall
	assert.Equal(t, 4, overall.Count)
	assert.InDelta(t, 20.0, overall.Mean, 1e-9)
	assert.InDelta(t, 10.0, overall.Std, 1e-9)
	assert.InDelta(t, 0.5, overall.CV, 1e-9)
	assert.InDelta(t, 0.5, overall.Consistency, 1e-9)

	assert.Equal(t, 2, m.Temporal.White.Count)
	assert.InDelta(t, 10.0, m.Temporal.White.Mean, 1e-9)
	assert.Zero(t, m.Temporal.White.CV)
	assert.InDelta(t, 1.0, m.Temporal.White.Consistency, 1e-9)

	assert.InDelta(t, 30.0, m.Temporal.Black.Mean, 1e-9)
}

func TestAggregate_TemporalNoClockData(t *testing.T) {
	records := alternating(1, 1, 1)

	m := metrics.Aggregate(records, opening.Deviation{})

	assert.Equal(t, metrics.TimingStats{}, m.Temporal.Overall,
		"clock-less games report zero timing stats, CV included")
}

func TestAggregate_ComplexityRollup(t *testing.T) {
	pcs := []float64{10, 10, 50, 50, 90, 90}
	records := make([]analysis.MoveRecord, len(pcs))
	for i, p := range pcs {
		records[i] = withComplexity(validRec(game.ColorForPly(i+1), 1, 0), p, 0.4, complexity.CategoryBalanced)
	}
	// An invalid record's complexity must not leak into the roll-up.
	records = append(records, withComplexity(invalidRec(game.ColorWhite), 900, 1.0, complexity.CategoryChaotic))

	m := metrics.Aggregate(records, opening.Deviation{})

	assert.Equal(t, 6, m.Complexity.TotalPositions)
	assert.InDelta(t, 50.0, m.Complexity.AveragePCS, 1e-9)
	assert.InDelta(t, 90.0, m.Complexity.MaxPCS, 1e-9)
	assert.InDelta(t, 0.4, m.Complexity.AverageNormalized, 1e-9)
	assert.Equal(t, complexity.TrendIncreasing, m.Complexity.Trend)
}

func TestAggregate_CriticalTimeRatio(t *testing.T) {
	t.Run("slower on complex positions", func(t *testing.T) {
		records := []analysis.MoveRecord{
			withTime(withComplexity(validRec(game.ColorWhite, 1, 0), 100, 0.8, complexity.CategoryCritical), 30),
			withTime(withComplexity(validRec(game.ColorBlack, 1, 0), 100, 0.7, complexity.CategoryCritical), 30),
			withTime(withComplexity(validRec(game.ColorWhite, 1, 0), 10, 0.2, complexity.CategoryTrivial), 10),
			withTime(withComplexity(validRec(game.ColorBlack, 1, 0), 10, 0.2, complexity.CategoryTrivial), 10),
			withTime(withComplexity(validRec(game.ColorWhite, 1, 0), 10, 0.2, complexity.CategoryTrivial), 10),
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.InDelta(t, 3.0, m.Behavioral.CriticalTimeRatio, 1e-9)
		assert.Equal(t, 2, m.Behavioral.CriticalPositions)
		assert.Equal(t, 3, m.Behavioral.NormalPositions)
	})

	t.Run("defaults to 1.0 when a group is empty", func(t *testing.T) {
		records := []analysis.MoveRecord{
			withTime(withComplexity(validRec(game.ColorWhite, 1, 0), 10, 0.2, complexity.CategoryTrivial), 10),
			withTime(withComplexity(validRec(game.ColorBlack, 1, 0), 10, 0.3, complexity.CategoryTrivial), 12),
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.InDelta(t, 1.0, m.Behavioral.CriticalTimeRatio, 1e-9)
	})

	t.Run("boundary 0.6 counts as normal", func(t *testing.T) {
		records := []analysis.MoveRecord{
			withTime(withComplexity(validRec(game.ColorWhite, 1, 0), 50, 0.6, complexity.CategoryBalanced), 40),
			withTime(withComplexity(validRec(game.ColorBlack, 1, 0), 50, 0.61, complexity.CategoryBalanced), 20),
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.Equal(t, 1, m.Behavioral.CriticalPositions)
		assert.Equal(t, 1, m.Behavioral.NormalPositions)
		assert.InDelta(t, 0.5, m.Behavioral.CriticalTimeRatio, 1e-9)
	})
}

func TestAggregate_PositionConsistency(t *testing.T) {
	t.Run("no bucket with two samples defaults to 0.5", func(t *testing.T) {
		records := []analysis.MoveRecord{
			withComplexity(validRec(game.ColorWhite, 1, 20), 10, 0.2, complexity.CategoryTrivial),
			withComplexity(validRec(game.ColorBlack, 1, 20), 50, 0.5, complexity.CategoryBalanced),
			withComplexity(validRec(game.ColorWhite, 1, 20), 90, 0.8, complexity.CategoryCritical),
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.InDelta(t, 0.5, m.Behavioral.PositionConsistency, 1e-9)
	})

	t.Run("uniform losses score a perfect bucket", func(t *testing.T) {
		records := []analysis.MoveRecord{
			withComplexity(validRec(game.ColorWhite, 1, 20), 10, 0.2, complexity.CategoryTrivial),
			withComplexity(validRec(game.ColorBlack, 1, 20), 10, 0.2, complexity.CategoryTrivial),
			withComplexity(validRec(game.ColorWhite, 1, 20), 10, 0.3, complexity.CategoryTrivial),
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.InDelta(t, 1.0, m.Behavioral.PositionConsistency, 1e-9)
	})

	t.Run("mixes qualifying buckets", func(t *testing.T) {
		records := []analysis.MoveRecord{
			// low bucket: losses 10 and 30, mean 20, std 10, cv 0.5 → 1/1.5
			withComplexity(validRec(game.ColorWhite, 1, 10), 10, 0.2, complexity.CategoryTrivial),
			withComplexity(validRec(game.ColorBlack, 1, 30), 10, 0.2, complexity.CategoryTrivial),
			// high bucket: zero-mean losses, cv 0 → 1.0
			withComplexity(validRec(game.ColorWhite, 1, 0), 200, 0.9, complexity.CategoryChaotic),
			withComplexity(validRec(game.ColorBlack, 1, 0), 200, 0.9, complexity.CategoryChaotic),
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.InDelta(t, (1/1.5+1.0)/2, m.Behavioral.PositionConsistency, 1e-9)
	})
}

func TestAggregate_PhasePerformance(t *testing.T) {
	t.Run("short games report zero for every phase", func(t *testing.T) {
		records := alternating(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)
		require.Len(t, records, 19)

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.Equal(t, metrics.PhasePerformance{}, m.Behavioral.Phases)
	})

	t.Run("forty moves split 10/15/15", func(t *testing.T) {
		records := make([]analysis.MoveRecord, 0, 40)
		for i := 0; i < 10; i++ { // opening: loss 0 → 100
			records = append(records, validRec(game.ColorForPly(i+1), 1, 0))
		}
		for i := 10; i < 25; i++ { // middlegame: loss 100 → 90
			records = append(records, validRec(game.ColorForPly(i+1), 1, 100))
		}
		for i := 25; i < 40; i++ { // endgame: loss 200 → 80
			records = append(records, validRec(game.ColorForPly(i+1), 1, 200))
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.InDelta(t, 100.0, m.Behavioral.Phases.Opening, 1e-9)
		assert.InDelta(t, 90.0, m.Behavioral.Phases.Middlegame, 1e-9)
		assert.InDelta(t, 80.0, m.Behavioral.Phases.Endgame, 1e-9)
	})

	t.Run("twenty moves leave an empty middlegame", func(t *testing.T) {
		records := make([]analysis.MoveRecord, 0, 20)
		for i := 0; i < 20; i++ {
			records = append(records, validRec(game.ColorForPly(i+1), 1, 50))
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		// opening = first 5, endgame = last 15, nothing in between
		assert.InDelta(t, 95.0, m.Behavioral.Phases.Opening, 1e-9)
		assert.Zero(t, m.Behavioral.Phases.Middlegame)
		assert.InDelta(t, 95.0, m.Behavioral.Phases.Endgame, 1e-9)
	})

	t.Run("phase with only invalid records scores zero", func(t *testing.T) {
		records := make([]analysis.MoveRecord, 0, 40)
		for i := 0; i < 10; i++ {
			records = append(records, invalidRec(game.ColorForPly(i+1)))
		}
		for i := 10; i < 40; i++ {
			records = append(records, validRec(game.ColorForPly(i+1), 1, 0))
		}

		m := metrics.Aggregate(records, opening.Deviation{})

		assert.Zero(t, m.Behavioral.Phases.Opening)
		assert.InDelta(t, 100.0, m.Behavioral.Phases.Middlegame, 1e-9)
	})
}

func TestAggregate_OpeningStrength(t *testing.T) {
	cases := []struct {
		name  string
		count int
		pct   float64
		want  metrics.OpeningStrength
	}{
		{"strong needs twelve moves and thirty percent", 12, 30, metrics.StrengthStrong},
		{"deep but narrow is moderate", 12, 29.9, metrics.StrengthModerate},
		{"moderate floor", 8, 20, metrics.StrengthModerate},
		{"four moves is weak regardless of percentage", 4, 5, metrics.StrengthWeak},
		{"seven moves with thin percentage is weak", 7, 19.9, metrics.StrengthWeak},
		{"three moves is very weak", 3, 90, metrics.StrengthVeryWeak},
		{"empty scan is very weak", 0, 0, metrics.StrengthVeryWeak},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev := opening.Deviation{OpeningMoveCount: tc.count, OpeningPercentage: tc.pct}
			m := metrics.Aggregate(nil, dev)

			assert.Equal(t, tc.want, m.Opening.Strength)
			assert.Equal(t, tc.count, m.Opening.OpeningMoveCount, "deviation fields pass through")
		})
	}
}

func TestAggregate_PlayerSummaries(t *testing.T) {
	records := []analysis.MoveRecord{
		withTime(withTheory(validRec(game.ColorWhite, 1, 0), true), 5),
		withTheory(validRec(game.ColorBlack, 1, 10), true),
		withTime(withTheory(validRec(game.ColorWhite, 2, 60), true), 5),
		withTheory(validRec(game.ColorBlack, 0, 150), false),
		withTheory(validRec(game.ColorWhite, 0, 320), false),
		withTheory(invalidRec(game.ColorBlack), false),
	}

	m := metrics.Aggregate(records, opening.Deviation{})

	white := m.White
	assert.Equal(t, game.ColorWhite, white.Color)
	assert.Equal(t, 3, white.MovesCounted)
	assert.InDelta(t, 380.0/3, white.MeanCentipawnLoss, 1e-9)
	assert.InDelta(t, 100-380.0/3/3, white.AccuracyScore, 1e-9)
	assert.Equal(t, 1, white.Blunders, "the 320 loss")
	assert.Zero(t, white.Mistakes)
	assert.Equal(t, 2, white.Matching.TotalAnalyzed, "rank-0 move excluded")
	assert.InDelta(t, 50.0, white.Matching.PV1Percentage, 1e-9)
	assert.InDelta(t, 100.0, white.Matching.PV2Percentage, 1e-9)
	assert.Equal(t, 2, white.Timing.Count)
	assert.InDelta(t, 1.0, white.Timing.Consistency, 1e-9)
	assert.Equal(t, 2, white.OpeningMoveCount, "leading theory moves only")

	black := m.Black
	assert.Equal(t, 2, black.MovesCounted, "invalid record excluded")
	assert.InDelta(t, 80.0, black.MeanCentipawnLoss, 1e-9)
	assert.Equal(t, 1, black.Mistakes, "the 150 loss")
	assert.Equal(t, 1, black.OpeningMoveCount)
}

func TestAggregate_PlayerWithNoRecords(t *testing.T) {
	records := []analysis.MoveRecord{validRec(game.ColorWhite, 1, 0)}

	m := metrics.Aggregate(records, opening.Deviation{})

	assert.Equal(t, game.ColorBlack, m.Black.Color)
	assert.Zero(t, m.Black.MovesCounted)
	assert.Zero(t, m.Black.AccuracyScore)
	assert.Equal(t, metrics.TimingStats{}, m.Black.Timing)
}

func TestAggregate_Empty(t *testing.T) {
	m := metrics.Aggregate(nil, opening.Deviation{})

	assert.Zero(t, m.TotalMoves)
	assert.Zero(t, m.ValidMoves)
	assert.Equal(t, metrics.AccuracySummary{}, m.Accuracy)
	assert.Equal(t, complexity.TrendInsufficientData, m.Complexity.Trend)
	assert.InDelta(t, 1.0, m.Behavioral.CriticalTimeRatio, 1e-9)
	assert.InDelta(t, 0.5, m.Behavioral.PositionConsistency, 1e-9)
	assert.Equal(t, metrics.StrengthVeryWeak, m.Opening.Strength)
	assert.Nil(t, m.Risk)
}

func TestGameMetrics_RiskSignals(t *testing.T) {
	records := []analysis.MoveRecord{
		withTime(withComplexity(validRec(game.ColorWhite, 1, 0), 40, 0.5, complexity.CategoryBalanced), 10),
		withTime(withComplexity(validRec(game.ColorBlack, 1, 20), 40, 0.7, complexity.CategoryBalanced), 10),
		withTime(withComplexity(validRec(game.ColorWhite, 2, 40), 40, 0.6, complexity.CategoryBalanced), 10),
	}

	m := metrics.Aggregate(records, opening.Deviation{})
	sig := m.RiskSignals()

	assert.Equal(t, m.Matching.PV1Percentage, sig.PV1MatchPercentage)
	assert.Equal(t, m.Temporal.Overall.CV, sig.MoveTimeCV)
	assert.Equal(t, m.Accuracy.Score, sig.AccuracyScore)
	assert.Equal(t, m.Complexity.AverageNormalized, sig.AverageComplexity)

	assert.InDelta(t, 100.0/3*2, sig.PV1MatchPercentage, 1e-9)
	assert.Zero(t, sig.MoveTimeCV, "uniform ten-second moves")
	assert.InDelta(t, 98.0, sig.AccuracyScore, 1e-9)
	assert.InDelta(t, 0.6, sig.AverageComplexity, 1e-9)
}
