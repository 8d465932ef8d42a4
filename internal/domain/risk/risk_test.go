package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/risk"
)

func TestAssess_NoFactors(t *testing.T) {
	// Nothing fires: pv1 at the threshold (strict >), high CV, modest
	// accuracy, modest complexity.
	got := risk.Assess(risk.Signals{
		PV1MatchPercentage: 40,
		MoveTimeCV:         0.6,
		AccuracyScore:      85,
		AverageComplexity:  0.7,
	})

	assert.InDelta(t, 0.1, got.Score, 1e-9, "baseline floor, never zero")
	assert.Equal(t, risk.LevelVeryLow, got.Level)
	assert.Empty(t, got.Factors)
	assert.Equal(t, "Risk Level: VERY_LOW (Score: 0.10)", got.Summary)
}

func TestAssess_AllLaddersFire(t *testing.T) {
	got := risk.Assess(risk.Signals{
		PV1MatchPercentage: 50,   // moderate_pv1 0.4
		MoveTimeCV:         0.4,  // consistent_timing 0.5
		AccuracyScore:      90,   // high_accuracy 0.6
		AverageComplexity:  0.75, // high_complexity_handling 0.7
	})

	require.Equal(t, []risk.Factor{
		{Name: "moderate_pv1", Weight: 0.4},
		{Name: "consistent_timing", Weight: 0.5},
		{Name: "high_accuracy", Weight: 0.6},
		{Name: "high_complexity_handling", Weight: 0.7},
	}, got.Factors, "factors keep ladder order")

	assert.InDelta(t, 0.55, got.Score, 1e-9)
	assert.Equal(t, risk.LevelModerate, got.Level)
	assert.Equal(t, "Risk Level: MODERATE (Score: 0.55)", got.Summary)
}

func TestAssess_TopRungsWin(t *testing.T) {
	got := risk.Assess(risk.Signals{
		PV1MatchPercentage: 90,
		MoveTimeCV:         0.9,
		AccuracyScore:      96,
		AverageComplexity:  0.2,
	})

	require.Equal(t, []risk.Factor{
		{Name: "very_high_pv1", Weight: 0.9},
		{Name: "very_high_accuracy", Weight: 0.9},
	}, got.Factors, "one factor per ladder, highest rung only")

	assert.InDelta(t, 0.9, got.Score, 1e-9)
	assert.Equal(t, risk.LevelVeryHigh, got.Level)
	assert.Equal(t, "Risk Level: VERY_HIGH (Score: 0.90)", got.Summary)
}

func TestAssess_LadderBoundaries(t *testing.T) {
	factorNames := func(sig risk.Signals) []string {
		got := risk.Assess(sig)
		names := make([]string, len(got.Factors))
		for i, f := range got.Factors {
			names[i] = f.Name
		}
		return names
	}
	quiet := risk.Signals{MoveTimeCV: 1, AccuracyScore: 0, AverageComplexity: 0}

	t.Run("pv1 thresholds are strict", func(t *testing.T) {
		sig := quiet
		sig.PV1MatchPercentage = 80
		assert.Equal(t, []string{"high_pv1"}, factorNames(sig))
		sig.PV1MatchPercentage = 80.1
		assert.Equal(t, []string{"very_high_pv1"}, factorNames(sig))
		sig.PV1MatchPercentage = 60
		assert.Equal(t, []string{"moderate_pv1"}, factorNames(sig))
		sig.PV1MatchPercentage = 40
		assert.Empty(t, factorNames(sig))
	})

	t.Run("timing thresholds are strict", func(t *testing.T) {
		sig := quiet
		sig.MoveTimeCV = 0.3
		assert.Equal(t, []string{"consistent_timing"}, factorNames(sig))
		sig.MoveTimeCV = 0.29
		assert.Equal(t, []string{"very_consistent_timing"}, factorNames(sig))
		sig.MoveTimeCV = 0.5
		assert.Empty(t, factorNames(sig))
	})

	t.Run("accuracy thresholds are strict", func(t *testing.T) {
		sig := quiet
		sig.AccuracyScore = 95
		assert.Equal(t, []string{"high_accuracy"}, factorNames(sig))
		sig.AccuracyScore = 95.1
		assert.Equal(t, []string{"very_high_accuracy"}, factorNames(sig))
	})
}

// A game with no timing data carries CV 0, which fires the top timing rung.
func TestAssess_ZeroCVFiresTopTimingRung(t *testing.T) {
	got := risk.Assess(risk.Signals{MoveTimeCV: 0})

	require.Len(t, got.Factors, 1)
	assert.Equal(t, "very_consistent_timing", got.Factors[0].Name)
	assert.InDelta(t, 0.8, got.Score, 1e-9)
	assert.Equal(t, risk.LevelVeryHigh, got.Level)
}

func TestAssess_Idempotent(t *testing.T) {
	sig := risk.Signals{
		PV1MatchPercentage: 72.5,
		MoveTimeCV:         0.41,
		AccuracyScore:      88.8,
		AverageComplexity:  0.71,
	}

	first := risk.Assess(sig)
	second := risk.Assess(sig)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
	assert.Equal(t, first.Factors, second.Factors)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		score float64
		want  risk.Level
	}{
		{0.0, risk.LevelVeryLow},
		{0.19, risk.LevelVeryLow},
		{0.2, risk.LevelLow},
		{0.39, risk.LevelLow},
		{0.4, risk.LevelModerate},
		{0.6, risk.LevelHigh},
		{0.79, risk.LevelHigh},
		{0.8, risk.LevelVeryHigh},
		{1.0, risk.LevelVeryHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, risk.LevelFor(tc.score), "score %v", tc.score)
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"very_low", "low", "moderate", "high", "very_high"} {
		assert.True(t, risk.ValidLevel(s), s)
	}
	assert.False(t, risk.ValidLevel(""))
	assert.False(t, risk.ValidLevel("extreme"))
	assert.False(t, risk.ValidLevel("HIGH"))
}
