// Package risk fuses game-level analysis signals into a final assessment.
//
// The fusion is a transparent linear rule set, not a trained classifier:
// four independent ladders each contribute at most one weighted factor, and
// the score is the plain mean of the fired weights.  Every flagged game can
// therefore cite exactly which thresholds fired and why.
package risk

import (
	"fmt"
	"strings"
)

// Level buckets a risk score.
type Level string

const (
	LevelVeryLow  Level = "very_low"
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// baselineScore is the floor when no ladder fires.  Never zero: absence of
// signals is baseline uncertainty, not proof of innocence.
const baselineScore = 0.1

// Factor is one fired rule with its weight.
type Factor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Signals are the four inputs to the fusion, extracted from GameMetrics.
type Signals struct {
	// PV1MatchPercentage is the share of matched moves that equal the
	// engine's first choice.
	PV1MatchPercentage float64 `json:"pv1_match_percentage"`
	// MoveTimeCV is the coefficient of variation of move times.  A game
	// with no timing data carries CV 0 and fires the top timing rung; that
	// is long-standing scoring behavior and must not be "fixed" here.
	MoveTimeCV float64 `json:"move_time_cv"`
	// AccuracyScore is the game-level accuracy on the /10 calibration.
	AccuracyScore float64 `json:"accuracy_score"`
	// AverageComplexity is the mean normalized complexity over the game.
	AverageComplexity float64 `json:"average_complexity"`
}

// Assessment is the fusion result.
type Assessment struct {
	// Score is in [0,1]; at least baselineScore.
	Score float64 `json:"risk_score"`
	Level Level   `json:"risk_level"`
	// Factors lists the fired rules in ladder order.
	Factors []Factor `json:"risk_factors"`
	Summary string   `json:"summary"`
}

// Assess runs the four ladders over the signals.  Within a ladder the
// highest rung that matches wins; a ladder that matches nothing contributes
// no factor.  Deterministic and idempotent.
func Assess(sig Signals) Assessment {
	factors := make([]Factor, 0, 4)

	switch {
	case sig.PV1MatchPercentage > 80:
		factors = append(factors, Factor{Name: "very_high_pv1", Weight: 0.9})
	case sig.PV1MatchPercentage > 60:
		factors = append(factors, Factor{Name: "high_pv1", Weight: 0.7})
	case sig.PV1MatchPercentage > 40:
		factors = append(factors, Factor{Name: "moderate_pv1", Weight: 0.4})
	}

	switch {
	case sig.MoveTimeCV < 0.3:
		factors = append(factors, Factor{Name: "very_consistent_timing", Weight: 0.8})
	case sig.MoveTimeCV < 0.5:
		factors = append(factors, Factor{Name: "consistent_timing", Weight: 0.5})
	}

	switch {
	case sig.AccuracyScore > 95:
		factors = append(factors, Factor{Name: "very_high_accuracy", Weight: 0.9})
	case sig.AccuracyScore > 85:
		factors = append(factors, Factor{Name: "high_accuracy", Weight: 0.6})
	}

	if sig.AverageComplexity > 0.7 {
		factors = append(factors, Factor{Name: "high_complexity_handling", Weight: 0.7})
	}

	score := baselineScore
	if len(factors) > 0 {
		var sum float64
		for _, f := range factors {
			sum += f.Weight
		}
		score = sum / float64(len(factors))
	}

	level := LevelFor(score)
	return Assessment{
		Score:   score,
		Level:   level,
		Factors: factors,
		Summary: fmt.Sprintf("Risk Level: %s (Score: %.2f)", strings.ToUpper(string(level)), score),
	}
}

// LevelFor maps a score onto its level via the fixed thresholds.
func LevelFor(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelVeryHigh
	case score >= 0.6:
		return LevelHigh
	case score >= 0.4:
		return LevelModerate
	case score >= 0.2:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// ValidLevel reports whether s names a known risk level, used to validate
// filter parameters at the API boundary.
func ValidLevel(s string) bool {
	switch Level(s) {
	case LevelVeryLow, LevelLow, LevelModerate, LevelHigh, LevelVeryHigh:
		return true
	default:
		return false
	}
}
