// Package metrics aggregates per-ply MoveRecords into game-level statistics:
// accuracy, engine matching, move timing, complexity roll-up, behavioral
// signals, opening strength, and per-player breakdowns.
//
// Aggregate is a pure function recomputed wholesale from the full record
// list; there is no incremental state.  Records marked invalid by the
// assembler are excluded from every denominator, never counted as zeros.
package metrics

import (
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/complexity"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/risk"
)

// Centipawn-loss severity thresholds.
const (
	blunderThreshold    = 300
	mistakeThreshold    = 100
	inaccuracyThreshold = 50
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-summaries
// ─────────────────────────────────────────────────────────────────────────────

// AccuracySummary is the game-level accuracy over all valid records.
type AccuracySummary struct {
	TotalCentipawnLoss int     `json:"total_centipawn_loss"`
	MeanCentipawnLoss  float64 `json:"mean_centipawn_loss"`
	// Score = max(0, 100 − mean/10).  The per-player breakdown uses a /3
	// divisor instead; the two scales were calibrated independently and are
	// kept as separate metrics.
	Score        float64 `json:"score"`
	Blunders     int     `json:"blunders"`
	Mistakes     int     `json:"mistakes"`
	Inaccuracies int     `json:"inaccuracies"`
	MovesCounted int     `json:"moves_counted"`
}

// MatchingSummary counts how often played moves coincide with the engine's
// top lines.  The denominator is the number of valid records whose played
// move matched any candidate (rank > 0); unmatched moves are excluded, not
// counted as misses.
type MatchingSummary struct {
	PV1Matches    int     `json:"pv1_matches"`
	PV2Matches    int     `json:"pv2_matches"`
	PV3Matches    int     `json:"pv3_matches"`
	PV1Percentage float64 `json:"pv1_percentage"`
	PV2Percentage float64 `json:"pv2_percentage"`
	PV3Percentage float64 `json:"pv3_percentage"`
	TotalAnalyzed int     `json:"total_analyzed"`
}

// TimingStats summarize one set of move times.
type TimingStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	// Std is the population standard deviation.
	Std float64 `json:"std"`
	// CV = Std/Mean, 0 when the mean is 0.
	CV float64 `json:"cv"`
	// Consistency = max(0, 1 − CV); uniform timing scores high.
	Consistency float64 `json:"consistency"`
}

// TemporalSummary covers move-time statistics overall and per color.  Only
// moves with a known positive time participate.
type TemporalSummary struct {
	Overall TimingStats `json:"overall"`
	White   TimingStats `json:"white"`
	Black   TimingStats `json:"black"`
}

// ComplexitySummary is the game-level complexity roll-up plus the trend of
// raw PCS over the course of the game.
type ComplexitySummary struct {
	complexity.Summary
	Trend complexity.TrendLabel `json:"trend"`
}

// PhasePerformance is the accuracy-style score per game phase.  All zero
// when the game is too short to split.
type PhasePerformance struct {
	Opening    float64 `json:"opening"`
	Middlegame float64 `json:"middlegame"`
	Endgame    float64 `json:"endgame"`
}

// BehavioralSummary holds the weaker, pattern-level signals.
type BehavioralSummary struct {
	// CriticalTimeRatio compares mean thinking time on complex positions
	// (normalized complexity > 0.6) against the rest; 1.0 when either group
	// is empty.
	CriticalTimeRatio float64 `json:"critical_time_ratio"`
	// PositionConsistency measures how uniformly the player performs within
	// complexity buckets; 0.5 when no bucket has enough samples.
	PositionConsistency float64          `json:"position_consistency"`
	Phases              PhasePerformance `json:"phase_performance"`
	CriticalPositions   int              `json:"critical_positions"`
	NormalPositions     int              `json:"normal_positions"`
}

// OpeningStrength is a coarse verdict on demonstrated opening knowledge.
type OpeningStrength string

const (
	StrengthStrong   OpeningStrength = "strong"
	StrengthModerate OpeningStrength = "moderate"
	StrengthWeak     OpeningStrength = "weak"
	StrengthVeryWeak OpeningStrength = "very_weak"
)

// OpeningSummary re-exposes the deviation scan plus the strength verdict.
type OpeningSummary struct {
	opening.Deviation
	Strength OpeningStrength `json:"strength"`
}

// PlayerSummary is the per-color breakdown.
type PlayerSummary struct {
	Color        game.Color `json:"color"`
	MovesCounted int        `json:"moves_counted"`

	MeanCentipawnLoss float64 `json:"mean_centipawn_loss"`
	// AccuracyScore uses the per-player calibration max(0, 100 − mean/3);
	// the game-level AccuracySummary divides by 10 instead.  Keep both.
	AccuracyScore float64 `json:"accuracy_score"`
	Blunders      int     `json:"blunders"`
	Mistakes      int     `json:"mistakes"`

	Matching MatchingSummary `json:"matching"`
	Timing   TimingStats     `json:"timing"`

	// OpeningMoveCount is the number of this player's leading moves that
	// were still in theory.
	OpeningMoveCount int `json:"opening_move_count"`
}

// ─────────────────────────────────────────────────────────────────────────────
// GameMetrics
// ─────────────────────────────────────────────────────────────────────────────

// GameMetrics is the full aggregate for one analyzed game.
type GameMetrics struct {
	TotalMoves int `json:"total_moves"`
	ValidMoves int `json:"valid_moves"`

	Accuracy   AccuracySummary   `json:"accuracy"`
	Matching   MatchingSummary   `json:"engine_matching"`
	Temporal   TemporalSummary   `json:"temporal"`
	Complexity ComplexitySummary `json:"complexity"`
	Behavioral BehavioralSummary `json:"behavioral"`
	Opening    OpeningSummary    `json:"opening"`

	White PlayerSummary `json:"white"`
	Black PlayerSummary `json:"black"`

	// Risk is attached by the pipeline after running the assessor over
	// RiskSignals; nil until then.
	Risk *risk.Assessment `json:"risk,omitempty"`
}

// RiskSignals extracts the four fusion inputs from the aggregate.
func (m *GameMetrics) RiskSignals() risk.Signals {
	return risk.Signals{
		PV1MatchPercentage: m.Matching.PV1Percentage,
		MoveTimeCV:         m.Temporal.Overall.CV,
		AccuracyScore:      m.Accuracy.Score,
		AverageComplexity:  m.Complexity.AverageNormalized,
	}
}
