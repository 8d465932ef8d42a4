package metrics

import (
	"math"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/analysis"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/complexity"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
)

// Behavioral thresholds.
const (
	criticalComplexity = 0.6
	lowComplexity      = 0.4
	highComplexity     = 0.7
	minPhaseMoves      = 20
	phaseWindow        = 15
)

// Aggregate computes the full GameMetrics from the per-ply records and the
// opening deviation scan.  The Risk field is left nil; the pipeline attaches
// it after running the assessor.
func Aggregate(records []analysis.MoveRecord, dev opening.Deviation) GameMetrics {
	valid := validRecords(records)

	m := GameMetrics{
		TotalMoves: len(records),
		ValidMoves: len(valid),
		Accuracy:   accuracySummary(valid),
		Matching:   matchingSummary(valid),
		Temporal: TemporalSummary{
			Overall: timingStats(timedMoves(records, nil)),
			White:   timingStats(timedMoves(records, colorPtr(game.ColorWhite))),
			Black:   timingStats(timedMoves(records, colorPtr(game.ColorBlack))),
		},
		Complexity: complexitySummary(valid),
		Behavioral: behavioralSummary(records, valid),
		Opening: OpeningSummary{
			Deviation: dev,
			Strength:  strengthOf(dev.OpeningMoveCount, dev.OpeningPercentage),
		},
		White: playerSummary(records, game.ColorWhite),
		Black: playerSummary(records, game.ColorBlack),
	}
	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Accuracy
// ─────────────────────────────────────────────────────────────────────────────

func accuracySummary(valid []analysis.MoveRecord) AccuracySummary {
	if len(valid) == 0 {
		return AccuracySummary{}
	}

	var total int
	var blunders, mistakes, inaccuracies int
	for _, r := range valid {
		loss := r.Engine.CentipawnLoss
		total += loss
		switch {
		case loss >= blunderThreshold:
			blunders++
		case loss >= mistakeThreshold:
			mistakes++
		case loss >= inaccuracyThreshold:
			inaccuracies++
		}
	}

	mean := float64(total) / float64(len(valid))
	return AccuracySummary{
		TotalCentipawnLoss: total,
		MeanCentipawnLoss:  mean,
		Score:              math.Max(0, 100-mean/10),
		Blunders:           blunders,
		Mistakes:           mistakes,
		Inaccuracies:       inaccuracies,
		MovesCounted:       len(valid),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine matching
// ─────────────────────────────────────────────────────────────────────────────

func matchingSummary(valid []analysis.MoveRecord) MatchingSummary {
	var s MatchingSummary
	for _, r := range valid {
		rank := r.Engine.MoveRank
		if rank <= 0 {
			continue
		}
		s.TotalAnalyzed++
		if rank == 1 {
			s.PV1Matches++
		}
		if rank <= 2 {
			s.PV2Matches++
		}
		if rank <= 3 {
			s.PV3Matches++
		}
	}
	if s.TotalAnalyzed == 0 {
		return s
	}
	n := float64(s.TotalAnalyzed)
	s.PV1Percentage = float64(s.PV1Matches) / n * 100
	s.PV2Percentage = float64(s.PV2Matches) / n * 100
	s.PV3Percentage = float64(s.PV3Matches) / n * 100
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Temporal
// ─────────────────────────────────────────────────────────────────────────────

// timedMoves collects the move times that are present and positive,
// optionally restricted to one color.
func timedMoves(records []analysis.MoveRecord, color *game.Color) []float64 {
	times := make([]float64, 0, len(records))
	for _, r := range records {
		if color != nil && r.Player != *color {
			continue
		}
		if r.MoveTime != nil && *r.MoveTime > 0 {
			times = append(times, *r.MoveTime)
		}
	}
	return times
}

func timingStats(times []float64) TimingStats {
	if len(times) == 0 {
		return TimingStats{}
	}

	mean := meanOf(times)
	std := stdOf(times, mean)
	cv := 0.0
	if mean > 0 {
		cv = std / mean
	}

	return TimingStats{
		Count:       len(times),
		Mean:        mean,
		Std:         std,
		CV:          cv,
		Consistency: math.Max(0, 1-cv),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Complexity
// ─────────────────────────────────────────────────────────────────────────────

func complexitySummary(valid []analysis.MoveRecord) ComplexitySummary {
	scores := make([]complexity.Score, len(valid))
	pcs := make([]float64, len(valid))
	for i, r := range valid {
		scores[i] = r.Complexity
		pcs[i] = r.Complexity.PCSScore
	}
	return ComplexitySummary{
		Summary: complexity.Summarize(scores),
		Trend:   complexity.Trend(pcs),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Behavioral
// ─────────────────────────────────────────────────────────────────────────────

func behavioralSummary(records, valid []analysis.MoveRecord) BehavioralSummary {
	critical, normal := splitByComplexity(records)
	return BehavioralSummary{
		CriticalTimeRatio:   criticalTimeRatio(critical, normal),
		PositionConsistency: positionConsistency(valid),
		Phases:              phasePerformance(records),
		CriticalPositions:   len(critical),
		NormalPositions:     len(normal),
	}
}

// splitByComplexity partitions the timed moves by whether their position
// crossed the critical-complexity bar.
func splitByComplexity(records []analysis.MoveRecord) (critical, normal []float64) {
	for _, r := range records {
		if r.MoveTime == nil || *r.MoveTime <= 0 {
			continue
		}
		if r.Complexity.NormalizedComplexity > criticalComplexity {
			critical = append(critical, *r.MoveTime)
		} else {
			normal = append(normal, *r.MoveTime)
		}
	}
	return critical, normal
}

func criticalTimeRatio(critical, normal []float64) float64 {
	if len(critical) == 0 || len(normal) == 0 {
		return 1.0
	}
	normalMean := meanOf(normal)
	if normalMean <= 0 {
		return 1.0
	}
	return meanOf(critical) / normalMean
}

// positionConsistency buckets valid records by normalized complexity and
// scores each bucket with at least two samples by 1/(1+CV) of its centipawn
// losses.  The result is the mean over qualifying buckets, 0.5 when none
// qualify.
func positionConsistency(valid []analysis.MoveRecord) float64 {
	var low, medium, high []float64
	for _, r := range valid {
		loss := float64(r.Engine.CentipawnLoss)
		switch {
		case r.Complexity.NormalizedComplexity < lowComplexity:
			low = append(low, loss)
		case r.Complexity.NormalizedComplexity < highComplexity:
			medium = append(medium, loss)
		default:
			high = append(high, loss)
		}
	}

	var scores []float64
	for _, bucket := range [][]float64{low, medium, high} {
		if len(bucket) < 2 {
			continue
		}
		mean := meanOf(bucket)
		cv := 0.0
		if mean > 0 {
			cv = stdOf(bucket, mean) / mean
		}
		scores = append(scores, 1/(1+cv))
	}

	if len(scores) == 0 {
		return 0.5
	}
	return meanOf(scores)
}

// phasePerformance splits the game into opening, middlegame, and endgame
// slices and scores each with the /10 accuracy calibration over its valid
// records.  The opening is the first min(15, n/4) moves; the endgame is the
// last 15 moves or the last quarter, whichever is larger.  Games under 20
// moves report zero for all phases.
func phasePerformance(records []analysis.MoveRecord) PhasePerformance {
	n := len(records)
	if n < minPhaseMoves {
		return PhasePerformance{}
	}

	openingEnd := n / 4
	if openingEnd > phaseWindow {
		openingEnd = phaseWindow
	}
	endgameLen := n / 4
	if endgameLen < phaseWindow {
		endgameLen = phaseWindow
	}

	return PhasePerformance{
		Opening:    phaseScore(records[:openingEnd]),
		Middlegame: phaseScore(records[openingEnd : n-endgameLen]),
		Endgame:    phaseScore(records[n-endgameLen:]),
	}
}

func phaseScore(phase []analysis.MoveRecord) float64 {
	var losses []float64
	for _, r := range phase {
		if r.Engine.Valid {
			losses = append(losses, float64(r.Engine.CentipawnLoss))
		}
	}
	if len(losses) == 0 {
		return 0
	}
	return math.Max(0, 100-meanOf(losses)/10)
}

// ─────────────────────────────────────────────────────────────────────────────
// Opening strength
// ─────────────────────────────────────────────────────────────────────────────

func strengthOf(count int, pct float64) OpeningStrength {
	switch {
	case count >= 12 && pct >= 30:
		return StrengthStrong
	case count >= 8 && pct >= 20:
		return StrengthModerate
	case count >= 4:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-player breakdown
// ─────────────────────────────────────────────────────────────────────────────

func playerSummary(records []analysis.MoveRecord, color game.Color) PlayerSummary {
	s := PlayerSummary{Color: color}

	var own, valid []analysis.MoveRecord
	for _, r := range records {
		if r.Player != color {
			continue
		}
		own = append(own, r)
		if r.Engine.Valid {
			valid = append(valid, r)
		}
	}

	if len(valid) > 0 {
		var total int
		for _, r := range valid {
			loss := r.Engine.CentipawnLoss
			total += loss
			switch {
			case loss >= blunderThreshold:
				s.Blunders++
			case loss >= mistakeThreshold:
				s.Mistakes++
			}
		}
		s.MovesCounted = len(valid)
		s.MeanCentipawnLoss = float64(total) / float64(len(valid))
		s.AccuracyScore = math.Max(0, 100-s.MeanCentipawnLoss/3)
		s.Matching = matchingSummary(valid)
	}

	s.Timing = timingStats(timedMoves(own, nil))

	// Leading theory moves only: stop at the first deviation.
	for _, r := range own {
		if !r.Opening.InTheory {
			break
		}
		s.OpeningMoveCount++
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared helpers
// ─────────────────────────────────────────────────────────────────────────────

func validRecords(records []analysis.MoveRecord) []analysis.MoveRecord {
	valid := make([]analysis.MoveRecord, 0, len(records))
	for _, r := range records {
		if r.Engine.Valid {
			valid = append(valid, r)
		}
	}
	return valid
}

func colorPtr(c game.Color) *game.Color { return &c }

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdOf is the population standard deviation around a precomputed mean.
func stdOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
