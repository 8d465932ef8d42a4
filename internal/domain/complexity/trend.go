package complexity

// ─────────────────────────────────────────────────────────────────────────────
// Complexity trend
// ─────────────────────────────────────────────────────────────────────────────

// TrendLabel describes how complexity evolved over the course of a game.
type TrendLabel string

const (
	TrendIncreasing       TrendLabel = "increasing"
	TrendDecreasing       TrendLabel = "decreasing"
	TrendPeakMiddle       TrendLabel = "peak_middle"
	TrendStable           TrendLabel = "stable"
	TrendVariable         TrendLabel = "variable"
	TrendInsufficientData TrendLabel = "insufficient_data"
)

// trendMinPositions is the smallest game that supports a trend verdict: each
// third needs at least two positions.
const trendMinPositions = 6

// Trend classifies the shape of the raw PCS sequence by splitting it into
// early, middle, and late thirds and comparing their means.  The comparisons
// are evaluated in order; the first match wins.
func Trend(pcs []float64) TrendLabel {
	if len(pcs) < trendMinPositions {
		return TrendInsufficientData
	}

	third := len(pcs) / 3
	early := meanOf(pcs[:third])
	middle := meanOf(pcs[third : 2*third])
	late := meanOf(pcs[2*third:])

	switch {
	case late > middle && middle > early:
		return TrendIncreasing
	case early > middle && middle > late:
		return TrendDecreasing
	case middle > early && middle > late:
		return TrendPeakMiddle
	case late-early < 0.1 && early-late < 0.1:
		return TrendStable
	default:
		return TrendVariable
	}
}

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
