package complexity

// ─────────────────────────────────────────────────────────────────────────────
// Game-level aggregation
// ─────────────────────────────────────────────────────────────────────────────

// Summary aggregates per-position complexity scores over a whole game.
type Summary struct {
	AveragePCS                 float64              `json:"average_pcs"`
	MaxPCS                     float64              `json:"max_pcs"`
	CategoryCounts             map[Category]int     `json:"category_counts"`
	CategoryPercentages        map[Category]float64 `json:"category_percentages"`
	CriticalChaoticPercentage  float64              `json:"critical_chaotic_percentage"`
	LongestCriticalStreak      int                  `json:"longest_critical_streak"`
	TotalPositions             int                  `json:"total_positions"`
	Variance                   float64              `json:"variance"`
	AverageNormalized          float64              `json:"average_normalized"`
}

// Summarize recomputes the game-level summary wholesale from per-position
// scores.  An empty slice yields a zero Summary, not an error: a game with no
// analyzed positions simply has nothing to say about complexity.
func Summarize(scores []Score) Summary {
	if len(scores) == 0 {
		return Summary{
			CategoryCounts:      map[Category]int{},
			CategoryPercentages: map[Category]float64{},
		}
	}

	n := len(scores)
	counts := make(map[Category]int, 4)
	categories := make([]Category, n)

	var sumPCS, maxPCS, sumNormalized float64
	for i, s := range scores {
		sumPCS += s.PCSScore
		sumNormalized += s.NormalizedComplexity
		if s.PCSScore > maxPCS {
			maxPCS = s.PCSScore
		}
		counts[s.Category]++
		categories[i] = s.Category
	}

	percentages := make(map[Category]float64, len(counts))
	for cat, count := range counts {
		percentages[cat] = float64(count) / float64(n) * 100
	}

	mean := sumPCS / float64(n)

	return Summary{
		AveragePCS:                mean,
		MaxPCS:                    maxPCS,
		CategoryCounts:            counts,
		CategoryPercentages:       percentages,
		CriticalChaoticPercentage: percentages[CategoryCritical] + percentages[CategoryChaotic],
		LongestCriticalStreak:     longestStreak(categories, CategoryCritical, CategoryChaotic),
		TotalPositions:            n,
		Variance:                  populationVariance(scores, mean),
		AverageNormalized:         sumNormalized / float64(n),
	}
}

// longestStreak returns the length of the longest run of consecutive
// positions whose category is one of targets.
func longestStreak(categories []Category, targets ...Category) int {
	inTargets := func(c Category) bool {
		for _, t := range targets {
			if c == t {
				return true
			}
		}
		return false
	}

	longest, current := 0, 0
	for _, c := range categories {
		if inTargets(c) {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// populationVariance is the population (not sample) variance of the PCS
// values.  Fewer than two positions have no spread.
func populationVariance(scores []Score, mean float64) float64 {
	n := len(scores)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		d := s.PCSScore - mean
		sum += d * d
	}
	return sum / float64(n)
}
