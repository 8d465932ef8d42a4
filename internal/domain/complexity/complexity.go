// Package complexity implements positional-complexity scoring for single chess
// positions and game-level aggregation of those scores.  The central quantity
// is the Positional Complexity Score (PCS): the evaluation spread across the
// engine's top candidate moves, measured in centipawns.  A position where the
// best move towers over the alternatives is trivial; one where several moves
// evaluate alike demands a real decision.
//
// Everything in this package is a pure function of its inputs: no engine, no
// board library, no I/O.  Board-dependent inputs arrive pre-extracted as
// PositionFeatures (see internal/infrastructure/chess) and engine lines as
// evaluation.Candidate values.
package complexity

import (
	"fmt"
	"math"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/evaluation"
)

// ─────────────────────────────────────────────────────────────────────────────
// Categories and constants
// ─────────────────────────────────────────────────────────────────────────────

// Category buckets a PCS value into a coarse difficulty class.
type Category string

const (
	CategoryTrivial  Category = "trivial"
	CategoryBalanced Category = "balanced"
	CategoryCritical Category = "critical"
	CategoryChaotic  Category = "chaotic"
)

// PCS category thresholds in centipawns, inclusive at the lower bound.
const (
	thresholdBalanced = 30.0
	thresholdCritical = 80.0
	thresholdChaotic  = 150.0
)

// Component weights for the normalized complexity blend.
const (
	weightPCS       = 0.60
	weightTactical  = 0.20
	weightEntropy   = 0.15
	weightStrategic = 0.05
)

// mateClamp is the centipawn magnitude a mate line is clamped to before the
// PCS formula.  Using the raw ±10000 sentinel would swamp the spread between
// ordinary candidates.
const mateClamp = 1000

// pcsNormalizationCap caps PCS at 200 centipawns when blending it into the
// normalized score.
const pcsNormalizationCap = 200.0

// ─────────────────────────────────────────────────────────────────────────────
// Inputs
// ─────────────────────────────────────────────────────────────────────────────

// PositionFeatures are the board-derived inputs to the scorer.  Each legal
// move is classified into exactly one of the five buckets with priority
// capture > check > promotion > castling > quiet, so the bucket counts sum to
// LegalMoveCount.
type PositionFeatures struct {
	LegalMoveCount int
	Captures       int
	Checks         int
	Promotions     int
	Castling       int
	Quiet          int

	PawnCount        int
	KingOnCenterFile bool
	WhiteMaterial    int
	BlackMaterial    int
}

// ─────────────────────────────────────────────────────────────────────────────
// Outputs
// ─────────────────────────────────────────────────────────────────────────────

// Components breaks the normalized complexity into its weighted inputs.
type Components struct {
	PCSScore         float64 `json:"pcs_score"`
	TacticalDensity  float64 `json:"tactical_density"`
	ChoiceEntropy    float64 `json:"choice_entropy"`
	StrategicFactors float64 `json:"strategic_factors"`
}

// Score is the full complexity result for one position.
type Score struct {
	// PCSScore is the raw Positional Complexity Score in centipawns, ≥ 0.
	PCSScore float64 `json:"pcs_score"`
	// Category is the difficulty class derived from PCSScore.
	Category Category `json:"category"`
	// NormalizedComplexity blends PCS with the tactical, entropy, and
	// strategic components onto [0,1].
	NormalizedComplexity float64 `json:"normalized_complexity"`
	// DecisionDifficulty estimates the cognitive load of the position on [0,1].
	DecisionDifficulty float64 `json:"decision_difficulty"`
	// Components preserves the individual inputs to NormalizedComplexity.
	Components Components `json:"components"`
	// LegalMoveCount is carried through for downstream reporting.
	LegalMoveCount int `json:"legal_move_count"`
	// Interpretation is a human-readable summary of the category.
	Interpretation string `json:"interpretation"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Calculator
// ─────────────────────────────────────────────────────────────────────────────

// Calculator scores positions.  It is stateless and safe for concurrent use;
// the struct exists so callers can inject it as a dependency.
type Calculator struct{}

// NewCalculator returns a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Score computes the complexity of one position.  It never fails: when the
// input is insufficient (fewer than two candidates, or no legal moves) it
// returns DefaultScore(), whose non-zero normalized value keeps downstream
// averages from being biased toward "no risk".
func (c *Calculator) Score(features PositionFeatures, candidates []evaluation.Candidate) Score {
	if len(candidates) < 2 || features.LegalMoveCount == 0 {
		return DefaultScore()
	}

	pcs := pcsScore(candidates)
	td := tacticalDensity(features)
	ce := choiceEntropy(features)
	sf := strategicFactors(features)

	category := categoryFor(pcs)

	return Score{
		PCSScore:             pcs,
		Category:             category,
		NormalizedComplexity: normalizedComplexity(pcs, td, ce, sf),
		DecisionDifficulty:   decisionDifficulty(pcs, features.LegalMoveCount),
		Components: Components{
			PCSScore:         pcs,
			TacticalDensity:  td,
			ChoiceEntropy:    ce,
			StrategicFactors: sf,
		},
		LegalMoveCount: features.LegalMoveCount,
		Interpretation: interpretationFor(category, pcs),
	}
}

// DefaultScore is the documented fallback for positions that cannot be
// scored.  NormalizedComplexity and DecisionDifficulty sit at 0.3 rather than
// zero deliberately; see Score.
func DefaultScore() Score {
	return Score{
		PCSScore:             0,
		Category:             CategoryTrivial,
		NormalizedComplexity: 0.3,
		DecisionDifficulty:   0.3,
		Components:           Components{},
		LegalMoveCount:       0,
		Interpretation:       "Unable to calculate complexity",
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Component computations
// ─────────────────────────────────────────────────────────────────────────────

// pcsScore applies the PCS formula to the rank-ordered top three candidate
// evaluations e1 ≥ … (mover's perspective):
//
//	pcs = max(0, e1−e2) + max(0, e1−e3)/2
//
// Mate lines are clamped to ±mateClamp before the formula.  Fewer than three
// candidates pad by repeating the last value, which zeroes the missing term.
func pcsScore(candidates []evaluation.Candidate) float64 {
	scores := make([]float64, 0, 3)
	for _, cand := range candidates {
		if len(scores) == 3 {
			break
		}
		s := float64(cand.Score)
		if cand.IsMate {
			if s > 0 {
				s = mateClamp
			} else {
				s = -mateClamp
			}
		}
		scores = append(scores, s)
	}
	for len(scores) < 3 {
		scores = append(scores, scores[len(scores)-1])
	}

	e1, e2, e3 := scores[0], scores[1], scores[2]
	pcs := math.Max(0, e1-e2) + math.Max(0, e1-e3)/2
	return pcs
}

func categoryFor(pcs float64) Category {
	switch {
	case pcs < thresholdBalanced:
		return CategoryTrivial
	case pcs < thresholdCritical:
		return CategoryBalanced
	case pcs < thresholdChaotic:
		return CategoryCritical
	default:
		return CategoryChaotic
	}
}

// tacticalDensity is the share of forcing moves (captures, checks,
// promotions) among all legal moves, scaled by 1.5 and clamped to [0,1].
func tacticalDensity(f PositionFeatures) float64 {
	if f.LegalMoveCount == 0 {
		return 0
	}
	tactical := float64(f.Captures + f.Checks + f.Promotions)
	return clamp01(tactical / float64(f.LegalMoveCount) * 1.5)
}

// choiceEntropy is the Shannon entropy of the five-bucket move-type
// distribution, normalized by log2(5) so a perfectly even spread maps to 1.
func choiceEntropy(f PositionFeatures) float64 {
	if f.LegalMoveCount <= 1 {
		return 0
	}
	total := float64(f.LegalMoveCount)
	buckets := []int{f.Captures, f.Checks, f.Promotions, f.Castling, f.Quiet}

	entropy := 0.0
	for _, n := range buckets {
		if n == 0 {
			continue
		}
		p := float64(n) / total
		entropy -= p * math.Log2(p)
	}
	return clamp01(entropy / math.Log2(5))
}

// strategicFactors blends pawn-structure density, king centralization, and
// material imbalance into a [0,1] factor.
func strategicFactors(f PositionFeatures) float64 {
	pawn := math.Min(1, float64(f.PawnCount)/16) * 0.5

	king := 0.0
	if f.KingOnCenterFile {
		king = 0.5
	}

	material := 0.0
	if total := f.WhiteMaterial + f.BlackMaterial; total > 0 {
		imbalance := math.Abs(float64(f.WhiteMaterial - f.BlackMaterial))
		material = math.Min(1, imbalance/(float64(total)*0.2))
	}

	return math.Min(1, 0.4*pawn+0.3*king+0.3*material)
}

func normalizedComplexity(pcs, td, ce, sf float64) float64 {
	normalizedPCS := math.Min(1, pcs/pcsNormalizationCap)
	return clamp01(weightPCS*normalizedPCS + weightTactical*td + weightEntropy*ce + weightStrategic*sf)
}

// decisionDifficulty estimates cognitive load: mostly the PCS spread, with a
// small contribution from the sheer number of legal options.
func decisionDifficulty(pcs float64, legalMoves int) float64 {
	base := math.Min(1, pcs/150)
	breadth := math.Min(1, float64(legalMoves)/40)
	return clamp01(0.8*base + 0.2*breadth)
}

func interpretationFor(category Category, pcs float64) string {
	switch category {
	case CategoryTrivial:
		return fmt.Sprintf("Clear best move (PCS: %.1f). Low decision difficulty.", pcs)
	case CategoryBalanced:
		return fmt.Sprintf("Some choice available (PCS: %.1f). Moderate complexity.", pcs)
	case CategoryCritical:
		return fmt.Sprintf("Difficult decision required (PCS: %.1f). High complexity.", pcs)
	case CategoryChaotic:
		return fmt.Sprintf("Many equally good options (PCS: %.1f). Very high complexity.", pcs)
	default:
		return fmt.Sprintf("Unknown complexity (PCS: %.1f)", pcs)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
