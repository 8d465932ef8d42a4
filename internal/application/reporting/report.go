// Package reporting flattens a completed assessment into the JSON shape the
// web frontend and the CLI consume.  Domain types stay out of the report:
// every field is a plain value with a stable JSON name, so the frontend
// contract survives internal refactors.
package reporting

import (
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/analysis"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/complexity"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/metrics"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Report shape
// ─────────────────────────────────────────────────────────────────────────────

// GameReport is the frontend view of one analyzed game.
type GameReport struct {
	AssessmentID    common.ID `json:"assessment_id"`
	GeneratedAt     time.Time `json:"generated_at"`
	EngineDepth     int       `json:"engine_depth"`
	MultiPV         int       `json:"multipv"`
	AnalysisSeconds float64   `json:"analysis_seconds,omitempty"`

	Game       GameHeader      `json:"game"`
	Risk       RiskBlock       `json:"risk"`
	Accuracy   AccuracyBlock   `json:"accuracy"`
	Matching   MatchingBlock   `json:"engine_matching"`
	Timing     TimingBlock     `json:"timing"`
	Complexity ComplexityBlock `json:"complexity"`
	Opening    OpeningBlock    `json:"opening"`
	Behavior   BehaviorBlock   `json:"behavior"`

	// Players is keyed "white" and "black".
	Players map[string]PlayerReport `json:"players"`
	Moves   []MoveRow               `json:"moves"`
}

// GameHeader carries the PGN metadata of the analyzed game.
type GameHeader struct {
	GameID      common.ID  `json:"game_id"`
	White       PlayerInfo `json:"white"`
	Black       PlayerInfo `json:"black"`
	Event       string     `json:"event,omitempty"`
	Site        string     `json:"site,omitempty"`
	PlayedAt    *time.Time `json:"played_at,omitempty"`
	Result      string     `json:"result"`
	TimeControl string     `json:"time_control,omitempty"`
	ECO         string     `json:"eco,omitempty"`
	Opening     string     `json:"opening,omitempty"`
	TotalPlies  int        `json:"total_plies"`
}

type PlayerInfo struct {
	Name string `json:"name"`
	Elo  int    `json:"elo,omitempty"`
}

type RiskBlock struct {
	Score   float64      `json:"risk_score"`
	Level   string       `json:"risk_level"`
	Factors []RiskFactor `json:"risk_factors,omitempty"`
	Summary string       `json:"summary,omitempty"`
}

type RiskFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

type AccuracyBlock struct {
	Score              float64 `json:"accuracy_score"`
	MeanCentipawnLoss  float64 `json:"avg_centipawn_loss"`
	TotalCentipawnLoss int     `json:"total_centipawn_loss"`
	Blunders           int     `json:"blunder_count"`
	Mistakes           int     `json:"mistake_count"`
	Inaccuracies       int     `json:"inaccuracy_count"`
	MovesCounted       int     `json:"moves_counted"`
}

type MatchingBlock struct {
	BestMoveRate  float64 `json:"best_move_rate"`
	Top2MatchRate float64 `json:"top2_match_rate"`
	Top3MatchRate float64 `json:"top3_match_rate"`
	PV1Matches    int     `json:"pv1_count"`
	PV2Matches    int     `json:"pv2_count"`
	PV3Matches    int     `json:"pv3_count"`
	TotalAnalyzed int     `json:"total_analyzed"`
}

type TimingBlock struct {
	MovesTimed  int     `json:"total_moves_with_time"`
	Mean        float64 `json:"move_time_mean"`
	Std         float64 `json:"move_time_std"`
	CV          float64 `json:"move_time_cv"`
	Consistency float64 `json:"time_consistency_score"`
}

type ComplexityBlock struct {
	AveragePCS                float64        `json:"average_pcs"`
	MaxPCS                    float64        `json:"max_pcs"`
	AverageNormalized         float64        `json:"average_normalized"`
	CategoryCounts            map[string]int `json:"category_counts"`
	CriticalChaoticPercentage float64        `json:"critical_chaotic_percentage"`
	LongestCriticalStreak     int            `json:"longest_critical_streak"`
	Trend                     string         `json:"trend"`
}

type OpeningBlock struct {
	OpeningMoveCount  int     `json:"opening_move_count"`
	DeviationMove     int     `json:"deviation_move,omitempty"`
	OpeningPercentage float64 `json:"opening_percentage"`
	IsMostlyOpening   bool    `json:"is_mostly_opening"`
	Strength          string  `json:"strength"`
}

type BehaviorBlock struct {
	CriticalTimeRatio   float64 `json:"critical_time_ratio"`
	PositionConsistency float64 `json:"position_consistency"`
	OpeningPhaseScore   float64 `json:"opening_phase_score"`
	MiddlegameScore     float64 `json:"middlegame_score"`
	EndgameScore        float64 `json:"endgame_score"`
	CriticalPositions   int     `json:"critical_positions"`
	NormalPositions     int     `json:"normal_positions"`
}

// PlayerReport is the flattened per-player block; the field names follow the
// frontend contract, including the best_move_rate rename of PV1 percentage.
type PlayerReport struct {
	Name              string  `json:"name"`
	Elo               int     `json:"elo,omitempty"`
	AccuracyScore     float64 `json:"accuracy_score"`
	MeanCentipawnLoss float64 `json:"avg_centipawn_loss"`
	Blunders          int     `json:"blunder_count"`
	Mistakes          int     `json:"mistake_count"`
	MovesCounted      int     `json:"moves_counted"`
	BestMoveRate      float64 `json:"best_move_rate"`
	Top2MatchRate     float64 `json:"top2_match_rate"`
	Top3MatchRate     float64 `json:"top3_match_rate"`
	AvgMoveTime       float64 `json:"avg_move_time"`
	MoveTimeCV        float64 `json:"move_time_cv"`
	TimeConsistency   float64 `json:"time_consistency_score"`
	OpeningMoveCount  int     `json:"opening_move_count"`
}

// MoveRow is one line of the per-move table.
type MoveRow struct {
	Ply            int      `json:"ply"`
	MoveNumber     int      `json:"move_number"`
	Player         string   `json:"player"`
	Move           string   `json:"move"`
	MoveTime       *float64 `json:"move_time,omitempty"`
	Evaluation     int      `json:"evaluation"`
	CentipawnLoss  int      `json:"centipawn_loss"`
	MoveRank       int      `json:"move_rank"`
	LegalMoveCount int      `json:"legal_moves_count"`
	Complexity     string   `json:"complexity"`
	InTheory       bool     `json:"in_theory"`
	Valid          bool     `json:"valid"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Builder
// ─────────────────────────────────────────────────────────────────────────────

// BuildGameReport flattens a finished assessment.  Returns nil when the
// assessment carries no metrics, which is the case for runs that never
// completed.
func BuildGameReport(a *assessment.GameAssessment) *GameReport {
	if a == nil || a.Metrics == nil {
		return nil
	}
	m := a.Metrics

	r := &GameReport{
		AssessmentID:    a.ID,
		GeneratedAt:     time.Now().UTC(),
		EngineDepth:     a.EngineDepth,
		MultiPV:         a.MultiPV,
		AnalysisSeconds: a.Elapsed.Seconds(),
		Game:            headerOf(a.Game, m.TotalMoves),
		Accuracy: AccuracyBlock{
			Score:              m.Accuracy.Score,
			MeanCentipawnLoss:  m.Accuracy.MeanCentipawnLoss,
			TotalCentipawnLoss: m.Accuracy.TotalCentipawnLoss,
			Blunders:           m.Accuracy.Blunders,
			Mistakes:           m.Accuracy.Mistakes,
			Inaccuracies:       m.Accuracy.Inaccuracies,
			MovesCounted:       m.Accuracy.MovesCounted,
		},
		Matching: matchingBlock(m.Matching),
		Timing:   timingBlock(m.Temporal.Overall),
		Complexity: ComplexityBlock{
			AveragePCS:                m.Complexity.AveragePCS,
			MaxPCS:                    m.Complexity.MaxPCS,
			AverageNormalized:         m.Complexity.AverageNormalized,
			CategoryCounts:            categoryCounts(m.Complexity.CategoryCounts),
			CriticalChaoticPercentage: m.Complexity.CriticalChaoticPercentage,
			LongestCriticalStreak:     m.Complexity.LongestCriticalStreak,
			Trend:                     string(m.Complexity.Trend),
		},
		Opening: OpeningBlock{
			OpeningMoveCount:  m.Opening.OpeningMoveCount,
			DeviationMove:     m.Opening.DeviationMove,
			OpeningPercentage: m.Opening.OpeningPercentage,
			IsMostlyOpening:   m.Opening.IsMostlyOpening,
			Strength:          string(m.Opening.Strength),
		},
		Behavior: BehaviorBlock{
			CriticalTimeRatio:   m.Behavioral.CriticalTimeRatio,
			PositionConsistency: m.Behavioral.PositionConsistency,
			OpeningPhaseScore:   m.Behavioral.Phases.Opening,
			MiddlegameScore:     m.Behavioral.Phases.Middlegame,
			EndgameScore:        m.Behavioral.Phases.Endgame,
			CriticalPositions:   m.Behavioral.CriticalPositions,
			NormalPositions:     m.Behavioral.NormalPositions,
		},
		Players: map[string]PlayerReport{
			"white": playerReport(m.White, whiteOf(a.Game)),
			"black": playerReport(m.Black, blackOf(a.Game)),
		},
		Moves: moveRows(a.Records),
	}

	if m.Risk != nil {
		factors := make([]RiskFactor, 0, len(m.Risk.Factors))
		for _, f := range m.Risk.Factors {
			factors = append(factors, RiskFactor{Name: f.Name, Weight: f.Weight})
		}
		r.Risk = RiskBlock{
			Score:   m.Risk.Score,
			Level:   string(m.Risk.Level),
			Factors: factors,
			Summary: m.Risk.Summary,
		}
	}
	return r
}

func headerOf(g *game.Game, totalPlies int) GameHeader {
	if g == nil {
		return GameHeader{TotalPlies: totalPlies}
	}
	h := GameHeader{
		GameID:      g.ID,
		White:       PlayerInfo{Name: g.White.Name, Elo: g.White.Elo},
		Black:       PlayerInfo{Name: g.Black.Name, Elo: g.Black.Elo},
		Event:       g.Event,
		Site:        g.Site,
		Result:      g.Result,
		TimeControl: g.TimeControl,
		ECO:         g.ECO,
		Opening:     g.Opening,
		TotalPlies:  totalPlies,
	}
	if !g.PlayedAt.IsZero() {
		played := g.PlayedAt
		h.PlayedAt = &played
	}
	return h
}

func whiteOf(g *game.Game) game.Player {
	if g == nil {
		return game.Player{}
	}
	return g.White
}

func blackOf(g *game.Game) game.Player {
	if g == nil {
		return game.Player{}
	}
	return g.Black
}

func matchingBlock(s metrics.MatchingSummary) MatchingBlock {
	return MatchingBlock{
		BestMoveRate:  s.PV1Percentage,
		Top2MatchRate: s.PV2Percentage,
		Top3MatchRate: s.PV3Percentage,
		PV1Matches:    s.PV1Matches,
		PV2Matches:    s.PV2Matches,
		PV3Matches:    s.PV3Matches,
		TotalAnalyzed: s.TotalAnalyzed,
	}
}

func timingBlock(s metrics.TimingStats) TimingBlock {
	return TimingBlock{
		MovesTimed:  s.Count,
		Mean:        s.Mean,
		Std:         s.Std,
		CV:          s.CV,
		Consistency: s.Consistency,
	}
}

func playerReport(s metrics.PlayerSummary, p game.Player) PlayerReport {
	return PlayerReport{
		Name:              p.Name,
		Elo:               p.Elo,
		AccuracyScore:     s.AccuracyScore,
		MeanCentipawnLoss: s.MeanCentipawnLoss,
		Blunders:          s.Blunders,
		Mistakes:          s.Mistakes,
		MovesCounted:      s.MovesCounted,
		BestMoveRate:      s.Matching.PV1Percentage,
		Top2MatchRate:     s.Matching.PV2Percentage,
		Top3MatchRate:     s.Matching.PV3Percentage,
		AvgMoveTime:       s.Timing.Mean,
		MoveTimeCV:        s.Timing.CV,
		TimeConsistency:   s.Timing.Consistency,
		OpeningMoveCount:  s.OpeningMoveCount,
	}
}

func categoryCounts(counts map[complexity.Category]int) map[string]int {
	out := make(map[string]int, len(counts))
	for c, n := range counts {
		out[string(c)] = n
	}
	return out
}

func moveRows(records []analysis.MoveRecord) []MoveRow {
	rows := make([]MoveRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, MoveRow{
			Ply:            rec.Ply,
			MoveNumber:     rec.MoveNumber,
			Player:         string(rec.Player),
			Move:           rec.SAN,
			MoveTime:       rec.MoveTime,
			Evaluation:     rec.Engine.Evaluation,
			CentipawnLoss:  rec.Engine.CentipawnLoss,
			MoveRank:       rec.Engine.MoveRank,
			LegalMoveCount: rec.LegalMoveCount,
			Complexity:     string(rec.Complexity.Category),
			InTheory:       rec.Opening.InTheory,
			Valid:          rec.Engine.Valid,
		})
	}
	return rows
}
