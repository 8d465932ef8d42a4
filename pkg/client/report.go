package client

import (
	"time"

	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// GameReport is the full analysis report attached to a completed
// assessment. The types below mirror the server's wire format field for
// field so SDK users never have to reach into internal packages.
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

	// Players is keyed by color, "white" and "black".
	Players map[string]PlayerReport `json:"players"`
	Moves   []MoveRow               `json:"moves"`
}

// GameHeader summarizes the game under assessment.
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

// RiskBlock is the headline verdict: a score in [0,1] and its level.
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

// PlayerReport carries the per-side breakdown of the same metrics.
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

// MoveRow is the per-ply detail table.
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
