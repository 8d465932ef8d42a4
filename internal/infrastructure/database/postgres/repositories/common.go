// Package repositories provides the PostgreSQL-backed persistence layer for
// ingested games and their analysis assessments.
package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/analysis"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/game"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/metrics"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// DB is the query surface the repositories need.  Both *pgxpool.Pool and
// pgx.Tx satisfy it, so a repository rebased with WithTx joins an enclosing
// transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ─────────────────────────────────────────────────────────────────────────────
// Game row
// ─────────────────────────────────────────────────────────────────────────────

// GameRecord is the persisted projection of one ingested game.  The move
// list itself is not stored relationally; the source PGN lives in object
// storage under PGNObjectKey and the per-ply analysis in the assessment row.
type GameRecord struct {
	ID           common.ID   `json:"id"`
	White        game.Player `json:"white"`
	Black        game.Player `json:"black"`
	Event        string      `json:"event,omitempty"`
	Site         string      `json:"site,omitempty"`
	PlayedAt     time.Time   `json:"played_at,omitempty"`
	Result       string      `json:"result"`
	TimeControl  string      `json:"time_control,omitempty"`
	ECO          string      `json:"eco,omitempty"`
	Opening      string      `json:"opening,omitempty"`
	MoveCount    int         `json:"move_count"`
	PGNObjectKey string      `json:"pgn_object_key,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewGameRecord projects a parsed game onto its persistence row.
func NewGameRecord(g *game.Game, pgnObjectKey string) *GameRecord {
	return &GameRecord{
		ID:           g.ID,
		White:        g.White,
		Black:        g.Black,
		Event:        g.Event,
		Site:         g.Site,
		PlayedAt:     g.PlayedAt,
		Result:       g.Result,
		TimeControl:  g.TimeControl,
		ECO:          g.ECO,
		Opening:      g.Opening,
		MoveCount:    g.MoveCount(),
		PGNObjectKey: pgnObjectKey,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Assessment row
// ─────────────────────────────────────────────────────────────────────────────

// AssessmentStatus tracks an analysis run through its lifecycle.
type AssessmentStatus string

const (
	StatusPending   AssessmentStatus = "pending"
	StatusRunning   AssessmentStatus = "running"
	StatusCompleted AssessmentStatus = "completed"
	StatusFailed    AssessmentStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s AssessmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidStatus reports whether s names a known assessment status.
func ValidStatus(s string) bool {
	switch AssessmentStatus(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// AssessmentRecord is the persisted state of one analysis run.  RiskScore,
// RiskLevel, Metrics, Records and CompletedAt stay empty until the run
// completes; Error is set only on failure.
type AssessmentRecord struct {
	ID          common.ID             `json:"id"`
	GameID      common.ID             `json:"game_id"`
	EngineDepth int                   `json:"engine_depth"`
	MultiPV     int                   `json:"multipv"`
	Status      AssessmentStatus      `json:"status"`
	RiskScore   *float64              `json:"risk_score,omitempty"`
	RiskLevel   *string               `json:"risk_level,omitempty"`
	Metrics     *metrics.GameMetrics  `json:"metrics,omitempty"`
	Records     []analysis.MoveRecord `json:"records,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
