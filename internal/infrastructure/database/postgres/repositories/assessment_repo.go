package repositories

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/analysis"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/metrics"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/risk"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

const assessmentColumns = `id, game_id, engine_depth, multipv, status,
	risk_score, risk_level, metrics, records, error, created_at, completed_at`

// AssessmentRepository is the PostgreSQL implementation of assessment
// persistence.
type AssessmentRepository struct {
	db     DB
	logger logging.Logger
}

// NewAssessmentRepository constructs a ready-to-use AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool, log logging.Logger) *AssessmentRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AssessmentRepository{db: pool, logger: log.Named("assessment-repo")}
}

// WithTx returns a copy of the repository that runs its statements on tx.
func (r *AssessmentRepository) WithTx(tx pgx.Tx) *AssessmentRepository {
	return &AssessmentRepository{db: tx, logger: r.logger}
}

// ListFilter narrows List results.  Zero values mean "no filter".
type ListFilter struct {
	RiskLevel string
	Status    AssessmentStatus
	Page      common.Pagination
}

// Create inserts the assessment row.  A missing ID, Status or CreatedAt is
// filled in; result fields may be pre-populated for synchronous runs.
func (r *AssessmentRepository) Create(ctx context.Context, rec *AssessmentRecord) error {
	if rec.ID == "" {
		rec.ID = common.NewID()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	metricsJSON, recordsJSON, err := marshalResult(rec.Metrics, rec.Records)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO assessments (`+assessmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(rec.ID), string(rec.GameID),
		rec.EngineDepth, rec.MultiPV, string(rec.Status),
		rec.RiskScore, rec.RiskLevel, metricsJSON, recordsJSON,
		rec.Error, rec.CreatedAt, rec.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Insert assessment failed",
			logging.String("assessment_id", string(rec.ID)),
			logging.String("game_id", string(rec.GameID)),
			logging.Err(err))
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "inserting assessment")
	}
	return nil
}

// GetByID loads one assessment row.
func (r *AssessmentRepository) GetByID(ctx context.Context, id common.ID) (*AssessmentRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, string(id))
	return r.scanAssessment(row)
}

// List returns one page of assessments, newest first, honoring the filter.
func (r *AssessmentRepository) List(ctx context.Context, f ListFilter) ([]*AssessmentRecord, int64, error) {
	if err := f.Page.Validate(); err != nil {
		return nil, 0, appErrors.InvalidParam(err.Error())
	}
	if f.RiskLevel != "" && !risk.ValidLevel(f.RiskLevel) {
		return nil, 0, appErrors.InvalidParam("unknown risk level " + f.RiskLevel)
	}
	if f.Status != "" && !ValidStatus(string(f.Status)) {
		return nil, 0, appErrors.InvalidParam("unknown assessment status " + string(f.Status))
	}

	var conditions []string
	var args []interface{}
	if f.RiskLevel != "" {
		args = append(args, f.RiskLevel)
		conditions = append(conditions, "risk_level = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM assessments`+where, args...).Scan(&total); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "counting assessments")
	}

	args = append(args, f.Page.PageSize, f.Page.Offset())
	rows, err := r.db.Query(ctx, `
		SELECT `+assessmentColumns+` FROM assessments`+where+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "listing assessments")
	}
	defer rows.Close()

	recs, err := r.scanAssessments(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// ListByGame returns every assessment of one game, newest first.
func (r *AssessmentRepository) ListByGame(ctx context.Context, gameID common.ID) ([]*AssessmentRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+assessmentColumns+` FROM assessments
		WHERE game_id = $1
		ORDER BY created_at DESC`, string(gameID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "listing assessments by game")
	}
	defer rows.Close()

	return r.scanAssessments(rows)
}

// UpdateStatus transitions the assessment's status.
func (r *AssessmentRepository) UpdateStatus(ctx context.Context, id common.ID, status AssessmentStatus) error {
	if !ValidStatus(string(status)) {
		return appErrors.InvalidParam("unknown assessment status " + string(status))
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE assessments SET status = $2 WHERE id = $1`, string(id), string(status))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "updating assessment status")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeAssessmentNotFound, "assessment not found")
	}
	return nil
}

// Complete stores the finished run: metrics, per-ply records and the risk
// verdict carried inside m.Risk.
func (r *AssessmentRepository) Complete(ctx context.Context, id common.ID, m *metrics.GameMetrics, records []analysis.MoveRecord) error {
	if m == nil || m.Risk == nil {
		return appErrors.InvalidParam("completed assessment requires metrics with a risk verdict")
	}

	metricsJSON, recordsJSON, err := marshalResult(m, records)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE assessments
		SET status = $2, risk_score = $3, risk_level = $4,
		    metrics = $5, records = $6, completed_at = NOW()
		WHERE id = $1`,
		string(id), string(StatusCompleted),
		m.Risk.Score, string(m.Risk.Level), metricsJSON, recordsJSON,
	)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "completing assessment")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeAssessmentNotFound, "assessment not found")
	}
	return nil
}

// MarkFailed records a failed run with its error message.
func (r *AssessmentRepository) MarkFailed(ctx context.Context, id common.ID, message string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE assessments
		SET status = $2, error = $3, completed_at = NOW()
		WHERE id = $1`,
		string(id), string(StatusFailed), message,
	)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "marking assessment failed")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeAssessmentNotFound, "assessment not found")
	}
	return nil
}

func (r *AssessmentRepository) scanAssessment(row pgx.Row) (*AssessmentRecord, error) {
	var rec AssessmentRecord
	var metricsJSON, recordsJSON []byte

	err := row.Scan(
		&rec.ID, &rec.GameID,
		&rec.EngineDepth, &rec.MultiPV, &rec.Status,
		&rec.RiskScore, &rec.RiskLevel, &metricsJSON, &recordsJSON,
		&rec.Error, &rec.CreatedAt, &rec.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.New(appErrors.ErrCodeAssessmentNotFound, "assessment not found")
		}
		r.logger.Error("Scan assessment row failed", logging.Err(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "scanning assessment row")
	}

	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "decoding stored metrics")
		}
	}
	if len(recordsJSON) > 0 {
		if err := json.Unmarshal(recordsJSON, &rec.Records); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "decoding stored records")
		}
	}
	return &rec, nil
}

func (r *AssessmentRepository) scanAssessments(rows pgx.Rows) ([]*AssessmentRecord, error) {
	var recs []*AssessmentRecord
	for rows.Next() {
		rec, err := r.scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "iterating assessment rows")
	}
	return recs, nil
}

// marshalResult encodes the jsonb payloads, mapping nil to SQL NULL.
func marshalResult(m *metrics.GameMetrics, records []analysis.MoveRecord) ([]byte, []byte, error) {
	var metricsJSON, recordsJSON []byte
	var err error

	if m != nil {
		if metricsJSON, err = json.Marshal(m); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "encoding metrics")
		}
	}
	if len(records) > 0 {
		if recordsJSON, err = json.Marshal(records); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "encoding records")
		}
	}
	return metricsJSON, recordsJSON, nil
}
