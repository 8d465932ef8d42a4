package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

const gameColumns = `id, white_name, white_elo, black_name, black_elo,
	event, site, played_at, result, time_control, eco, opening,
	move_count, pgn_object_key, created_at`

// GameRepository is the PostgreSQL implementation of game persistence.
// Every method takes a context for cancellation and uses parameterised
// queries exclusively.
type GameRepository struct {
	db     DB
	logger logging.Logger
}

// NewGameRepository constructs a ready-to-use GameRepository.
func NewGameRepository(pool *pgxpool.Pool, log logging.Logger) *GameRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &GameRepository{db: pool, logger: log.Named("game-repo")}
}

// WithTx returns a copy of the repository that runs its statements on tx.
func (r *GameRepository) WithTx(tx pgx.Tx) *GameRepository {
	return &GameRepository{db: tx, logger: r.logger}
}

// Create inserts the game row.  A missing ID or CreatedAt is filled in.
func (r *GameRepository) Create(ctx context.Context, rec *GameRecord) error {
	if rec.ID == "" {
		rec.ID = common.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO games (`+gameColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		string(rec.ID),
		rec.White.Name, rec.White.Elo,
		rec.Black.Name, rec.Black.Elo,
		rec.Event, rec.Site, nullTime(rec.PlayedAt), rec.Result,
		rec.TimeControl, rec.ECO, rec.Opening,
		rec.MoveCount, rec.PGNObjectKey, rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return appErrors.Wrap(err, appErrors.ErrCodeRepositoryConflict, "game already exists")
		}
		r.logger.Error("Insert game failed", logging.String("game_id", string(rec.ID)), logging.Err(err))
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "inserting game")
	}
	return nil
}

// GetByID loads one game row.
func (r *GameRepository) GetByID(ctx context.Context, id common.ID) (*GameRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+gameColumns+` FROM games WHERE id = $1`, string(id))
	return r.scanGame(row)
}

// List returns one page of games, newest first, along with the total count.
func (r *GameRepository) List(ctx context.Context, p common.Pagination) ([]*GameRecord, int64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, appErrors.InvalidParam(err.Error())
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&total); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "counting games")
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+gameColumns+` FROM games
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "listing games")
	}
	defer rows.Close()

	recs, err := r.scanGames(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (r *GameRepository) scanGame(row pgx.Row) (*GameRecord, error) {
	var rec GameRecord
	var playedAt *time.Time

	err := row.Scan(
		&rec.ID,
		&rec.White.Name, &rec.White.Elo,
		&rec.Black.Name, &rec.Black.Elo,
		&rec.Event, &rec.Site, &playedAt, &rec.Result,
		&rec.TimeControl, &rec.ECO, &rec.Opening,
		&rec.MoveCount, &rec.PGNObjectKey, &rec.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.New(appErrors.ErrCodeGameNotFound, "game not found")
		}
		r.logger.Error("Scan game row failed", logging.Err(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "scanning game row")
	}

	if playedAt != nil {
		rec.PlayedAt = *playedAt
	}
	return &rec, nil
}

func (r *GameRepository) scanGames(rows pgx.Rows) ([]*GameRecord, error) {
	var recs []*GameRecord
	for rows.Next() {
		rec, err := r.scanGame(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "iterating game rows")
	}
	return recs, nil
}
