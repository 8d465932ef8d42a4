package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// ---------------------------------------------------------------------------
// Request / response DTOs
// ---------------------------------------------------------------------------

// AnalyzeRequest submits a game in PGN form for engine analysis. Depth and
// MultiPV are optional; the server clamps them into its supported range.
type AnalyzeRequest struct {
	PGN         string `json:"pgn"`
	Depth       int    `json:"depth,omitempty"`
	MultiPV     int    `json:"multipv,omitempty"`
	SkipOpening bool   `json:"skip_opening,omitempty"`
}

// Job is the receipt for an accepted asynchronous analysis.
type Job struct {
	AssessmentID common.ID `json:"assessment_id"`
	GameID       common.ID `json:"game_id"`
	Status       string    `json:"status"`
	EngineDepth  int       `json:"engine_depth"`
	MultiPV      int       `json:"multipv"`
	CreatedAt    time.Time `json:"created_at"`
}

// Player identifies one side of a game.
type Player struct {
	Name string `json:"name"`
	Elo  int    `json:"elo,omitempty"`
}

// Game is a stored game record.
type Game struct {
	ID           common.ID `json:"id"`
	White        Player    `json:"white"`
	Black        Player    `json:"black"`
	Event        string    `json:"event,omitempty"`
	Site         string    `json:"site,omitempty"`
	PlayedAt     time.Time `json:"played_at,omitempty"`
	Result       string    `json:"result"`
	TimeControl  string    `json:"time_control,omitempty"`
	ECO          string    `json:"eco,omitempty"`
	Opening      string    `json:"opening,omitempty"`
	MoveCount    int       `json:"move_count"`
	PGNObjectKey string    `json:"pgn_object_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PGNDownload carries a presigned object-store URL for a game's PGN.
type PGNDownload struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// ListGamesOptions filters the game listing. The zero value lists the first
// page with the server's default page size.
type ListGamesOptions struct {
	Page     int
	PageSize int
}

// ---------------------------------------------------------------------------
// GamesClient
// ---------------------------------------------------------------------------

// GamesClient provides access to game submission and retrieval endpoints.
type GamesClient struct {
	client *Client
}

// Analyze queues a game for asynchronous analysis and returns the job
// receipt. Poll the assessment (or use Assessments().Wait) for the outcome.
// POST /api/v1/games/analyze
func (gc *GamesClient) Analyze(ctx context.Context, req *AnalyzeRequest) (*Job, error) {
	if req == nil || req.PGN == "" {
		return nil, invalidArg("pgn is required")
	}

	var job Job
	if err := gc.client.post(ctx, "/api/v1/games/analyze", nil, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// AnalyzeSync analyzes a game inline and returns the finished report. The
// call blocks for the full engine run; size ctx and the client timeout
// accordingly.
// POST /api/v1/games/analyze?mode=sync
func (gc *GamesClient) AnalyzeSync(ctx context.Context, req *AnalyzeRequest) (*GameReport, error) {
	if req == nil || req.PGN == "" {
		return nil, invalidArg("pgn is required")
	}

	query := url.Values{"mode": []string{"sync"}}
	var report GameReport
	if err := gc.client.post(ctx, "/api/v1/games/analyze", query, req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Get retrieves a stored game by ID.
// GET /api/v1/games/{id}
func (gc *GamesClient) Get(ctx context.Context, gameID common.ID) (*Game, error) {
	if gameID == "" {
		return nil, invalidArg("gameID is required")
	}

	var g Game
	if _, err := gc.client.get(ctx, "/api/v1/games/"+string(gameID), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// List pages through stored games, newest first.
// GET /api/v1/games
func (gc *GamesClient) List(ctx context.Context, opts *ListGamesOptions) ([]Game, *common.Pagination, error) {
	query := url.Values{}
	if opts != nil {
		if opts.Page > 0 {
			query.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			query.Set("page_size", strconv.Itoa(opts.PageSize))
		}
	}

	var games []Game
	page, err := gc.client.get(ctx, "/api/v1/games", query, &games)
	if err != nil {
		return nil, nil, err
	}
	return games, page, nil
}

// DownloadURL returns a presigned, time-limited URL for a game's raw PGN.
// GET /api/v1/games/{id}/pgn
func (gc *GamesClient) DownloadURL(ctx context.Context, gameID common.ID) (*PGNDownload, error) {
	if gameID == "" {
		return nil, invalidArg("gameID is required")
	}

	var dl PGNDownload
	if _, err := gc.client.get(ctx, "/api/v1/games/"+string(gameID)+"/pgn", nil, &dl); err != nil {
		return nil, err
	}
	return &dl, nil
}

// FetchPGN resolves the presigned URL for a game and downloads the PGN
// bytes. The second hop goes straight to the object store, outside the API
// envelope and retry policy.
func (gc *GamesClient) FetchPGN(ctx context.Context, gameID common.ID) ([]byte, error) {
	dl, err := gc.DownloadURL(ctx, gameID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := gc.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pgn download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("pgn download failed: HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
