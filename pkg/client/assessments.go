package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// Assessment status values as reported by the API.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// defaultWaitInterval paces Wait's polling when the caller passes zero.
const defaultWaitInterval = 2 * time.Second

// ---------------------------------------------------------------------------
// Request / response DTOs
// ---------------------------------------------------------------------------

// Assessment is the lifecycle record of one analysis run. RiskScore,
// RiskLevel and Report are populated once the run completes; Error once it
// fails.
type Assessment struct {
	ID          common.ID   `json:"id"`
	GameID      common.ID   `json:"game_id"`
	Status      string      `json:"status"`
	EngineDepth int         `json:"engine_depth"`
	MultiPV     int         `json:"multipv"`
	RiskScore   *float64    `json:"risk_score,omitempty"`
	RiskLevel   *string     `json:"risk_level,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Report      *GameReport `json:"report,omitempty"`
}

// IsTerminal reports whether the assessment has finished, successfully or not.
func (a *Assessment) IsTerminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// ListAssessmentsOptions filters the assessment listing. Empty fields are
// not sent; the server then applies its defaults.
type ListAssessmentsOptions struct {
	Status    string
	RiskLevel string
	Page      int
	PageSize  int
}

// ---------------------------------------------------------------------------
// AssessmentsClient
// ---------------------------------------------------------------------------

// AssessmentsClient provides access to assessment retrieval endpoints.
type AssessmentsClient struct {
	client *Client
}

// Get retrieves an assessment by ID, including the full report once the
// analysis has completed.
// GET /api/v1/assessments/{id}
func (ac *AssessmentsClient) Get(ctx context.Context, assessmentID common.ID) (*Assessment, error) {
	if assessmentID == "" {
		return nil, invalidArg("assessmentID is required")
	}

	var a Assessment
	if _, err := ac.client.get(ctx, "/api/v1/assessments/"+string(assessmentID), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// List pages through assessments, newest first, optionally filtered by
// status and risk level.
// GET /api/v1/assessments
func (ac *AssessmentsClient) List(ctx context.Context, opts *ListAssessmentsOptions) ([]Assessment, *common.Pagination, error) {
	query := url.Values{}
	if opts != nil {
		if opts.Status != "" {
			query.Set("status", opts.Status)
		}
		if opts.RiskLevel != "" {
			query.Set("risk_level", opts.RiskLevel)
		}
		if opts.Page > 0 {
			query.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			query.Set("page_size", strconv.Itoa(opts.PageSize))
		}
	}

	var assessments []Assessment
	page, err := ac.client.get(ctx, "/api/v1/assessments", query, &assessments)
	if err != nil {
		return nil, nil, err
	}
	return assessments, page, nil
}

// Wait polls an assessment until it reaches a terminal status or ctx
// expires. A failed assessment is returned without error; the caller checks
// Status and Error. An interval of zero polls every two seconds.
func (ac *AssessmentsClient) Wait(ctx context.Context, assessmentID common.ID, interval time.Duration) (*Assessment, error) {
	if interval <= 0 {
		interval = defaultWaitInterval
	}

	for {
		a, err := ac.Get(ctx, assessmentID)
		if err != nil {
			return nil, err
		}
		if a.IsTerminal() {
			return a, nil
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
