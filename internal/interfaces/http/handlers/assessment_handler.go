package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/application/reporting"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/risk"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// AssessmentHandler serves assessment status and results.
type AssessmentHandler struct {
	svc *assessment.Service
	log logging.Logger
}

func NewAssessmentHandler(svc *assessment.Service, log logging.Logger) *AssessmentHandler {
	return &AssessmentHandler{svc: svc, log: log}
}

// AssessmentResponse is the wire shape of one assessment. Report is present
// only once the run has completed; until then clients poll on Status.
type AssessmentResponse struct {
	ID          common.ID                     `json:"id"`
	GameID      common.ID                     `json:"game_id"`
	Status      repositories.AssessmentStatus `json:"status"`
	EngineDepth int                           `json:"engine_depth"`
	MultiPV     int                           `json:"multipv"`
	RiskScore   *float64                      `json:"risk_score,omitempty"`
	RiskLevel   *string                       `json:"risk_level,omitempty"`
	Error       string                        `json:"error,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
	CompletedAt *time.Time                    `json:"completed_at,omitempty"`
	Report      *reporting.GameReport         `json:"report,omitempty"`
}

func assessmentResponse(rec *repositories.AssessmentRecord, view *assessment.GameAssessment) AssessmentResponse {
	resp := AssessmentResponse{
		ID:          rec.ID,
		GameID:      rec.GameID,
		Status:      rec.Status,
		EngineDepth: rec.EngineDepth,
		MultiPV:     rec.MultiPV,
		RiskScore:   rec.RiskScore,
		RiskLevel:   rec.RiskLevel,
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	}
	if view != nil {
		resp.Report = reporting.BuildGameReport(view)
	}
	return resp
}

// Get returns one assessment. While the run is pending or running the body
// carries only the status; completed runs include the full report.
func (h *AssessmentHandler) Get(c *gin.Context) {
	rec, view, err := h.svc.GetAssessment(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusOK, assessmentResponse(rec, view))
}

// List returns one page of assessments, newest first. Supports filtering by
// ?risk_level= and ?status=.
func (h *AssessmentHandler) List(c *gin.Context) {
	filter := repositories.ListFilter{Page: parsePagination(c)}

	if level := c.Query("risk_level"); level != "" {
		if !risk.ValidLevel(level) {
			writeAppError(c, apperrors.New(apperrors.ErrCodeValidation, "unknown risk_level "+level))
			return
		}
		filter.RiskLevel = level
	}
	if status := c.Query("status"); status != "" {
		if !repositories.ValidStatus(status) {
			writeAppError(c, apperrors.New(apperrors.ErrCodeValidation, "unknown status "+status))
			return
		}
		filter.Status = repositories.AssessmentStatus(status)
	}

	records, total, err := h.svc.ListAssessments(c.Request.Context(), filter)
	if err != nil {
		writeAppError(c, err)
		return
	}

	summaries := make([]AssessmentResponse, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, assessmentResponse(rec, nil))
	}

	page := filter.Page
	page.Total = total
	writePaginated(c, summaries, page)
}
