package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/application/reporting"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

const (
	// maxUploadBytes caps PGN uploads.  A tournament PGN with full clock
	// annotations stays well under a megabyte; sixteen is headroom.
	maxUploadBytes = 16 << 20

	// Engine depth accepted from clients.  Below six the evaluations are
	// noise, above twenty-four a single game monopolizes a worker.
	minDepth = 6
	maxDepth = 24

	// MultiPV accepted from clients.
	minMultiPV = 1
	maxMultiPV = 5

	// presignExpiry is the lifetime of PGN download links.
	presignExpiry = 15 * time.Minute
)

// GameHandler serves game ingestion and retrieval.
type GameHandler struct {
	svc *assessment.Service
	log logging.Logger
}

func NewGameHandler(svc *assessment.Service, log logging.Logger) *GameHandler {
	return &GameHandler{svc: svc, log: log}
}

// analyzeRequest is the JSON body of POST /games/analyze. The same options
// are accepted as form fields on multipart uploads.
type analyzeRequest struct {
	PGN         string `json:"pgn"`
	Depth       int    `json:"depth"`
	MultiPV     int    `json:"multipv"`
	SkipOpening bool   `json:"skip_opening"`
}

// Analyze accepts a PGN, as a multipart file upload under the field "pgn" or
// as a JSON body, and either queues it for analysis (default, 202 with a job
// receipt) or, with ?mode=sync, runs the full pipeline inline and returns
// the finished report.
func (h *GameHandler) Analyze(c *gin.Context) {
	pgn, opts, err := h.readAnalyzeRequest(c)
	if err != nil {
		writeAppError(c, err)
		return
	}

	if c.Query("mode") == "sync" {
		result, err := h.svc.AnalyzePGN(c.Request.Context(), pgn, opts)
		if err != nil {
			writeAppError(c, err)
			return
		}
		writeSuccess(c, http.StatusOK, reporting.BuildGameReport(result))
		return
	}

	job, err := h.svc.SubmitAsync(c.Request.Context(), pgn, opts)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusAccepted, job)
}

func (h *GameHandler) readAnalyzeRequest(c *gin.Context) ([]byte, assessment.Options, error) {
	var (
		pgn  []byte
		opts assessment.Options
	)

	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := c.Request.FormFile("pgn")
		if err != nil {
			return nil, opts, apperrors.New(apperrors.ErrCodeBadRequest, "multipart upload requires a pgn file field")
		}
		defer file.Close()

		if header.Size > maxUploadBytes {
			return nil, opts, apperrors.Newf(apperrors.ErrCodeValidation, "PGN upload exceeds %d bytes", maxUploadBytes)
		}
		pgn, err = io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			return nil, opts, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "reading PGN upload")
		}
		if len(pgn) > maxUploadBytes {
			return nil, opts, apperrors.Newf(apperrors.ErrCodeValidation, "PGN upload exceeds %d bytes", maxUploadBytes)
		}

		opts.Depth = formInt(c, "depth")
		opts.MultiPV = formInt(c, "multipv")
		opts.SkipOpening = c.PostForm("skip_opening") == "true"
	} else {
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, opts, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "decoding analyze request")
		}
		pgn = []byte(req.PGN)
		opts.Depth = req.Depth
		opts.MultiPV = req.MultiPV
		opts.SkipOpening = req.SkipOpening
	}

	if len(strings.TrimSpace(string(pgn))) == 0 {
		return nil, opts, apperrors.New(apperrors.ErrCodePGNEmpty, "request contains no PGN")
	}
	if opts.Depth != 0 && (opts.Depth < minDepth || opts.Depth > maxDepth) {
		return nil, opts, apperrors.Newf(apperrors.ErrCodeValidation, "depth must be between %d and %d", minDepth, maxDepth)
	}
	if opts.MultiPV != 0 && (opts.MultiPV < minMultiPV || opts.MultiPV > maxMultiPV) {
		return nil, opts, apperrors.Newf(apperrors.ErrCodeValidation, "multipv must be between %d and %d", minMultiPV, maxMultiPV)
	}
	return pgn, opts, nil
}

func formInt(c *gin.Context, field string) int {
	raw := c.PostForm(field)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

// Get returns one stored game header.
func (h *GameHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetGame(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusOK, rec)
}

// List returns one page of stored game headers.
func (h *GameHandler) List(c *gin.Context) {
	page := parsePagination(c)
	records, total, err := h.svc.ListGames(c.Request.Context(), page)
	if err != nil {
		writeAppError(c, err)
		return
	}
	page.Total = total
	writePaginated(c, records, page)
}

// DownloadPGN returns a presigned, time-limited URL for the stored PGN of a
// game. The client follows the URL straight to object storage.
func (h *GameHandler) DownloadPGN(c *gin.Context) {
	url, err := h.svc.PresignPGN(c.Request.Context(), common.ID(c.Param("id")), presignExpiry)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int(presignExpiry.Seconds()),
	})
}
