package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/FairPlay-Intelligence/internal/testutil"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newSyncService builds a service that can run synchronous analyses but has
// no persistence, storage or broker behind it.
func newSyncService(t *testing.T) (*assessment.Service, *testutil.FakeEngine) {
	t.Helper()
	eng := &testutil.FakeEngine{
		Fallback: testutil.RankedResult("a3a4", 40, 12),
		MoveEval: 15,
	}
	svc, err := assessment.NewService(assessment.Deps{
		Engine: eng,
		Logger: logging.NewNopLogger(),
	}, assessment.Options{SkipOpening: true})
	require.NoError(t, err)
	return svc, eng
}

func gameRouter(svc *assessment.Service) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())

	h := NewGameHandler(svc, logging.NewNopLogger())
	r.POST("/api/v1/games/analyze", h.Analyze)
	r.GET("/api/v1/games", h.List)
	r.GET("/api/v1/games/:id", h.Get)
	r.GET("/api/v1/games/:id/pgn", h.DownloadPGN)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) common.APIResponse[json.RawMessage] {
	t.Helper()
	var resp common.APIResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAnalyze_SyncReturnsReport(t *testing.T) {
	svc, eng := newSyncService(t)
	r := gameRouter(svc)

	w := postJSON(t, r, "/api/v1/games/analyze?mode=sync", analyzeRequest{PGN: testutil.SamplePGN})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)

	body := w.Body.String()
	assert.Contains(t, body, `"risk_score"`)
	assert.Contains(t, body, `"engine_matching"`)
	assert.Contains(t, body, `"Alice"`)
	assert.Contains(t, body, `"players"`)

	assert.Equal(t, 20, eng.Evaluations(), "every ply should be analyzed")
}

func TestAnalyze_AsyncWithoutBrokerIs501(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	w := postJSON(t, r, "/api/v1/games/analyze", analyzeRequest{PGN: testutil.SamplePGN})

	require.Equal(t, http.StatusNotImplemented, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "COMMON_015", resp.Error.Code)
}

func TestAnalyze_EmptyPGN(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	w := postJSON(t, r, "/api/v1/games/analyze?mode=sync", analyzeRequest{PGN: "   "})

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "GAME_003", resp.Error.Code)
}

func TestAnalyze_MalformedJSON(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/games/analyze", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "COMMON_002", resp.Error.Code)
}

func TestAnalyze_RejectsOutOfRangeDepth(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	for _, depth := range []int{5, 25} {
		w := postJSON(t, r, "/api/v1/games/analyze?mode=sync", analyzeRequest{PGN: testutil.SamplePGN, Depth: depth})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, "depth %d", depth)
		resp := decodeEnvelope(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "COMMON_010", resp.Error.Code)
	}
}

func TestAnalyze_RejectsOutOfRangeMultiPV(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	w := postJSON(t, r, "/api/v1/games/analyze?mode=sync", analyzeRequest{PGN: testutil.SamplePGN, MultiPV: 9})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAnalyze_GarbagePGN(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	w := postJSON(t, r, "/api/v1/games/analyze?mode=sync", analyzeRequest{PGN: testutil.GarbagePGN})

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Contains(t, []string{"GAME_002", "GAME_003"}, resp.Error.Code)
}

func TestAnalyze_MultipartUpload(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("pgn", "game.pgn")
	require.NoError(t, err)
	_, err = fw.Write([]byte(testutil.SamplePGN))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("depth", "8"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/games/analyze?mode=sync", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"engine_depth":8`)
}

func TestAnalyze_MultipartWithoutFile(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("depth", "8"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/games/analyze?mode=sync", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGameQueries_WithoutPersistenceAre501(t *testing.T) {
	svc, _ := newSyncService(t)
	r := gameRouter(svc)

	paths := []string{
		"/api/v1/games",
		"/api/v1/games/some-id",
		"/api/v1/games/some-id/pgn",
	}
	for _, path := range paths {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}
