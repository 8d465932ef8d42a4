package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FairPlay-Intelligence/internal/testutil"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	log := testutil.NewMockLogger()

	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery(log))
	r.GET("/panic", func(c *gin.Context) { panic("handler exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp common.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "COMMON_001", resp.Error.Code)
	assert.Equal(t, "internal server error", resp.Error.Message)
	assert.NotEmpty(t, resp.RequestID)

	require.Len(t, log.MessagesAt("error"), 1)
	assert.True(t, log.Contains("panic recovered"))
}

func TestRecovery_PassesCleanRequests(t *testing.T) {
	log := testutil.NewMockLogger()

	r := gin.New()
	r.Use(Recovery(log))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, log.Messages())
}
