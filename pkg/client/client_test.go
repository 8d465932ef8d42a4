package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return c
}

// writeEnvelope marshals data through the server's own response constructor
// so these tests prove envelope compatibility, not just self-consistency.
func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(common.NewSuccessResponse(data)))
}

func writeErrorEnvelope(t *testing.T, w http.ResponseWriter, status int, code, message string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(common.NewErrorResponse(code, message)))
}

type testLogger struct {
	mu      sync.Mutex
	count   int
	lastMsg string
}

func (l *testLogger) Debugf(format string, args ...interface{}) { l.log(format, args...) }
func (l *testLogger) Infof(format string, args ...interface{})  { l.log(format, args...) }
func (l *testLogger) Errorf(format string, args ...interface{}) { l.log(format, args...) }

func (l *testLogger) log(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.lastMsg = fmt.Sprintf(format, args...)
}

// fastRetry keeps retrying tests quick.
func fastRetry() []Option {
	return []Option{WithRetryWait(time.Millisecond, 2*time.Millisecond)}
}

// ---------------------------------------------------------------------------
// Constructor
// ---------------------------------------------------------------------------

func TestNewClient_Success(t *testing.T) {
	c, err := NewClient("http://api.example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "fairplay-go-sdk/")
}

func TestNewClient_EmptyBaseURL(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient("ftp://invalid")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	_, err = NewClient("not-a-url")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestNewClient_TrailingSlashTrimmed(t *testing.T) {
	c, err := NewClient("http://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
}

func TestNewClient_WithOptions(t *testing.T) {
	custom := &http.Client{Timeout: 10 * time.Second}
	logger := &testLogger{}
	c, err := NewClient("http://api.example.com",
		WithHTTPClient(custom),
		WithLogger(logger),
		WithRetryMax(5),
		WithRetryWait(time.Second, 3*time.Second),
		WithUserAgent("custom-agent/1.0"),
	)
	require.NoError(t, err)
	assert.Equal(t, custom, c.httpClient)
	assert.Equal(t, logger, c.logger)
	assert.Equal(t, 5, c.retryMax)
	assert.Equal(t, time.Second, c.retryWaitMin)
	assert.Equal(t, 3*time.Second, c.retryWaitMax)
	assert.Equal(t, "custom-agent/1.0", c.userAgent)
}

func TestNewClient_WithTimeout(t *testing.T) {
	c, err := NewClient("http://api.example.com", WithTimeout(7*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, c.httpClient.Timeout)
}

// ---------------------------------------------------------------------------
// Lazy sub-client init
// ---------------------------------------------------------------------------

func TestClient_Games_LazyInit(t *testing.T) {
	c, err := NewClient("http://api.example.com")
	require.NoError(t, err)
	assert.Nil(t, c.games)
	g1 := c.Games()
	assert.NotNil(t, g1)
	assert.Same(t, g1, c.Games())
}

func TestClient_Assessments_LazyInit(t *testing.T) {
	c, err := NewClient("http://api.example.com")
	require.NoError(t, err)
	assert.Nil(t, c.assessments)
	a1 := c.Assessments()
	assert.NotNil(t, a1)
	assert.Same(t, a1, c.Assessments())
}

func TestClient_SubClients_ConcurrentAccess(t *testing.T) {
	c, err := NewClient("http://api.example.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	games := make([]*GamesClient, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			games[idx] = c.Games()
		}(i)
	}
	wg.Wait()

	for i := 1; i < 50; i++ {
		assert.Same(t, games[0], games[i])
	}
}

// ---------------------------------------------------------------------------
// HTTP execution
// ---------------------------------------------------------------------------

func TestClient_Do_Success(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusOK, map[string]string{"status": "pending"})
	}
	c := newTestClient(t, handler)

	var out map[string]string
	_, err := c.get(context.Background(), "/test", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "pending", out["status"])
}

func TestClient_Do_RequestHeaders(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("User-Agent"), "fairplay-go-sdk/")
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeEnvelope(t, w, http.StatusOK, struct{}{})
	}
	c := newTestClient(t, handler)

	_, err := c.get(context.Background(), "/test", nil, nil)
	require.NoError(t, err)
}

func TestClient_Do_RequestIDUnique(t *testing.T) {
	ids := make(chan string, 2)
	handler := func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get("X-Request-ID")
		writeEnvelope(t, w, http.StatusOK, struct{}{})
	}
	c := newTestClient(t, handler)

	_, err := c.get(context.Background(), "/test", nil, nil)
	require.NoError(t, err)
	_, err = c.get(context.Background(), "/test", nil, nil)
	require.NoError(t, err)
	close(ids)

	assert.NotEqual(t, <-ids, <-ids)
}

func TestClient_Do_RetriesServerErrors(t *testing.T) {
	var attempts int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			writeErrorEnvelope(t, w, http.StatusInternalServerError, "COMMON_001", "transient")
			return
		}
		writeEnvelope(t, w, http.StatusOK, map[string]string{"ok": "yes"})
	}
	c := newTestClient(t, handler, fastRetry()...)

	var out map[string]string
	_, err := c.get(context.Background(), "/test", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "yes", out["ok"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_Do_RetriesExhausted(t *testing.T) {
	var attempts int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writeErrorEnvelope(t, w, http.StatusServiceUnavailable, "COMMON_001", "down for maintenance")
	}
	c := newTestClient(t, handler, append(fastRetry(), WithRetryMax(2))...)

	_, err := c.get(context.Background(), "/test", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "down for maintenance", apiErr.Message)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts), "initial attempt plus two retries")
}

func TestClient_Do_NotFoundNotRetried(t *testing.T) {
	var attempts int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("X-Request-ID", "srv-req-42")
		writeErrorEnvelope(t, w, http.StatusNotFound, "GAME_001", "game not found")
	}
	c := newTestClient(t, handler, fastRetry()...)

	_, err := c.get(context.Background(), "/test", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "GAME_001", apiErr.Code)
	assert.Equal(t, "game not found", apiErr.Message)
	assert.Equal(t, "srv-req-42", apiErr.RequestID)
	assert.Contains(t, apiErr.Error(), "HTTP 404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClient_Do_RateLimitedHonorsRetryAfter(t *testing.T) {
	var attempts int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeErrorEnvelope(t, w, http.StatusTooManyRequests, "COMMON_011", "slow down")
			return
		}
		writeEnvelope(t, w, http.StatusOK, struct{}{})
	}
	c := newTestClient(t, handler, fastRetry()...)

	_, err := c.get(context.Background(), "/test", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestClient_Do_RateLimitedWithoutRetryAfter(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		writeErrorEnvelope(t, w, http.StatusTooManyRequests, "COMMON_011", "slow down")
	}
	c := newTestClient(t, handler, WithRetryMax(0))

	_, err := c.get(context.Background(), "/test", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimited())
}

func TestClient_Do_NonEnvelopeErrorBody(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream connect error\n"))
	}
	c := newTestClient(t, handler, append(fastRetry(), WithRetryMax(0))...)

	_, err := c.get(context.Background(), "/test", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream connect error", apiErr.Message)
	assert.Empty(t, apiErr.Code)
}

func TestClient_Do_ReturnsPagination(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		resp := common.NewPaginatedResponse([]string{"a", "b"},
			common.Pagination{Page: 2, PageSize: 2, Total: 9})
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
	c := newTestClient(t, handler)

	var out []string
	page, err := c.get(context.Background(), "/test", nil, &out)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, int64(9), page.Total)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestClient_Do_ContextCanceled(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		writeErrorEnvelope(t, w, http.StatusInternalServerError, "COMMON_001", "transient")
	}
	c := newTestClient(t, handler, WithRetryWait(time.Minute, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.get(ctx, "/test", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
