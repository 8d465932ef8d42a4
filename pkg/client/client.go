// Package client is the Go SDK for the FairPlay-Intelligence REST API.
//
// A Client wraps the HTTP surface exposed by the apiserver: submitting games
// for engine-assistance analysis, polling assessments, and fetching stored
// PGNs. Responses arrive in the same envelope the server emits, so the SDK
// shares the wire types in pkg/types/common instead of redeclaring them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

const Version = "0.1.0"

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client is the FairPlay-Intelligence SDK client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	games           *GamesClient
	gamesOnce       sync.Once
	assessments     *AssessmentsClient
	assessmentsOnce sync.Once
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fairplay: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, e.Message, e.RequestID)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// NewClient creates a new FairPlay-Intelligence SDK client. The API carries
// no authentication of its own; deployments that need it put the server
// behind a gateway, and callers inject credentials via WithHTTPClient.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "baseURL is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid baseURL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New(errors.ErrCodeValidation, "baseURL scheme must be http or https")
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    fmt.Sprintf("fairplay-go-sdk/%s", Version),
		logger:       &noopLogger{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Games returns the games sub-client (lazy initialization, thread-safe).
func (c *Client) Games() *GamesClient {
	c.gamesOnce.Do(func() {
		c.games = &GamesClient{client: c}
	})
	return c.games
}

// Assessments returns the assessments sub-client (lazy initialization, thread-safe).
func (c *Client) Assessments() *AssessmentsClient {
	c.assessmentsOnce.Do(func() {
		c.assessments = &AssessmentsClient{client: c}
	})
	return c.assessments
}

func invalidArg(msg string) error {
	return errors.New(errors.ErrCodeValidation, msg)
}

// do performs an HTTP request with retry logic, unwraps the response
// envelope into result and returns any pagination block it carried.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result interface{}) (*common.Pagination, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debugf("retry attempt %d after %v", attempt, backoff)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		requestID := uuid.New().String()
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		if err != nil {
			c.logger.Errorf("request failed: %v", err)
			lastErr = err
			if c.shouldRetry(nil) {
				continue
			}
			return nil, err
		}

		c.logger.Debugf("%s %s %d (%v)", method, path, resp.StatusCode, duration)

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := resp.Header.Get("Retry-After")
			if retryAfter != "" {
				if seconds, perr := strconv.Atoi(retryAfter); perr == nil && attempt < c.retryMax {
					c.logger.Infof("rate limited, retrying after %d seconds", seconds)
					select {
					case <-time.After(time.Duration(seconds) * time.Second):
						continue
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}
			}
		}

		if resp.StatusCode >= 400 {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				RequestID:  resp.Header.Get("X-Request-ID"),
			}
			if apiErr.RequestID == "" {
				apiErr.RequestID = requestID
			}

			if len(respBody) > 0 {
				var env common.APIResponse[json.RawMessage]
				if uerr := json.Unmarshal(respBody, &env); uerr == nil && env.Error != nil {
					apiErr.Code = env.Error.Code
					apiErr.Message = env.Error.Message
				} else {
					// Not the server's envelope; a proxy or LB answered.
					apiErr.Message = strings.TrimSpace(string(respBody))
				}
			}

			lastErr = apiErr
			if c.shouldRetry(resp) {
				continue
			}
			return nil, apiErr
		}

		if len(respBody) == 0 {
			return nil, nil
		}

		var env common.APIResponse[json.RawMessage]
		if err := json.Unmarshal(respBody, &env); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if result != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, result); err != nil {
				return nil, fmt.Errorf("failed to unmarshal response data: %w", err)
			}
		}
		return env.Pagination, nil
	}

	return nil, lastErr
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) (*common.Pagination, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, result)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, result interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, query, body, result)
	return err
}

func (c *Client) shouldRetry(resp *http.Response) bool {
	// Network errors arrive with a nil response.
	if resp == nil {
		return true
	}
	// 5xx retries; 4xx does not, except 429 which is handled separately.
	return resp.StatusCode >= 500 && resp.StatusCode < 600
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if backoff > c.retryWaitMax {
		backoff = c.retryWaitMax
	}

	// Add jitter (0-25% of backoff).
	if q := int64(backoff / 4); q > 0 {
		backoff += time.Duration(rand.Int63n(q))
	}
	return backoff
}
