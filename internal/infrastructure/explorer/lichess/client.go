// Package lichess implements the opening theory oracle against the public
// Lichess opening explorer.  The raw Client talks HTTP; CachedOracle wraps
// any oracle with a redis-backed cache.
package lichess

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

const (
	// DefaultBaseURL is the lichess-games explorer endpoint (as opposed to
	// the masters database, whose sample is too thin for a theory threshold).
	DefaultBaseURL = "https://explorer.lichess.ovh/lichess"
	// DefaultTimeout bounds a single explorer request.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent identifies this service to the explorer operators.
	DefaultUserAgent = "FairPlay-Intelligence/0.1"

	// rateLimitWait is the pause a 429 answer imposes before the single retry.
	rateLimitWait = 2 * time.Second
)

// Config carries the explorer client settings.
type Config struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// Client queries the Lichess opening explorer over HTTP.  It implements
// opening.TheoryOracle.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    logging.Logger

	// wait is swapped out in tests so the rate-limit pause does not slow
	// the suite down.
	wait func(ctx context.Context, d time.Duration) error
}

var _ opening.TheoryOracle = (*Client)(nil)

// NewClient builds an explorer client.  Zero config fields fall back to the
// package defaults.
func NewClient(cfg Config, log logging.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    log.Named("lichess"),
		wait:      sleepCtx,
	}
}

// explorerResponse is the slice of the explorer payload this service reads.
// The full response also lists per-continuation stats, which are ignored.
type explorerResponse struct {
	White int `json:"white"`
	Draws int `json:"draws"`
	Black int `json:"black"`
}

// QueryTheory asks the explorer how often the given move-sequence prefix was
// played in rated blitz, rapid and classical games.  A 429 answer pauses and
// retries exactly once; every other failure surfaces as an error, which the
// deviation analyzer treats as the end of theory.
func (c *Client) QueryTheory(ctx context.Context, movesUCI []string) (*opening.TheoryStats, error) {
	reqURL := c.buildURL(movesUCI)

	stats, retryable, err := c.fetch(ctx, reqURL)
	if err != nil && retryable {
		c.logger.Warn("Explorer rate limited, retrying once",
			logging.Int("prefix_len", len(movesUCI)))
		if werr := c.wait(ctx, rateLimitWait); werr != nil {
			return nil, werr
		}
		stats, _, err = c.fetch(ctx, reqURL)
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) buildURL(movesUCI []string) string {
	q := url.Values{}
	q.Set("variant", "chess")
	q.Set("play", strings.Join(movesUCI, ","))
	q.Set("speeds", "blitz,rapid,classical")
	q.Set("modes", "rated")
	return c.baseURL + "?" + q.Encode()
}

// fetch performs one GET.  retryable is true only for a 429 status.
func (c *Client) fetch(ctx context.Context, reqURL string) (*opening.TheoryStats, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeTheoryUnavailable, "building explorer request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeTheoryUnavailable, "explorer request failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body explorerResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, false, errors.Wrap(err, errors.ErrCodeTheoryBadResponse, "decoding explorer response")
		}
		return &opening.TheoryStats{
			WhiteWins: body.White,
			Draws:     body.Draws,
			BlackWins: body.Black,
		}, false, nil
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, true, errors.New(errors.ErrCodeTheoryRateLimited, "explorer rate limited")
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, false, errors.Newf(errors.ErrCodeTheoryUnavailable, "explorer returned status %d", resp.StatusCode)
	}
}

// sleepCtx pauses for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
