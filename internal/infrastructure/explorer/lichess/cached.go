package lichess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

const (
	// DefaultCacheTTL keeps explorer answers for a day.  Theory counts move
	// slowly enough that a day of staleness cannot flip a threshold decision.
	DefaultCacheTTL = 24 * time.Hour

	// maxReadableKeyLen caps the human-readable key form; longer move
	// sequences collapse to a hash so redis keys stay bounded.
	maxReadableKeyLen = 200

	theoryKeyPrefix = "theory:"
)

// CachedOracle decorates a TheoryOracle with a redis-backed cache.  Absent
// positions are negative-cached, concurrent lookups of one prefix collapse
// into a single upstream query, and cache infrastructure failures degrade to
// direct queries instead of failing the scan.
type CachedOracle struct {
	inner  opening.TheoryOracle
	cache  redis.Cache
	ttl    time.Duration
	logger logging.Logger
}

var _ opening.TheoryOracle = (*CachedOracle)(nil)

// NewCachedOracle wraps inner with the given cache.  A non-positive ttl
// falls back to DefaultCacheTTL.
func NewCachedOracle(inner opening.TheoryOracle, cache redis.Cache, log logging.Logger, ttl time.Duration) *CachedOracle {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CachedOracle{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: log.Named("theory-cache"),
	}
}

// QueryTheory serves from cache when possible and queries the decorated
// oracle at most once per key otherwise.  Oracle errors pass through
// uncached; cache faults log a warning and fall back to a direct query.
func (o *CachedOracle) QueryTheory(ctx context.Context, movesUCI []string) (*opening.TheoryStats, error) {
	key := theoryKey(movesUCI)

	var stats opening.TheoryStats
	err := o.cache.GetOrSet(ctx, key, &stats, o.ttl, func(ctx context.Context) (interface{}, error) {
		s, qerr := o.inner.QueryTheory(ctx, movesUCI)
		if qerr != nil {
			return nil, qerr
		}
		if s == nil {
			return nil, nil
		}
		return s, nil
	})
	switch {
	case err == nil:
		return &stats, nil
	case err == redis.ErrCacheMiss:
		// Either the oracle just reported the position absent or a negative
		// entry is still live.
		return nil, nil
	case isCacheFault(err):
		o.logger.Warn("Theory cache unavailable, querying explorer directly", logging.Err(err))
		return o.inner.QueryTheory(ctx, movesUCI)
	default:
		return nil, err
	}
}

// isCacheFault reports whether err comes from the cache layer itself rather
// than from the decorated oracle.
func isCacheFault(err error) bool {
	return errors.IsCode(err, errors.ErrCodeCacheError) ||
		errors.IsCode(err, errors.ErrCodeSerialization)
}

// theoryKey derives the cache key for a move-sequence prefix.  Short
// sequences stay readable for debugging; long ones are hashed.
func theoryKey(movesUCI []string) string {
	joined := strings.Join(movesUCI, ",")
	if len(joined) <= maxReadableKeyLen {
		return theoryKeyPrefix + joined
	}
	sum := sha256.Sum256([]byte(joined))
	return theoryKeyPrefix + "sha256:" + hex.EncodeToString(sum[:])
}
