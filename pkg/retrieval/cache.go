package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultCacheTTL is short deliberately: query results go stale the
// moment storage or relation inference changes, and this cache only
// exists to absorb bursts of identical queries within one retrieval
// window.
const defaultCacheTTL = 5 * time.Minute

// QueryCache is an optional redis-backed cache of Retrieve results,
// keyed on the query text plus the options that affect its outcome.
// A nil *QueryCache (or one built over a nil client) is a valid no-op
// cache so callers can wire it unconditionally.
type QueryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQueryCache wraps an existing redis client. Pass nil to get a cache
// that always misses, which keeps call sites simple when caching is
// disabled by config.
func NewQueryCache(client *redis.Client) *QueryCache {
	return &QueryCache{client: client, ttl: defaultCacheTTL}
}

// WithTTL returns a copy of the cache using the given TTL.
func (c *QueryCache) WithTTL(ttl time.Duration) *QueryCache {
	if c == nil {
		return nil
	}
	return &QueryCache{client: c.client, ttl: ttl}
}

func cacheKey(queryText string, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%f|%d|%t|%d", queryText, opts.SimilarityThreshold, opts.ChunkLimit, opts.IncludeRelations, opts.RelationDepth)
	return "kgpipeline:retrieve:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached Result and true on a hit. A plain miss returns
// false without logging; any other redis error is treated as a miss and
// logged at debug: a cache failure logs and continues rather than
// failing the query.
func (c *QueryCache) Get(ctx context.Context, queryText string, opts Options) (Result, bool) {
	if c == nil || c.client == nil {
		return Result{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(queryText, opts)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("retrieval cache get failed", "error", err)
		}
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		slog.Warn("retrieval cache entry corrupt, ignoring", "error", err)
		return Result{}, false
	}
	return res, true
}

// Set stores a Result for future identical queries. Failures are logged
// and swallowed: the cache is a latency optimization, never a
// correctness dependency.
func (c *QueryCache) Set(ctx context.Context, queryText string, opts Options, res Result) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		slog.Warn("retrieval cache marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(queryText, opts), raw, c.ttl).Err(); err != nil {
		slog.Debug("retrieval cache set failed", "error", err)
	}
}
