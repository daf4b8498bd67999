package cache

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"edge-proxy-go/internal/metrics"
)

// DefaultTTL is the policy freshness window for both cacheable categories.
const DefaultTTL = 300 * time.Second

// Gateway applies the cache admission policy in front of a Cache. Only GET
// responses with status 200 or 301 are ever written; only GET requests are
// ever looked up.
type Gateway struct {
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewGateway creates a Gateway over the given store. The metrics parameter is
// optional; pass nil to disable cache metrics.
func NewGateway(c Cache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Gateway {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gateway{
		cache:   c,
		ttl:     ttl,
		logger:  logger.With("component", "cache_gateway"),
		metrics: m,
	}
}

// Admissible reports whether a (method, status) pair may be written to the
// cache: method = GET and status ∈ {200, 301}, nothing else.
func Admissible(method string, status int) bool {
	if method != http.MethodGet {
		return false
	}
	return status == http.StatusOK || status == http.StatusMovedPermanently
}

// Lookup consults the cache for GET requests; any other method always misses.
// Store failures and decode errors degrade to misses.
func (g *Gateway) Lookup(ctx context.Context, key Key, method string) (*Entry, bool) {
	if method != http.MethodGet {
		return nil, false
	}

	e, ok, err := g.cache.Lookup(ctx, key)
	if err != nil {
		g.countLookup("error")
		g.logger.Debug("cache lookup failed", "key", key.String(), "err", err)
		return nil, false
	}
	if !ok {
		g.countLookup("miss")
		return nil, false
	}
	g.countLookup("hit")
	return e, true
}

// Store persists a response when the admission policy allows it; every other
// (method, status) combination is a no-op. The entry TTL honors an
// origin-supplied max-age for 200 responses, otherwise the policy default.
func (g *Gateway) Store(ctx context.Context, key Key, method string, e *Entry) {
	if !Admissible(method, e.Status) {
		return
	}

	e.StoredAt = time.Now()
	e.TTL = g.ttl
	if e.Status == http.StatusOK {
		if age, ok := maxAge(e.Header.Get("Cache-Control")); ok {
			e.TTL = age
		}
	}

	if err := g.cache.Store(ctx, key, e); err != nil {
		g.countWrite("failed")
		g.logger.Debug("cache store failed", "key", key.String(), "err", err)
		return
	}
	g.countWrite("stored")
}

// TTL returns the configured default freshness window.
func (g *Gateway) TTL() time.Duration {
	return g.ttl
}

func (g *Gateway) countLookup(result string) {
	if g.metrics != nil {
		g.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (g *Gateway) countWrite(result string) {
	if g.metrics != nil {
		g.metrics.CacheWrites.WithLabelValues(result).Inc()
	}
}

// maxAge parses a max-age directive out of a Cache-Control value.
func maxAge(cc string) (time.Duration, bool) {
	for _, part := range strings.Split(cc, ",") {
		part = strings.TrimSpace(part)
		if rest, ok := strings.CutPrefix(strings.ToLower(part), "max-age="); ok {
			secs, err := strconv.Atoi(rest)
			if err != nil || secs <= 0 {
				return 0, false
			}
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, false
}
