// Package service implements the per-request proxy pipeline: header
// transform, cache lookup, origin forwarding, response classification, and
// deferred cache-write and telemetry side effects.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"edge-proxy-go/internal/cache"
	"edge-proxy-go/internal/client"
	"edge-proxy-go/internal/config"
	"edge-proxy-go/internal/errpage"
	"edge-proxy-go/internal/headers"
	"edge-proxy-go/internal/model"
	"edge-proxy-go/internal/task"
	"edge-proxy-go/internal/telemetry"
)

// Version is a string type for dependency injection of the build version.
type Version string

// Response headers set on proxied responses (stable contract).
const (
	HeaderProxyHost    = "X-Proxy-Host"
	HeaderResponseTime = "X-Response-Time"
	HeaderRedirectTime = "X-Redirect-Time"
	HeaderCacheStatus  = "X-Cache"
)

const defaultCacheControl = "public, max-age=300"

// storeTimeout bounds deferred cache writes so a slow cache service cannot
// pin the task worker.
const storeTimeout = 5 * time.Second

// Response is the fully constructed client-facing response. Body and Stream
// are mutually exclusive; Stream is used for passthrough bodies too large or
// unsuitable to buffer.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Stream  io.ReadCloser
	Outcome model.Outcome
}

// ProxyService orchestrates the forwarding pipeline. It holds no per-request
// state; concurrent requests share only the injected collaborators.
type ProxyService struct {
	client  *client.OriginClient
	cfg     *config.Config
	gateway *cache.Gateway
	emitter telemetry.Emitter
	tasks   *task.Runner
	logger  *slog.Logger
	baseURL *url.URL
	version string
}

// NewProxyService creates a ProxyService.
func NewProxyService(
	c *client.OriginClient,
	cfg *config.Config,
	g *cache.Gateway,
	em telemetry.Emitter,
	tasks *task.Runner,
	logger *slog.Logger,
	version Version,
) (*ProxyService, error) {
	u, err := url.Parse(cfg.Origin.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin base_url: %w", err)
	}

	return &ProxyService{
		client:  c,
		cfg:     cfg,
		gateway: g,
		emitter: em,
		tasks:   tasks,
		logger:  logger.With("component", "proxy_service"),
		baseURL: u,
		version: string(version),
	}, nil
}

// Proxy runs the full pipeline for a routed customer request and always
// returns a well-formed response; failures are synthesized into themed error
// documents, never surfaced as errors.
func (s *ProxyService) Proxy(pr *model.ProxyRequest) *Response {
	start := time.Now()

	outHdr := headers.Transform(pr.Header, headers.Params{
		EffectiveHost: pr.Host,
		OriginHost:    s.baseURL.Hostname(),
		Method:        pr.Method,
		ClientIP:      pr.ClientIP,
		RequestID:     pr.RequestID,
		Version:       s.version,
		Now:           start,
	})

	key := cache.Key{Host: pr.Host, Path: pr.Path, Query: pr.RawQuery}

	if entry, ok := s.gateway.Lookup(pr.Ctx, key, pr.Method); ok {
		s.logger.Debug("cache hit", "host", pr.Host, "path", pr.Path)
		return s.cachedResponse(pr, entry, start)
	}

	var body io.Reader
	if pr.Method != http.MethodGet && pr.Method != http.MethodHead {
		body = pr.Body
	}

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, s.originURL(pr.Path, pr.RawQuery), outHdr, body)
	outcome := model.Classify(resp, err)

	var res *Response
	switch outcome.Kind {
	case model.OutcomeRedirect:
		res = s.redirectResponse(pr, resp, outcome, key, start)
	case model.OutcomeSuccess:
		res = s.successResponse(pr, resp, outcome, key, start)
	default:
		// TransportFailure and OriginError both synthesize a document.
		if resp != nil {
			drain(resp.Body)
		}
		if err != nil {
			s.logger.Warn("origin unreachable", "host", pr.Host, "path", pr.Path, "err", err)
		}
		res = s.errorResponse(pr, outcome, start)
	}

	// Telemetry is emitted only after the response is fully constructed and
	// never contributes to its latency.
	s.emit(pr, res.Outcome, start)
	return res
}

// Bypass forwards a first-party request with its inbound headers untouched
// and streams the origin response back verbatim.
func (s *ProxyService) Bypass(pr *model.ProxyRequest) *Response {
	var body io.Reader
	if pr.Method != http.MethodGet && pr.Method != http.MethodHead {
		body = pr.Body
	}

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, s.originURL(pr.Path, pr.RawQuery), pr.Header.Clone(), body)
	if err != nil {
		s.logger.Warn("bypass forward failed", "host", pr.Host, "path", pr.Path, "err", err)
		return &Response{
			Status:  http.StatusBadGateway,
			Header:  http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
			Body:    []byte("upstream unavailable\n"),
			Outcome: model.Outcome{Kind: model.OutcomeTransportFailure, Status: http.StatusBadGateway},
		}
	}

	return &Response{
		Status:  resp.StatusCode,
		Header:  resp.Header.Clone(),
		Stream:  resp.Body,
		Outcome: model.Outcome{Kind: model.OutcomeSuccess, Status: resp.StatusCode},
	}
}

func (s *ProxyService) originURL(path, rawQuery string) string {
	u := *s.baseURL
	u.Path = path
	u.RawQuery = rawQuery
	return u.String()
}

func (s *ProxyService) cachedResponse(pr *model.ProxyRequest, entry *cache.Entry, start time.Time) *Response {
	h := entry.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(HeaderCacheStatus, "HIT")
	h.Set(HeaderProxyHost, pr.Host)
	h.Set(headers.HeaderProxyVersion, s.version)
	h.Set(HeaderResponseTime, elapsedMs(start))

	kind := model.OutcomeSuccess
	if entry.Status == http.StatusMovedPermanently {
		kind = model.OutcomeRedirect
	}
	return &Response{
		Status:  entry.Status,
		Header:  h,
		Body:    entry.Body,
		Outcome: model.Outcome{Kind: kind, Status: entry.Status, Location: h.Get("Location")},
	}
}

func (s *ProxyService) redirectResponse(pr *model.ProxyRequest, resp *model.OriginResponse, outcome model.Outcome, key cache.Key, start time.Time) *Response {
	drain(resp.Body)

	// Minimal response: Location, proxy identity, and an edge cache window.
	h := http.Header{}
	h.Set("Location", outcome.Location)
	h.Set("Cache-Control", defaultCacheControl)
	h.Set(HeaderProxyHost, pr.Host)
	h.Set(headers.HeaderProxyVersion, s.version)
	h.Set(HeaderCacheStatus, "MISS")
	h.Set(HeaderRedirectTime, elapsedMs(start))

	s.storeDeferred(pr.Method, key, &cache.Entry{
		Status: outcome.Status,
		Header: cacheableHeader(h),
		Body:   nil,
	})

	return &Response{
		Status:  outcome.Status,
		Header:  h,
		Outcome: outcome,
	}
}

func (s *ProxyService) successResponse(pr *model.ProxyRequest, resp *model.OriginResponse, outcome model.Outcome, key cache.Key, start time.Time) *Response {
	h := http.Header{}
	h.Set("Content-Type", outcome.ContentType)
	if cc := resp.Header.Get("Cache-Control"); cc != "" {
		h.Set("Cache-Control", cc)
	} else {
		h.Set("Cache-Control", defaultCacheControl)
	}
	if origin := pr.Header.Get("Origin"); origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Vary", "Origin")
	} else {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set(HeaderProxyHost, pr.Host)
	h.Set(headers.HeaderProxyVersion, s.version)
	h.Set(HeaderResponseTime, elapsedMs(start))

	// Non-GET responses stream straight through and are never cached.
	if pr.Method != http.MethodGet {
		return &Response{Status: outcome.Status, Header: h, Stream: resp.Body, Outcome: outcome}
	}

	h.Set(HeaderCacheStatus, "MISS")

	body, rest, err := buffer(resp.Body, s.cfg.Cache.MaxBodyBytes)
	if err != nil {
		// The status line already classified as success; deliver what can
		// still be delivered.
		s.logger.Warn("reading origin body failed", "host", pr.Host, "path", pr.Path, "err", err)
		drain(resp.Body)
		return &Response{Status: outcome.Status, Header: h, Body: body, Outcome: outcome}
	}
	if rest != nil {
		// Too large to buffer: stream and skip the cache write.
		return &Response{Status: outcome.Status, Header: h, Stream: rest, Outcome: outcome}
	}
	drain(resp.Body)

	if outcome.Status == http.StatusOK {
		s.storeDeferred(pr.Method, key, &cache.Entry{
			Status: outcome.Status,
			Header: cacheableHeader(h),
			Body:   body,
		})
	}

	return &Response{Status: outcome.Status, Header: h, Body: body, Outcome: outcome}
}

func (s *ProxyService) errorResponse(pr *model.ProxyRequest, outcome model.Outcome, start time.Time) *Response {
	doc := errpage.Render(pr.Host, pr.Path, outcome.Status, messageFor(outcome.Status), time.Now())

	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	// Repeated identical failures are common and cheap to serve from edge
	// caches downstream.
	h.Set("Cache-Control", defaultCacheControl)
	h.Set(HeaderProxyHost, pr.Host)
	h.Set(headers.HeaderProxyVersion, s.version)
	h.Set(HeaderResponseTime, elapsedMs(start))

	return &Response{
		Status:  outcome.Status,
		Header:  h,
		Body:    doc,
		Outcome: outcome,
	}
}

// storeDeferred schedules a cache write to run after the response has been
// returned; the gateway applies the admission policy.
func (s *ProxyService) storeDeferred(method string, key cache.Key, entry *cache.Entry) {
	if !cache.Admissible(method, entry.Status) {
		return
	}
	s.tasks.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		s.gateway.Store(ctx, key, method, entry)
	})
}

func (s *ProxyService) emit(pr *model.ProxyRequest, outcome model.Outcome, start time.Time) {
	ev := telemetry.Event{
		Kind:       telemetry.KindRequest,
		Hostname:   pr.Host,
		Path:       pr.Path,
		Method:     pr.Method,
		Status:     outcome.Status,
		Outcome:    outcome.Kind.String(),
		DurationMs: time.Since(start).Milliseconds(),
		Country:    pr.Country,
		UserAgent:  pr.UserAgent,
		Referer:    pr.Referer,
	}
	if outcome.Kind == model.OutcomeRedirect {
		ev.Kind = telemetry.KindRedirect
		ev.Target = outcome.Location
	}
	s.emitter.Emit(ev)
}

// messageFor maps a client-facing status onto an author-controlled cause
// string. Origin error detail never appears here.
func messageFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "This link does not exist or has expired."
	case http.StatusInternalServerError:
		return "The backend could not complete the request. Please try again shortly."
	case http.StatusBadGateway:
		return "The backend is currently unreachable."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again shortly."
	default:
		return "The request could not be completed."
	}
}

// cacheableHeader copies the headers worth replaying from cache, dropping
// per-request values (timing, cache status, reflected CORS origin).
func cacheableHeader(h http.Header) http.Header {
	out := http.Header{}
	for _, k := range []string{"Content-Type", "Cache-Control", "Location"} {
		if v := h.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	out.Set("Access-Control-Allow-Origin", "*")
	return out
}

// buffer reads the body up to limit bytes. When the body fits, rest is nil
// and the full content is returned. When it exceeds the limit, the buffered
// prefix is stitched back onto the remaining stream.
func buffer(body io.ReadCloser, limit int64) ([]byte, io.ReadCloser, error) {
	buf, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return buf, nil, err
	}
	if int64(len(buf)) > limit {
		return nil, &prefixedReadCloser{
			Reader: io.MultiReader(bytes.NewReader(buf), body),
			closer: body,
		}, nil
	}
	return buf, nil, nil
}

type prefixedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (p *prefixedReadCloser) Close() error { return p.closer.Close() }

func drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}

func elapsedMs(start time.Time) string {
	return strconv.FormatInt(time.Since(start).Milliseconds(), 10) + "ms"
}
