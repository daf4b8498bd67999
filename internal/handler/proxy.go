package handler

import (
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-proxy-go/internal/errpage"
	"edge-proxy-go/internal/headers"
	"edge-proxy-go/internal/model"
	"edge-proxy-go/internal/router"
	"edge-proxy-go/internal/service"
)

// ProxyHandler is the catch-all entry point: it routes the hostname and
// dispatches to bypass, the operational routes, or the proxy pipeline.
type ProxyHandler struct {
	service *service.ProxyService
	router  *router.Router
	health  *HealthHandler
	debug   *DebugHandler
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, r *router.Router, health *HealthHandler, debug *DebugHandler, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		router:  r,
		health:  health,
		debug:   debug,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle serves every request not claimed by an operational route.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	host := router.Hostname(req.Host)
	decision := h.router.Route(host, req.URL.Path)

	if decision.Ambiguous {
		h.logger.Debug("no hostname mapping for platform-domain path; proxying best-effort",
			"host", host,
			"path", req.URL.Path,
		)
	}

	pr := h.proxyRequest(c, decision.EffectiveHost)

	switch decision.Kind {
	case router.KindBypass:
		return writeResponse(c, h.service.Bypass(pr), h.logger)
	case router.KindSpecial:
		switch decision.Special {
		case router.SpecialHealth:
			return h.health.Health(c)
		case router.SpecialDebug:
			return h.debug.Debug(c)
		case router.SpecialLanding:
			return c.HTMLBlob(http.StatusOK, errpage.Landing(host))
		}
		return echo.NewHTTPError(http.StatusNotFound)
	default:
		return writeResponse(c, h.service.Proxy(pr), h.logger)
	}
}

// proxyRequest builds the pipeline request from the echo context, resolving
// the trusted edge signals.
func (h *ProxyHandler) proxyRequest(c echo.Context, effectiveHost string) *model.ProxyRequest {
	req := c.Request()

	// Only the edge platform's connecting-IP signal or the transport peer
	// address are trusted; client-supplied forwarding headers never are.
	clientIP := req.Header.Get(headers.EdgeConnectingIP)
	if clientIP == "" {
		clientIP = req.RemoteAddr
		if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
			clientIP = host
		}
	}
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	return &model.ProxyRequest{
		Ctx:       req.Context(),
		Method:    req.Method,
		Host:      effectiveHost,
		Path:      req.URL.Path,
		RawQuery:  req.URL.RawQuery,
		Header:    req.Header,
		Body:      req.Body,
		ClientIP:  clientIP,
		RequestID: requestID,
		Country:   req.Header.Get(headers.EdgeCountry),
		UserAgent: req.UserAgent(),
		Referer:   req.Referer(),
	}
}

// writeResponse copies a constructed service response onto the wire.
func writeResponse(c echo.Context, res *service.Response, logger *slog.Logger) error {
	out := c.Response().Header()
	for key, vals := range res.Header {
		for _, v := range vals {
			out.Add(key, v)
		}
	}

	if res.Stream == nil {
		if len(res.Body) == 0 {
			c.Response().WriteHeader(res.Status)
			return nil
		}
		return c.Blob(res.Status, res.Header.Get("Content-Type"), res.Body)
	}

	defer func() { _ = res.Stream.Close() }()
	c.Response().WriteHeader(res.Status)

	// Stream the body directly to the client. If the copy fails mid-stream
	// (client disconnect, network error), the status line has already been
	// sent; log and move on.
	if _, err := io.Copy(c.Response(), res.Stream); err != nil {
		logger.Error("streaming response body",
			"err", err,
			"path", c.Request().URL.Path,
		)
	}
	return nil
}
