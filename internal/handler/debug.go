package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-proxy-go/internal/config"
	"edge-proxy-go/internal/headers"
	"edge-proxy-go/internal/router"
)

// DebugHandler serves request-metadata dumps for troubleshooting routing and
// header decisions. The route is disabled by default and, when enabled,
// requires the configured token; it exposes request headers and the resolved
// backend URL and must not be open to the public internet.
type DebugHandler struct {
	cfg     *config.Config
	router  *router.Router
	version Version
}

// Version is a string type for dependency injection of the build version.
type Version string

// NewDebugHandler creates a DebugHandler.
func NewDebugHandler(cfg *config.Config, r *router.Router, v Version) *DebugHandler {
	return &DebugHandler{cfg: cfg, router: r, version: v}
}

// debugResponse is the JSON body served on the debug routes.
type debugResponse struct {
	Hostname      string              `json:"hostname"`
	EffectiveHost string              `json:"effective_host"`
	Path          string              `json:"path"`
	Method        string              `json:"method"`
	BackendURL    string              `json:"backend_url"`
	Version       string              `json:"version"`
	RequestID     string              `json:"request_id,omitempty"`
	Country       string              `json:"country,omitempty"`
	Headers       map[string][]string `json:"headers"`
}

// Debug dumps request metadata. Hidden (404) unless enabled and, when a token
// is configured, authorized via X-Debug-Token.
func (h *DebugHandler) Debug(c echo.Context) error {
	if !h.cfg.Debug.Enabled {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if token := h.cfg.Debug.Token; token != "" {
		supplied := c.Request().Header.Get("X-Debug-Token")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			return echo.NewHTTPError(http.StatusNotFound)
		}
	}

	req := c.Request()
	host := router.Hostname(req.Host)
	decision := h.router.Route(host, req.URL.Path)

	return c.JSON(http.StatusOK, debugResponse{
		Hostname:      host,
		EffectiveHost: decision.EffectiveHost,
		Path:          req.URL.Path,
		Method:        req.Method,
		BackendURL:    h.cfg.Origin.BaseURL,
		Version:       string(h.version),
		RequestID:     c.Response().Header().Get(echo.HeaderXRequestID),
		Country:       req.Header.Get(headers.EdgeCountry),
		Headers:       req.Header.Clone(),
	})
}
