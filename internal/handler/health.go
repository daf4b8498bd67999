package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"edge-proxy-go/internal/client"
	"edge-proxy-go/internal/config"
)

// HealthHandler probes the origin and reports edge health.
type HealthHandler struct {
	cfg    *config.Config
	client *client.OriginClient
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, c *client.OriginClient, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:    cfg,
		client: c,
		logger: logger.With("component", "health_handler"),
	}
}

// healthResponse is the JSON body served on the health routes.
type healthResponse struct {
	Healthy   bool   `json:"healthy"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health probes the origin's health sub-path and reports 200 when the probe
// succeeds, 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	probeURL := h.cfg.Origin.BaseURL + h.cfg.Origin.HealthPath

	resp, err := h.client.DoStream(c.Request().Context(), http.MethodGet, probeURL, http.Header{}, nil)

	status := 0
	healthy := false
	if err != nil {
		h.logger.Warn("origin health probe failed", "err", err)
	} else {
		status = resp.StatusCode
		healthy = status >= 200 && status < 300
		_ = resp.Body.Close()
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, healthResponse{
		Healthy:   healthy,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
