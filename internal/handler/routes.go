package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edge-proxy-go/internal/config"
	"edge-proxy-go/internal/metrics"
)

// RegisterRoutes wires the route handlers onto the Echo instance. Everything
// except the metrics endpoint goes through the hostname-routing proxy handler
// so that bypass domains keep precedence over the operational paths.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler) {
	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(
			promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		))
	}

	e.Any("/", proxy.Handle)
	e.Any("/*", proxy.Handle)
}
