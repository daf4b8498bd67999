package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"edge-proxy-go/internal/cache"
	"edge-proxy-go/internal/client"
	"edge-proxy-go/internal/config"
	"edge-proxy-go/internal/handler"
	"edge-proxy-go/internal/metrics"
	"edge-proxy-go/internal/middleware"
	"edge-proxy-go/internal/router"
	"edge-proxy-go/internal/service"
	"edge-proxy-go/internal/task"
	"edge-proxy-go/internal/telemetry"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// deferredQueueSize bounds the fire-and-forget work queue (cache writes).
const deferredQueueSize = 256

// cacheClientTimeout bounds calls to the external cache service.
const cacheClientTimeout = 5 * time.Second

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("edge-proxy"),
		kong.Description("Hostname-routing edge proxy for short links."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			func() service.Version { return service.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newEcho,
			newRouter,
			newCache,
			newGateway,
			newEmitter,
			newTaskRunner,
			client.NewOriginClient,
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
			handler.NewDebugHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, watchRoutingTable, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0) to avoid cutting off valid long-running streamed
	// responses. Protection is provided by the origin client timeout, ReadTimeout,
	// and IdleTimeout.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.MetricsMiddleware(m))

	if cfg.Server.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func newRouter(cfg *config.Config) *router.Router {
	return router.New(router.TableFromConfig(cfg))
}

func newCache(cfg *config.Config, logger *slog.Logger) cache.Cache {
	if cfg.Cache.ServiceURL != "" {
		logger.Info("using external cache service", "url", cfg.Cache.ServiceURL)
		return cache.NewService(cfg.Cache.ServiceURL, cacheClientTimeout)
	}
	logger.Info("using in-process cache")
	return cache.NewMemory()
}

func newGateway(c cache.Cache, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *cache.Gateway {
	return cache.NewGateway(c, time.Duration(cfg.Cache.TTLSeconds)*time.Second, logger, m)
}

func newEmitter(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) telemetry.Emitter {
	if cfg.Telemetry.Endpoint == "" {
		logger.Info("telemetry disabled")
		return telemetry.Noop{}
	}

	em := telemetry.NewHTTPEmitter(
		cfg.Telemetry.Endpoint,
		cfg.Telemetry.QueueSize,
		time.Duration(cfg.Telemetry.TimeoutSeconds)*time.Second,
		logger,
		m,
	)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			em.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			em.Close()
			return nil
		},
	})
	return em
}

func newTaskRunner(lc fx.Lifecycle, logger *slog.Logger) *task.Runner {
	r := task.NewRunner(deferredQueueSize, logger)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			r.Close()
			return nil
		},
	})
	return r
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

// watchRoutingTable hot-reloads the hostname routing table when the config
// file changes. Reload failures keep the previous table in place.
func watchRoutingTable(lc fx.Lifecycle, cli *config.CLI, cfg *config.Config, rt *router.Router, m *metrics.Metrics, logger *slog.Logger) {
	path := cfg.FilePath()
	if path == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)
				err := config.Watch(ctx, path, logger, func() {
					next, err := config.Reload(path, cli)
					if err != nil {
						m.TableReloads.WithLabelValues("error").Inc()
						logger.Error("config reload failed; keeping previous routing table", "err", err)
						return
					}
					rt.Swap(router.TableFromConfig(next))
					m.TableReloads.WithLabelValues("ok").Inc()
					logger.Info("routing table reloaded", "path", path)
				})
				if err != nil {
					logger.Error("config watcher stopped", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr, "origin", cfg.Origin.BaseURL)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
