// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/edge-proxy/config.toml",
	"configs/config.toml",
}

// defaultBackendURL is the fallback origin used when no backend is configured.
const defaultBackendURL = "https://app.linkedge.dev"

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config     string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host       string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port       int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendURL string `kong:"help='Origin base URL (overrides config).',env='BACKEND_URL'"`
	LogLevel   string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Debug      bool   `kong:"help='Enable debug logging.',env='DEBUG'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Origin    OriginConfig    `toml:"origin"`
	Edge      EdgeConfig      `toml:"edge"`
	Cache     CacheConfig     `toml:"cache"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Debug     DebugConfig     `toml:"debug"`
	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8080); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// OriginConfig holds backend origin connection settings.
type OriginConfig struct {
	BaseURL         string `toml:"base_url"`
	HealthPath      string `toml:"health_path"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
}

// EdgeConfig holds hostname routing settings.
type EdgeConfig struct {
	// DefaultDomain is the platform's own domain; requests arriving on it
	// are mapped to customer hostnames via PathHostnames.
	DefaultDomain string `toml:"default_domain"`

	// BypassDomains are first-party domains served without any rewriting.
	BypassDomains []string `toml:"bypass_domains"`

	// PathHostnames maps a leading path segment on the default domain to a
	// customer hostname, e.g. "promo" = "promo.customer.example".
	PathHostnames map[string]string `toml:"path_hostnames"`
}

// CacheConfig holds edge cache settings. When ServiceURL is empty an
// in-process cache is used.
type CacheConfig struct {
	ServiceURL   string `toml:"service_url"`
	TTLSeconds   int    `toml:"ttl_seconds"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// TelemetryConfig holds the analytics sink settings. Telemetry is disabled
// when Endpoint is empty.
type TelemetryConfig struct {
	Endpoint       string `toml:"endpoint"`
	QueueSize      int    `toml:"queue_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DebugConfig controls the diagnostic route.
type DebugConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file (if any) and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/edge-proxy/config.toml then configs/config.toml. A missing file is not
// an error: the proxy can run entirely from environment defaults.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// Reload re-reads the config from an explicit path, reapplying the original
// CLI overrides. Used by the routing-table watcher.
func Reload(path string, cli *CLI) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendURL != "" {
		c.Origin.BaseURL = cli.BackendURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	// DEBUG raises log verbosity only; the diagnostics route stays gated by
	// the [debug] config section.
	if cli.Debug {
		c.Log.Level = "debug"
	}
}

func (c *Config) validate() error {
	// Origin URL: must parse when set (defaulted otherwise).
	if c.Origin.BaseURL != "" {
		u, err := url.Parse(c.Origin.BaseURL)
		if err != nil {
			return fmt.Errorf("origin.base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("origin.base_url must use http or https; got %q", c.Origin.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("origin.base_url has no host; got %q", c.Origin.BaseURL)
		}
	}

	if c.Telemetry.Endpoint != "" {
		u, err := url.Parse(c.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry.endpoint is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("telemetry.endpoint must use http or https; got %q", c.Telemetry.Endpoint)
		}
	}

	if c.Cache.ServiceURL != "" {
		u, err := url.Parse(c.Cache.ServiceURL)
		if err != nil {
			return fmt.Errorf("cache.service_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("cache.service_url must use http or https; got %q", c.Cache.ServiceURL)
		}
	}

	// Hostname mapping values must look like hostnames, not URLs.
	for seg, host := range c.Edge.PathHostnames {
		if seg == "" || strings.Contains(seg, "/") {
			return fmt.Errorf("edge.path_hostnames key %q must be a single path segment", seg)
		}
		if host == "" || strings.Contains(host, "/") {
			return fmt.Errorf("edge.path_hostnames[%q] must be a bare hostname; got %q", seg, host)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Origin.TimeoutSeconds < 0 {
		return fmt.Errorf("origin.timeout_seconds must be non-negative; got %d", c.Origin.TimeoutSeconds)
	}
	if c.Origin.IdleConnections < 0 {
		return fmt.Errorf("origin.idle_connections must be non-negative; got %d", c.Origin.IdleConnections)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must be non-negative; got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.MaxBodyBytes < 0 {
		return fmt.Errorf("cache.max_body_bytes must be non-negative; got %d", c.Cache.MaxBodyBytes)
	}
	if c.Telemetry.QueueSize < 0 {
		return fmt.Errorf("telemetry.queue_size must be non-negative; got %d", c.Telemetry.QueueSize)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/health", "/_health", "/debug", "/_debug"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, TTLSeconds, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Origin.BaseURL == "" {
		c.Origin.BaseURL = defaultBackendURL
	}
	if c.Origin.HealthPath == "" {
		c.Origin.HealthPath = "/api/health"
	}
	if c.Origin.TimeoutSeconds == 0 {
		c.Origin.TimeoutSeconds = 30
	}
	if c.Origin.IdleConnections == 0 {
		c.Origin.IdleConnections = 100
	}
	if c.Edge.DefaultDomain == "" {
		c.Edge.DefaultDomain = "edge.linkedge.dev"
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.Cache.MaxBodyBytes == 0 {
		c.Cache.MaxBodyBytes = 1024 * 1024 // 1 MiB
	}
	if c.Telemetry.QueueSize == 0 {
		c.Telemetry.QueueSize = 1024
	}
	if c.Telemetry.TimeoutSeconds == 0 {
		c.Telemetry.TimeoutSeconds = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FilePath returns the resolved config file path, or empty string when the
// proxy is running from defaults only.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
