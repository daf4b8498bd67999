package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cli := &CLI{Config: ""}
	// Ensure the search paths do not resolve inside the test environment.
	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Origin.BaseURL != defaultBackendURL {
		t.Errorf("Origin.BaseURL = %q, want fallback %q", cfg.Origin.BaseURL, defaultBackendURL)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("Cache.TTLSeconds = %d, want 300", cfg.Cache.TTLSeconds)
	}
	if cfg.Origin.TimeoutSeconds != 30 {
		t.Errorf("Origin.TimeoutSeconds = %d, want 30", cfg.Origin.TimeoutSeconds)
	}
}

func TestLoad_FileAndOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000

[origin]
base_url = "https://backend.example"
timeout_seconds = 15

[edge]
default_domain = "edge.example"
bypass_domains = ["www.example", "example.com"]

[edge.path_hostnames]
promo = "promo.customer.example"

[log]
level = "warn"
format = "text"
`)

	cli := &CLI{Config: path, Port: 9999, BackendURL: "https://override.example"}
	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("CLI port override not applied: got %d", cfg.Server.Port)
	}
	if cfg.Origin.BaseURL != "https://override.example" {
		t.Errorf("BACKEND_URL override not applied: got %q", cfg.Origin.BaseURL)
	}
	if cfg.Edge.PathHostnames["promo"] != "promo.customer.example" {
		t.Errorf("PathHostnames = %v", cfg.Edge.PathHostnames)
	}
	if len(cfg.Edge.BypassDomains) != 2 {
		t.Errorf("BypassDomains = %v, want 2 entries", cfg.Edge.BypassDomains)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_DebugFlag(t *testing.T) {
	cfg, err := Load(&CLI{Debug: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Debug.Enabled {
		t.Error("Debug.Enabled = true; the debug flag must not open the diagnostics route")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			name:    "bad origin scheme",
			content: "[origin]\nbase_url = \"ftp://backend.example\"\n",
			wantSub: "origin.base_url",
		},
		{
			name:    "negative timeout",
			content: "[origin]\ntimeout_seconds = -1\n",
			wantSub: "timeout_seconds",
		},
		{
			name:    "bad port",
			content: "[server]\nport = 70000\n",
			wantSub: "server.port",
		},
		{
			name:    "bad log level",
			content: "[log]\nlevel = \"verbose\"\n",
			wantSub: "log.level",
		},
		{
			name:    "path hostname with slash",
			content: "[edge.path_hostnames]\npromo = \"promo.example/path\"\n",
			wantSub: "path_hostnames",
		},
		{
			name:    "rate limit enabled without rps",
			content: "[server.rate_limit]\nenabled = true\n",
			wantSub: "requests_per_second",
		},
		{
			name:    "metrics path conflicts with health",
			content: "[metrics]\nenabled = true\npath = \"/health\"\n",
			wantSub: "reserved route",
		},
		{
			name:    "bad telemetry endpoint",
			content: "[telemetry]\nendpoint = \"not a url\"\n",
			wantSub: "telemetry.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(&CLI{Config: path})
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestReload(t *testing.T) {
	path := writeConfig(t, `
[edge]
default_domain = "edge.example"

[edge.path_hostnames]
a = "a.example"
`)

	cli := &CLI{Config: path}
	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Edge.PathHostnames["a"] != "a.example" {
		t.Fatalf("PathHostnames = %v", cfg.Edge.PathHostnames)
	}

	updated := `
[edge]
default_domain = "edge.example"

[edge.path_hostnames]
a = "a2.example"
b = "b.example"
`
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	cfg2, err := Reload(path, cli)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if cfg2.Edge.PathHostnames["a"] != "a2.example" || cfg2.Edge.PathHostnames["b"] != "b.example" {
		t.Errorf("reloaded PathHostnames = %v", cfg2.Edge.PathHostnames)
	}
}

func TestFindConfigInPaths(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(existing, []byte(""), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := findConfigInPaths([]string{filepath.Join(dir, "missing.toml"), existing})
	if got != existing {
		t.Errorf("findConfigInPaths = %q, want %q", got, existing)
	}

	if got := findConfigInPaths([]string{filepath.Join(dir, "missing.toml")}); got != "" {
		t.Errorf("findConfigInPaths = %q, want empty", got)
	}
}

func TestAddr(t *testing.T) {
	sc := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := sc.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
}
