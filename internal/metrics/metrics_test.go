package metrics

import "testing"

func TestNew_RegistersCollectors(t *testing.T) {
	m := New()

	m.RequestsTotal.WithLabelValues("GET", "200", "proxy").Inc()
	m.CacheLookups.WithLabelValues("hit").Inc()
	m.TelemetryEvents.WithLabelValues("dropped").Inc()
	m.TableReloads.WithLabelValues("ok").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"edge_proxy_http_requests_total":         false,
		"edge_proxy_cache_lookups_total":         false,
		"edge_proxy_telemetry_events_total":      false,
		"edge_proxy_routing_table_reloads_total": false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric family %s not gathered", name)
		}
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"XYZZY", "other"},
		{"get", "other"},
	}
	for _, tt := range tests {
		if got := NormalizeMethod(tt.in); got != tt.want {
			t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/health", "/health"},
		{"/_health", "/health"},
		{"/debug", "/debug"},
		{"/_debug", "/debug"},
		{"/metrics", "/metrics"},
		{"/abc123", "proxy"},
		{"/", "proxy"},
		{"/health/nested", "proxy"},
	}
	for _, tt := range tests {
		if got := NormalizeRoute(tt.in); got != tt.want {
			t.Errorf("NormalizeRoute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
