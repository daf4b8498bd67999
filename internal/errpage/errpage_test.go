package errpage

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{404, "Link Not Found"},
		{500, "Server Error"},
		{502, "Backend Unavailable"},
		{503, "Service Unavailable"},
		{418, "Error"},
		{302, "Error"},
	}
	for _, tt := range tests {
		if got := Title(tt.status); got != tt.want {
			t.Errorf("Title(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRender_ContainsContext(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := string(Render("customer1.example", "/missing", 404, "This link does not exist.", now))

	for _, want := range []string{
		"404",
		"Link Not Found",
		"customer1.example",
		"/missing",
		"This link does not exist.",
		"2025-06-01T12:00:00Z",
		"<!DOCTYPE html>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := Render("h.example", "/p", 500, "msg", now)
	b := Render("h.example", "/p", 500, "msg", now)
	if !bytes.Equal(a, b) {
		t.Error("identical inputs should render identical documents")
	}
}

func TestRender_EscapesUntrustedPath(t *testing.T) {
	now := time.Now()
	doc := string(Render("h.example", "/<script>alert(1)</script>", 404, "m", now))
	if strings.Contains(doc, "<script>") {
		t.Error("path was not HTML-escaped")
	}
}

func TestLanding(t *testing.T) {
	doc := string(Landing("edge.linkedge.dev"))
	if !strings.Contains(doc, "edge.linkedge.dev") {
		t.Error("landing page missing domain")
	}
	if !strings.Contains(doc, "<!DOCTYPE html>") {
		t.Error("landing page is not a full document")
	}
}
