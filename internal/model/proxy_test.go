package model

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		header   http.Header
		err      error
		wantKind OutcomeKind
		want     Outcome
	}{
		{
			name:     "transport failure",
			err:      errors.New("dial tcp: connection refused"),
			wantKind: OutcomeTransportFailure,
			want:     Outcome{Status: 500},
		},
		{
			name:     "200 with content type",
			status:   200,
			header:   http.Header{"Content-Type": {"application/json"}},
			wantKind: OutcomeSuccess,
			want:     Outcome{Status: 200, ContentType: "application/json"},
		},
		{
			name:     "200 without content type defaults to text/html",
			status:   200,
			header:   http.Header{},
			wantKind: OutcomeSuccess,
			want:     Outcome{Status: 200, ContentType: "text/html"},
		},
		{
			name:     "301 with location",
			status:   301,
			header:   http.Header{"Location": {"https://dest.example/x"}},
			wantKind: OutcomeRedirect,
			want:     Outcome{Status: 301, Location: "https://dest.example/x"},
		},
		{
			name:     "307 with location",
			status:   307,
			header:   http.Header{"Location": {"https://dest.example/y"}},
			wantKind: OutcomeRedirect,
			want:     Outcome{Status: 307, Location: "https://dest.example/y"},
		},
		{
			name:     "302 without location falls through to origin error",
			status:   302,
			header:   http.Header{},
			wantKind: OutcomeOriginError,
			want:     Outcome{Status: 302},
		},
		{
			name:     "404 origin error",
			status:   404,
			header:   http.Header{},
			wantKind: OutcomeOriginError,
			want:     Outcome{Status: 404},
		},
		{
			name:     "503 origin error",
			status:   503,
			header:   http.Header{},
			wantKind: OutcomeOriginError,
			want:     Outcome{Status: 503},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *OriginResponse
			if tt.err == nil {
				resp = &OriginResponse{StatusCode: tt.status, Header: tt.header}
			}
			got := Classify(resp, tt.err)

			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Status != tt.want.Status {
				t.Errorf("Status = %d, want %d", got.Status, tt.want.Status)
			}
			if got.Location != tt.want.Location {
				t.Errorf("Location = %q, want %q", got.Location, tt.want.Location)
			}
			if tt.want.ContentType != "" && got.ContentType != tt.want.ContentType {
				t.Errorf("ContentType = %q, want %q", got.ContentType, tt.want.ContentType)
			}
		})
	}
}

func TestOutcomeKindString(t *testing.T) {
	tests := []struct {
		kind OutcomeKind
		want string
	}{
		{OutcomeSuccess, "success"},
		{OutcomeRedirect, "redirect"},
		{OutcomeOriginError, "origin_error"},
		{OutcomeTransportFailure, "transport_failure"},
		{OutcomeKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("OutcomeKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
