package cache

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeCacheService is a minimal key/value HTTP cache for tests.
type fakeCacheService struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (f *fakeCacheService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		data, ok := f.entries[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.entries[r.URL.Path] = body
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestService_RoundTrip(t *testing.T) {
	fake := &fakeCacheService{entries: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewService(srv.URL, 5*time.Second)
	key := Key{Host: "customer1.example", Path: "/abc123"}
	e := &Entry{
		Status:   301,
		Header:   http.Header{"Location": {"https://dest.example/x"}},
		StoredAt: time.Now(),
		TTL:      300 * time.Second,
	}

	if err := s.Store(context.Background(), key, e); err != nil {
		t.Fatalf("Store error = %v", err)
	}

	got, ok, err := s.Lookup(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("Lookup = (%v, %v), want hit", ok, err)
	}
	if got.Status != 301 || got.Header.Get("Location") != "https://dest.example/x" {
		t.Errorf("entry = %+v", got)
	}
}

func TestService_Miss(t *testing.T) {
	fake := &fakeCacheService{entries: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewService(srv.URL, 5*time.Second)
	_, ok, err := s.Lookup(context.Background(), Key{Host: "h", Path: "/missing"})
	if err != nil {
		t.Fatalf("Lookup error = %v", err)
	}
	if ok {
		t.Error("missing key should miss")
	}
}

func TestService_ExpiredEntryMisses(t *testing.T) {
	fake := &fakeCacheService{entries: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewService(srv.URL, 5*time.Second)
	key := Key{Host: "h", Path: "/p"}
	stale := &Entry{Status: 200, StoredAt: time.Now().Add(-time.Hour), TTL: time.Minute}
	data, _ := json.Marshal(stale)
	fake.entries[pathFor(s, key)] = data

	if _, ok, _ := s.Lookup(context.Background(), key); ok {
		t.Error("stale entry should miss")
	}
}

func TestService_StoreErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewService(srv.URL, 5*time.Second)
	err := s.Store(context.Background(), Key{Host: "h", Path: "/p"}, &Entry{Status: 200})
	if err == nil {
		t.Error("Store should surface non-2xx service responses")
	}
}

func TestService_LookupTransportError(t *testing.T) {
	s := NewService("http://127.0.0.1:1", 100*time.Millisecond)
	_, _, err := s.Lookup(context.Background(), Key{Host: "h", Path: "/p"})
	if err == nil {
		t.Error("Lookup should surface transport failures")
	}
}

// pathFor extracts the service key path, keeping the hashing private to the
// implementation.
func pathFor(s *Service, key Key) string {
	u := s.entryURL(key)
	return u[len(s.baseURL):]
}
