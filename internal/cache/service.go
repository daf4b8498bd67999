package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Service is a Cache backed by an external key/value-style HTTP cache
// service: GET {base}/{key} reads an entry, PUT {base}/{key} writes one.
// The service owns storage and eviction; this client only encodes entries.
type Service struct {
	baseURL    string
	httpClient *http.Client
}

var _ Cache = (*Service)(nil)

// NewService creates a cache-service client.
func NewService(baseURL string, timeout time.Duration) *Service {
	return &Service{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// entryURL derives the service URL for a key. Keys are hashed so arbitrary
// hostnames and paths cannot escape the service's key namespace.
func (s *Service) entryURL(key Key) string {
	sum := sha256.Sum256([]byte(key.String()))
	return s.baseURL + "/" + hex.EncodeToString(sum[:])
}

// Lookup fetches an entry from the cache service. A 404 is a miss; decode
// failures are surfaced as errors so the caller can treat them as misses.
func (s *Service) Lookup(ctx context.Context, key Key) (*Entry, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.entryURL(key), http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("build cache lookup: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("cache lookup: unexpected status %d", resp.StatusCode)
	}

	var e Entry
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	if e.Expired(time.Now()) {
		return nil, false, nil
	}
	return &e, true, nil
}

// Store writes an entry to the cache service.
func (s *Service) Store(ctx context.Context, key Key, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.entryURL(key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build cache store: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cache-TTL", fmt.Sprintf("%d", int(e.TTL.Seconds())))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cache store: unexpected status %d", resp.StatusCode)
	}
	return nil
}
