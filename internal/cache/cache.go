// Package cache implements the edge cache gateway: the admission policy
// deciding what is cacheable and for how long, over a pluggable store.
package cache

import (
	"context"
	"net/http"
	"time"
)

// Key identifies a cached entry. Two requests are cache-equivalent iff the
// triple matches exactly.
type Key struct {
	Host  string
	Path  string
	Query string
}

// String renders the key in a stable, store-friendly form.
func (k Key) String() string {
	if k.Query == "" {
		return k.Host + k.Path
	}
	return k.Host + k.Path + "?" + k.Query
}

// Entry is an immutable stored response with a policy-assigned freshness
// window. Entries expire; they are never invalidated.
type Entry struct {
	Status   int           `json:"status"`
	Header   http.Header   `json:"header"`
	Body     []byte        `json:"body"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

// Expired reports whether the entry's freshness window has passed.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.StoredAt.Add(e.TTL))
}

// Cache is the externally provided cache-service abstraction. Implementations
// guarantee their own internal consistency; callers never assume
// read-after-write consistency.
type Cache interface {
	// Lookup returns the entry for key, or ok=false on a miss.
	Lookup(ctx context.Context, key Key) (*Entry, bool, error)

	// Store persists an entry under key. Concurrent writers for the same
	// key may race; all values for a key within a freshness window derive
	// from the same origin content, so the race is harmless.
	Store(ctx context.Context, key Key, e *Entry) error
}
