package cache

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestMemory_LookupMiss(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Lookup(context.Background(), Key{Host: "h", Path: "/p"})
	if err != nil {
		t.Fatalf("Lookup error = %v", err)
	}
	if ok {
		t.Error("empty cache should miss")
	}
}

func TestMemory_StoreAndLookup(t *testing.T) {
	m := NewMemory()
	key := Key{Host: "h.example", Path: "/p", Query: "a=1"}
	e := &Entry{
		Status:   200,
		Header:   http.Header{"Content-Type": {"text/html"}},
		Body:     []byte("hello"),
		StoredAt: time.Now(),
		TTL:      time.Minute,
	}

	if err := m.Store(context.Background(), key, e); err != nil {
		t.Fatalf("Store error = %v", err)
	}

	got, ok, err := m.Lookup(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("Lookup = (%v, %v), want hit", ok, err)
	}
	if string(got.Body) != "hello" || got.Status != 200 {
		t.Errorf("entry = %+v", got)
	}
}

func TestMemory_ExpiredEntryMissesAndIsRemoved(t *testing.T) {
	m := NewMemory()
	key := Key{Host: "h.example", Path: "/p"}
	e := &Entry{
		Status:   200,
		StoredAt: time.Now().Add(-10 * time.Minute),
		TTL:      time.Minute,
	}
	_ = m.Store(context.Background(), key, e)

	if _, ok, _ := m.Lookup(context.Background(), key); ok {
		t.Error("expired entry should miss")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry should be removed, Len = %d", m.Len())
	}
}

func TestEntry_Expired(t *testing.T) {
	now := time.Now()
	e := &Entry{StoredAt: now, TTL: 300 * time.Second}

	if e.Expired(now.Add(299 * time.Second)) {
		t.Error("entry should be fresh within the window")
	}
	if !e.Expired(now.Add(301 * time.Second)) {
		t.Error("entry should be expired past the window")
	}
}
