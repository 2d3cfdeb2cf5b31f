package strategy_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/system/strategy"
	"github.com/dalemusser/hearthgate/internal/domain/models"
	"github.com/dalemusser/hearthgate/internal/testutil"
)

const apiInstance = "api-responses-v1"

func newNetworkFirst(t *testing.T, upstream string, cache strategy.ResponseCache) *strategy.NetworkFirst {
	t.Helper()
	u, err := url.Parse(upstream)
	if err != nil {
		t.Fatalf("parse upstream: %v", err)
	}
	return &strategy.NetworkFirst{
		Upstream: u,
		Client:   &http.Client{Timeout: 5 * time.Second},
		Cache:    cache,
		Instance: apiInstance,
		Critical: strategy.NewCriticalSet([]string{"/api/dashboard/health", "/api/family/members"}),
		Log:      zap.NewNop(),
	}
}

func TestNetworkFirst_GETSuccessCachesResponse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	cache := testutil.NewMemoryCache()
	nf := newNetworkFirst(t, srv.URL, cache)

	res, err := nf.Fetch(context.Background(), "GET", "/api/dashboard/health", http.Header{}, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Source != strategy.SourceNetwork {
		t.Errorf("source: got %q, want network", res.Source)
	}
	if string(res.Body) != `{"status":"ok"}` {
		t.Errorf("body: got %q", res.Body)
	}

	entry, err := cache.Get(context.Background(), apiInstance, models.CacheKey("GET", "/api/dashboard/health"))
	if err != nil {
		t.Fatalf("cache read: %v", err)
	}
	if entry == nil {
		t.Fatal("expected cache entry after successful GET")
	}
	if string(entry.Body) != `{"status":"ok"}` {
		t.Errorf("cached body: got %q", entry.Body)
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits: got %d, want 1", hits.Load())
	}
}

func TestNetworkFirst_FreshnessOverwritesCache(t *testing.T) {
	payload := atomic.Value{}
	payload.Store(`{"rev":1}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload.Load().(string)))
	}))
	defer srv.Close()

	cache := testutil.NewMemoryCache()
	nf := newNetworkFirst(t, srv.URL, cache)
	ctx := context.Background()

	if _, err := nf.Fetch(ctx, "GET", "/api/dashboard/activity", http.Header{}, nil); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	payload.Store(`{"rev":2}`)
	res, err := nf.Fetch(ctx, "GET", "/api/dashboard/activity", http.Header{}, nil)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if string(res.Body) != `{"rev":2}` {
		t.Errorf("live body: got %q, want rev 2", res.Body)
	}

	entry, _ := cache.Get(ctx, apiInstance, models.CacheKey("GET", "/api/dashboard/activity"))
	if entry == nil || string(entry.Body) != `{"rev":2}` {
		t.Errorf("cache not updated to latest network response: %+v", entry)
	}
}

func TestNetworkFirst_MutationNeverCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"a1"}`))
	}))
	defer srv.Close()

	cache := testutil.NewMemoryCache()
	nf := newNetworkFirst(t, srv.URL, cache)

	res, err := nf.Fetch(context.Background(), "POST", "/api/dashboard/alerts", http.Header{}, []byte(`{}`))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Status != http.StatusCreated {
		t.Errorf("status: got %d", res.Status)
	}

	if n, _ := cache.Count(context.Background(), apiInstance); n != 0 {
		t.Errorf("mutations must not be cached, found %d entries", n)
	}
}

func TestNetworkFirst_OfflineServesCachedCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"members":["amy","ben"]}`))
	}))

	cache := testutil.NewMemoryCache()
	nf := newNetworkFirst(t, srv.URL, cache)
	ctx := context.Background()

	if _, err := nf.Fetch(ctx, "GET", "/api/family/members", http.Header{}, nil); err != nil {
		t.Fatalf("online fetch: %v", err)
	}

	srv.Close() // network goes away

	res, err := nf.Fetch(ctx, "GET", "/api/family/members", http.Header{}, nil)
	if err != nil {
		t.Fatalf("offline fetch should fall back to cache: %v", err)
	}
	if res.Source != strategy.SourceCache {
		t.Errorf("source: got %q, want cache", res.Source)
	}
	if string(res.Body) != `{"members":["amy","ben"]}` {
		t.Errorf("body: got %q", res.Body)
	}
	if res.Header.Get("X-Hearthgate-Cache") != "stale" {
		t.Error("cached fallback should be marked stale")
	}
}

func TestNetworkFirst_OfflineCriticalSynthesizesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // never reachable

	nf := newNetworkFirst(t, srv.URL, testutil.NewMemoryCache())

	res, err := nf.Fetch(context.Background(), "GET", "/api/dashboard/health", http.Header{}, nil)
	if err != nil {
		t.Fatalf("critical GET must never fail: %v", err)
	}
	if res.Status != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", res.Status)
	}
	if res.Source != strategy.SourceOffline {
		t.Errorf("source: got %q, want offline", res.Source)
	}

	var payload struct {
		Error     string `json:"error"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
		Offline   bool   `json:"offline"`
	}
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		t.Fatalf("offline payload is not JSON: %v", err)
	}
	if payload.Error != "Offline" || !payload.Offline {
		t.Errorf("payload: %+v", payload)
	}
	if payload.Message == "" {
		t.Error("payload message must be human-readable, got empty")
	}
	if _, err := time.Parse(time.RFC3339, payload.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339: %q", payload.Timestamp)
	}
}

func TestNetworkFirst_OfflineNonCriticalPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	nf := newNetworkFirst(t, srv.URL, testutil.NewMemoryCache())

	_, err := nf.Fetch(context.Background(), "GET", "/api/memories", http.Header{}, nil)
	if err == nil {
		t.Fatal("expected failure for non-critical uncached endpoint")
	}
}

func TestNetworkFirst_ForwardsEncodedPathsVerbatim(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.EscapedPath())
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	nf := newNetworkFirst(t, srv.URL, testutil.NewMemoryCache())

	// %2F inside a segment must not be rewritten to a path separator.
	if _, err := nf.Fetch(context.Background(), "GET", "/api/files/reports%2F2026?raw=1", http.Header{}, nil); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := gotPath.Load(); got != "/api/files/reports%2F2026" {
		t.Errorf("upstream path: got %q, want the encoded segment preserved", got)
	}
}

func TestNetworkFirst_OfflineMutationReportsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	nf := newNetworkFirst(t, srv.URL, testutil.NewMemoryCache())

	_, err := nf.Fetch(context.Background(), "POST", "/api/dashboard/alerts", http.Header{}, []byte(`{}`))
	if !errors.Is(err, strategy.ErrUpstreamUnreachable) {
		t.Fatalf("expected ErrUpstreamUnreachable, got %v", err)
	}
}
