package status_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/features/status"
	"github.com/dalemusser/hearthgate/internal/app/store/respcache"
	"github.com/dalemusser/hearthgate/internal/app/system/lifecycle"
	"github.com/dalemusser/hearthgate/internal/app/system/refresh"
	"github.com/dalemusser/hearthgate/internal/app/system/replay"
	"github.com/dalemusser/hearthgate/internal/app/system/strategy"
	"github.com/dalemusser/hearthgate/internal/domain/models"
	"github.com/dalemusser/hearthgate/internal/testutil"
)

type stubConnectivity struct{ online bool }

func (s stubConnectivity) Online() bool { return s.online }

func newStatusHandler(t *testing.T, version string, cache *testutil.MemoryCache, queue *testutil.MemoryQueue, online bool) *status.Handler {
	t.Helper()
	u, err := url.Parse("http://backend.invalid")
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Timeout: time.Second}
	logger := zap.NewNop()

	mgr := lifecycle.NewManager(version, nil, u, client, cache, &testutil.MemoryMarker{}, logger)
	rep := replay.NewWorker(queue, u, client, logger, time.Hour, 25)
	critical := strategy.NewCriticalSet(nil)
	api := &strategy.NetworkFirst{
		Upstream: u,
		Client:   client,
		Cache:    cache,
		Instance: respcache.APIInstance(version),
		Critical: critical,
		Log:      logger,
	}
	ref := refresh.NewWorker(api, critical, logger, time.Hour)

	return status.NewHandler(version, mgr, cache, queue, stubConnectivity{online: online}, rep, ref, logger)
}

func TestServe_ReportsCachesQueueAndConnectivity(t *testing.T) {
	ctx := context.Background()
	cache := testutil.NewMemoryCache()
	queue := testutil.NewMemoryQueue()

	static := respcache.StaticInstance("v4")
	for _, key := range []string{"GET /", "GET /app.js", "GET /styles.css"} {
		if err := cache.Put(ctx, static, &models.CachedResponse{Key: key, Status: 200}); err != nil {
			t.Fatal(err)
		}
	}
	if err := cache.Put(ctx, respcache.APIInstance("v4"), &models.CachedResponse{Key: "GET /api/family", Status: 200}); err != nil {
		t.Fatal(err)
	}

	if err := queue.Enqueue(ctx, &models.PendingAction{URL: "/api/tasks", Method: http.MethodPost}); err != nil {
		t.Fatal(err)
	}
	dead := &models.PendingAction{URL: "/api/old", Method: http.MethodPost}
	if err := queue.Enqueue(ctx, dead); err != nil {
		t.Fatal(err)
	}
	if err := queue.MarkDead(ctx, dead.ID, "rejected by upstream: status 404"); err != nil {
		t.Fatal(err)
	}

	h := newStatusHandler(t, "v4", cache, queue, true)

	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/hearthgate/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	var resp struct {
		Version     string `json:"version"`
		Lifecycle   string `json:"lifecycle"`
		Online      bool   `json:"online"`
		StaticCache struct {
			Instance string `json:"instance"`
			Entries  int64  `json:"entries"`
		} `json:"static_cache"`
		APICache struct {
			Instance string `json:"instance"`
			Entries  int64  `json:"entries"`
		} `json:"api_cache"`
		Queue struct {
			Pending int64 `json:"pending"`
			Dead    int64 `json:"dead"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Version != "v4" {
		t.Errorf("version: %q", resp.Version)
	}
	if resp.Lifecycle != string(lifecycle.StateUninstalled) {
		t.Errorf("lifecycle: %q", resp.Lifecycle)
	}
	if !resp.Online {
		t.Error("online: got false")
	}
	if resp.StaticCache.Instance != "static-v4" || resp.StaticCache.Entries != 3 {
		t.Errorf("static cache: %+v", resp.StaticCache)
	}
	if resp.APICache.Instance != "api-responses-v4" || resp.APICache.Entries != 1 {
		t.Errorf("api cache: %+v", resp.APICache)
	}
	if resp.Queue.Pending != 1 || resp.Queue.Dead != 1 {
		t.Errorf("queue: %+v", resp.Queue)
	}
}

func TestServe_OfflineReported(t *testing.T) {
	h := newStatusHandler(t, "v1", testutil.NewMemoryCache(), testutil.NewMemoryQueue(), false)

	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/hearthgate/status", nil))

	var resp struct {
		Online bool `json:"online"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Online {
		t.Error("online: got true, want false")
	}
}
