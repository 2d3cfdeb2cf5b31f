// internal/app/features/status/handler.go
package status

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/store/respcache"
	"github.com/dalemusser/hearthgate/internal/app/system/lifecycle"
	"github.com/dalemusser/hearthgate/internal/app/system/refresh"
	"github.com/dalemusser/hearthgate/internal/app/system/replay"
)

// CacheCounter is the counting slice of the response-cache store.
type CacheCounter interface {
	Count(ctx context.Context, instance string) (int64, error)
}

// QueueCounter is the counting slice of the pending-action store.
type QueueCounter interface {
	Counts(ctx context.Context) (pending, dead int64, err error)
}

// ConnectivitySource reports whether the upstream backend is reachable.
type ConnectivitySource interface {
	Online() bool
}

// Handler reports the gateway's operational state: lifecycle phase, cache
// generation, entry counts, queue depth, connectivity, and the most recent
// worker outcomes.
type Handler struct {
	Version      string
	Lifecycle    *lifecycle.Manager
	Cache        CacheCounter
	Queue        QueueCounter
	Connectivity ConnectivitySource
	Replay       *replay.Worker
	Refresh      *refresh.Worker
	Log          *zap.Logger
}

// NewHandler constructs a status Handler.
func NewHandler(version string, lc *lifecycle.Manager, cache CacheCounter, queue QueueCounter, conn ConnectivitySource, rep *replay.Worker, ref *refresh.Worker, logger *zap.Logger) *Handler {
	return &Handler{
		Version:      version,
		Lifecycle:    lc,
		Cache:        cache,
		Queue:        queue,
		Connectivity: conn,
		Replay:       rep,
		Refresh:      ref,
		Log:          logger,
	}
}

type cacheStatus struct {
	Instance string `json:"instance"`
	Entries  int64  `json:"entries"`
}

type queueStatus struct {
	Pending int64 `json:"pending"`
	Dead    int64 `json:"dead"`
}

type statusResponse struct {
	Version     string          `json:"version"`
	Lifecycle   lifecycle.State `json:"lifecycle"`
	Online      bool            `json:"online"`
	StaticCache cacheStatus     `json:"static_cache"`
	APICache    cacheStatus     `json:"api_cache"`
	Queue       queueStatus     `json:"queue"`
	LastReplay  replay.Outcome  `json:"last_replay"`
	LastRefresh refresh.Outcome `json:"last_refresh"`
}

// Serve handles GET /hearthgate/status.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := statusResponse{
		Version:     h.Version,
		Lifecycle:   h.Lifecycle.State(),
		Online:      h.Connectivity.Online(),
		StaticCache: cacheStatus{Instance: respcache.StaticInstance(h.Version)},
		APICache:    cacheStatus{Instance: respcache.APIInstance(h.Version)},
		LastReplay:  h.Replay.LastOutcome(),
		LastRefresh: h.Refresh.LastOutcome(),
	}

	var err error
	if resp.StaticCache.Entries, err = h.Cache.Count(ctx, resp.StaticCache.Instance); err != nil {
		h.Log.Error("status: static cache count failed", zap.Error(err))
	}
	if resp.APICache.Entries, err = h.Cache.Count(ctx, resp.APICache.Instance); err != nil {
		h.Log.Error("status: api cache count failed", zap.Error(err))
	}
	if resp.Queue.Pending, resp.Queue.Dead, err = h.Queue.Counts(ctx); err != nil {
		h.Log.Error("status: queue counts failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
