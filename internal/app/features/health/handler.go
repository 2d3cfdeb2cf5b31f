package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// pingTimeout bounds the database check so a wedged Mongo cannot hang the
// load balancer's probe.
const pingTimeout = 5 * time.Second

// ConnectivitySource reports whether the upstream backend is reachable.
// Implemented by the connectivity prober.
type ConnectivitySource interface {
	Online() bool
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client   *mongo.Client
	Upstream ConnectivitySource
	Log      *zap.Logger
}

// NewHandler constructs a health Handler.
func NewHandler(client *mongo.Client, upstream ConnectivitySource, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Upstream: upstream,
		Log:      logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Upstream string `json:"upstream"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// The gateway is healthy as long as its own store is reachable; an offline
// upstream is reported but does not fail the check, because serving cached
// data while the backend is down is exactly the gateway's job.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Upstream: "online",
	}
	if h.Upstream != nil && !h.Upstream.Online() {
		resp.Upstream = "offline"
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
