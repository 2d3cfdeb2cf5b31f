// internal/app/features/gateway/handler.go
package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/system/strategy"
	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// maxBodyBytes caps how much of a mutating request body the gateway will
// buffer for queueing. Bodies over the cap are rejected outright: forwarding
// or queueing a truncated body would corrupt the mutation while telling the
// client it succeeded.
const maxBodyBytes = 10 << 20

// ActionQueue is the enqueue slice of the pending-action store.
type ActionQueue interface {
	Enqueue(ctx context.Context, action *models.PendingAction) error
}

// Handler is the request router: every request the dashboard issues lands
// here, gets classified by path, and is dispatched to the matching strategy.
// The handler itself never touches cache or network — that is the
// strategies' job. Its one side duty is queueing mutations the upstream
// could not be reached for.
type Handler struct {
	API       *strategy.NetworkFirst
	Static    *strategy.CacheFirst
	Queue     ActionQueue
	APIPrefix string
	Log       *zap.Logger
}

// NewHandler constructs the gateway Handler.
func NewHandler(api *strategy.NetworkFirst, static *strategy.CacheFirst, queue ActionQueue, apiPrefix string, logger *zap.Logger) *Handler {
	return &Handler{
		API:       api,
		Static:    static,
		Queue:     queue,
		APIPrefix: apiPrefix,
		Log:       logger,
	}
}

// Serve intercepts one request. Classification is pure path matching:
// the API prefix selects the network-first strategy, everything else is a
// static asset. Non-GET requests always take the network path because
// mutations are never served from cache.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, h.APIPrefix) || r.Method != http.MethodGet {
		h.serveAPI(w, r)
		return
	}
	h.serveStatic(w, r)
}

func (h *Handler) serveAPI(w http.ResponseWriter, r *http.Request) {
	// Read one byte past the cap so an oversized body is detected instead
	// of silently truncated.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	result, err := h.API.Fetch(r.Context(), r.Method, r.URL.RequestURI(), r.Header, body)
	if err == nil {
		h.write(w, result)
		return
	}

	if errors.Is(err, strategy.ErrUpstreamUnreachable) && r.Method != http.MethodGet {
		h.queueAction(w, r, body, err)
		return
	}

	h.Log.Warn("api request failed",
		zap.String("method", r.Method),
		zap.String("url", r.URL.RequestURI()),
		zap.Error(err))
	http.Error(w, "upstream unavailable", http.StatusBadGateway)
}

func (h *Handler) serveStatic(w http.ResponseWriter, r *http.Request) {
	result, err := h.Static.Fetch(r.Context(), r.URL.RequestURI(), r.Header)
	if err != nil {
		h.Log.Warn("static request failed",
			zap.String("url", r.URL.RequestURI()),
			zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	h.write(w, result)
}

// queueAction captures a mutation that could not reach the upstream.
// The client gets the structured offline payload with the queued marker so
// it can tell "saved for later" apart from "lost".
func (h *Handler) queueAction(w http.ResponseWriter, r *http.Request, body []byte, cause error) {
	action := &models.PendingAction{
		URL:        r.URL.RequestURI(),
		Method:     r.Method,
		Header:     models.CopyHeader(r.Header),
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.Queue.Enqueue(r.Context(), action); err != nil {
		// The one case we cannot degrade: offline and the queue write
		// failed. The caller has to know the action was dropped.
		h.Log.Error("failed to queue offline action",
			zap.String("method", r.Method),
			zap.String("url", r.URL.RequestURI()),
			zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	h.Log.Info("queued offline action",
		zap.String("id", action.ID),
		zap.String("method", action.Method),
		zap.String("url", action.URL),
		zap.NamedError("cause", cause))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write(strategy.QueuedBody(action.ID))
}

func (h *Handler) write(w http.ResponseWriter, result *strategy.Result) {
	if err := result.Write(w); err != nil {
		h.Log.Debug("client went away mid-response", zap.Error(err))
	}
}
