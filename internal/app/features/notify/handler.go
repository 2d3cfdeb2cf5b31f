// internal/app/features/notify/handler.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// Store is the persistence slice the notify feature needs. Implemented by
// store/notifications.Store and by the in-memory store in testutil.
type Store interface {
	Save(ctx context.Context, n *models.Notification) error
	Pending(ctx context.Context) ([]models.Notification, error)
	Ack(ctx context.Context, ids []string) error
	Interact(ctx context.Context, id string) (target string, err error)
}

// Handler implements the notification-display contract: push payloads come
// in, the dashboard collects them, and an interaction resolves to the target
// path the client should open or focus.
type Handler struct {
	Store  Store
	Log    *zap.Logger
	policy *bluemonday.Policy
}

// NewHandler constructs a notify Handler. Payload text is sanitized with a
// strict policy — push content is attacker-reachable input that ends up in
// the dashboard's DOM.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  store,
		Log:    logger,
		policy: bluemonday.StrictPolicy(),
	}
}

// pushRequest is the accepted push payload.
type pushRequest struct {
	Title   string                      `json:"title"`
	Body    string                      `json:"body"`
	Icon    string                      `json:"icon,omitempty"`
	Actions []models.NotificationAction `json:"actions,omitempty"`
	Target  string                      `json:"target,omitempty"`
}

// Push handles POST /notify/push: accepts a push delivery and stores it for
// the dashboard to render.
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if req.Target == "" {
		req.Target = "/"
	}

	n := &models.Notification{
		Title:  h.policy.Sanitize(req.Title),
		Body:   h.policy.Sanitize(req.Body),
		Icon:   req.Icon,
		Target: req.Target,
	}
	for _, a := range req.Actions {
		n.Actions = append(n.Actions, models.NotificationAction{
			Action: a.Action,
			Title:  h.policy.Sanitize(a.Title),
		})
	}

	if err := h.Store.Save(r.Context(), n); err != nil {
		h.Log.Error("failed to store notification", zap.Error(err))
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	h.Log.Info("notification stored", zap.String("id", n.ID), zap.String("title", n.Title))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": n.ID})
}

// Pending handles GET /notify/pending: returns notifications the dashboard
// has not yet acknowledged, oldest first. Delivery is at-least-once — a
// notification keeps appearing here until the client acks it, so one lost
// response never loses a notification.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Store.Pending(r.Context())
	if err != nil {
		h.Log.Error("failed to load pending notifications", zap.Error(err))
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	if pending == nil {
		pending = []models.Notification{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pending)
}

// ackRequest is the payload for acknowledging rendered notifications.
type ackRequest struct {
	IDs []string `json:"ids"`
}

// Ack handles POST /notify/ack: the dashboard confirms which notifications
// it has rendered, removing them from future pending polls.
func (h *Handler) Ack(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.Store.Ack(r.Context(), req.IDs); err != nil {
		h.Log.Error("failed to ack notifications", zap.Error(err))
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Interact handles POST /notify/{id}/interact: records the interaction and
// returns the target path for the client to open or focus.
func (h *Handler) Interact(w http.ResponseWriter, r *http.Request, id string) {
	target, err := h.Store.Interact(r.Context(), id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "unknown notification", http.StatusNotFound)
		return
	}
	if err != nil {
		h.Log.Error("failed to record interaction", zap.String("id", id), zap.Error(err))
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"target": target})
}
