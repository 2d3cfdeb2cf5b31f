// internal/app/features/notify/routes.go
package notify

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for the notification contract, mounted under
// /notify.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/push", h.Push)
	r.Get("/pending", h.Pending)
	r.Post("/ack", h.Ack)
	r.Post("/{id}/interact", func(w http.ResponseWriter, req *http.Request) {
		h.Interact(w, req, chi.URLParam(req, "id"))
	})
	return r
}
