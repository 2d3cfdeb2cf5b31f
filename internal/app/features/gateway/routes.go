// internal/app/features/gateway/routes.go
package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the catch-all router for intercepted traffic. Mount this
// last so every path not claimed by an operational endpoint flows through
// the gateway.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Handle("/*", http.HandlerFunc(h.Serve))
	return r
}
