package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with both roles mounted: the pairing
// remote-store endpoints at the root (unauthenticated) and the device API
// under /api. authEnabled controls whether Bearer token auth is enforced on
// the device API. sseHandler, if non-nil, is mounted at GET /api/events.
func NewRouter(h *Handler, rh *RemoteHandler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Remote-store role.
	if rh != nil {
		r.Post("/upload", rh.Upload)
		r.Post("/download", rh.Download)
	}

	// Device role.
	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Post("/notifications", h.IngestNotifications)
		r.Post("/sync/trigger", h.TriggerSync)

		r.Post("/pairing/export", h.ExportLedger)
		r.Post("/pairing/import", h.ImportLedger)

		r.Get("/chapters", h.ListChapters)
		r.Get("/records", h.ListRecords)
		r.Get("/categories", h.ListCategories)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
