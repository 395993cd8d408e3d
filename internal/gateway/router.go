package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/parleyhq/parley/internal/telemetry"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.Middleware)
	r.Use(g.metrics.middleware)

	// Public.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())

	r.Group(func(r chi.Router) {
		if g.config.AuthToken != "" {
			r.Use(authMiddleware(g.config.AuthToken))
		}

		r.Get("/api/chat", g.handleChatSocket())

		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", g.handleListSessions())
			r.Post("/", g.handleCreateSession())
			r.Post("/select", g.handleSelectSession())
			r.Post("/move", g.handleMoveSession())
			r.Post("/undo", g.handleUndoDelete())
			r.Delete("/{index}", g.handleDeleteSession())
			r.Post("/{id}/clear-context", g.handleClearContext())
		})

		r.Route("/api/midjourney", func(r chi.Router) {
			r.Get("/task/{taskID}", g.handleFetchTask())
			r.Get("/image", g.handleImageProxy())
		})
	})

	return r
}
