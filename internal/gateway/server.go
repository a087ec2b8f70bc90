package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())

	// Everything that exposes conversation content needs credentials and is
	// not mounted at all without them.
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway: no auth configured, API and event stream disabled")
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(g.config.Auth, g.logger))
		if g.limiter != nil {
			r.Use(g.limiter.middleware)
		}

		r.Handle("/ws/events", g.events)

		r.Group(func(r chi.Router) {
			r.Use(g.metrics.middleware)
			r.Get("/status", g.handleStatus())
			r.Route("/api", g.mountAPI)
		})
	})

	return r
}
