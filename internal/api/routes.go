package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bhamnews/briefing-engine/internal/auth"
)

// SetupRoutes configures the router. The subscribe endpoint is public (the
// site frontend posts to it cross-origin); the dispatch trigger sits behind
// the API-key gate.
func SetupRoutes(h *Handlers, gate *auth.Gate) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{h.siteURL, "http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", auth.HeaderAPIKey},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	// Token links from emails land here directly.
	r.Get("/newsletter/verify/{token}", h.HandleVerify)
	r.Get("/newsletter/unsubscribe/{token}", h.HandleUnsubscribe)

	r.Route("/api/newsletter", func(r chi.Router) {
		r.Post("/subscribe", h.HandleSubscribe)

		r.Group(func(r chi.Router) {
			if gate != nil {
				r.Use(gate.Require)
			}
			r.Post("/dispatch", h.HandleDispatch)
		})
	})

	return r
}
