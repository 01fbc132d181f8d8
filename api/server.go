/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Request counts and latency by route pattern
  5. CORS:       Cross-origin requests for the dashboard frontend
  6. RateLimit:  Per-IP token bucket (optional)

ROUTE GROUPS:
  /api/employees/*      Employees, violations, state, health
  /api/dashboard        Team view
  /api/policies/*       Versioned policy documents
  /api/snapshots/*      Cached states
  /api/scenarios/*      Reproduction scenarios
  /api/health           Liveness
  /api/metrics          Prometheus exposition

SEE ALSO:
  - handlers.go: Handler implementations
  - ratelimit.go: Rate limiter
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimitRPS   float64 // 0 disables
	RateLimitBurst int
}

// DefaultRouterOptions allows the local dashboard origins and no rate limit.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Handle("/metrics", h.Metrics.Handler())

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/violations", h.ListViolations)
			r.Post("/{id}/violations", h.CreateViolations)
			r.Get("/{id}/state", h.GetState)
			r.Get("/{id}/quarters/{quarter}", h.GetQuarterStart)
			r.Get("/{id}/health", h.GetHealth)
		})

		r.Get("/dashboard", h.GetDashboard)

		// Policy routes
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/{id}", h.GetPolicy)
			r.Post("/{id}/activate", h.ActivatePolicy)
		})

		// Snapshot routes
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", h.ListSnapshots)
			r.Post("/refresh", h.RefreshSnapshots)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
