package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/subscriber-gateway/internal/pkg/httputil"
	"github.com/ignite/subscriber-gateway/internal/pkg/metrics"
)

var defaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes configures all API routes. A nil health checker leaves only
// the bare liveness endpoint; nil metrics drops /metrics.
func SetupRoutes(h *Handlers, health *HealthChecker, m *metrics.Metrics, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "route not found")
	})

	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health checks
	if health != nil {
		r.Get("/health", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"alive"}`))
		})
	}

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Get("/", h.Ping)

	r.Route("/subscriber", func(r chi.Router) {
		r.Post("/", h.CreateSubscriber)
		r.Put("/lists", h.UpdateLists)
		r.Post("/enquiry", h.SubmitEnquiry)
	})

	return r
}
