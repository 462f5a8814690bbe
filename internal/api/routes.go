package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://app.beaivisible.io", "http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no tenant context required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireTenantMiddleware)

		// Discovery audits
		r.Route("/discovery-audits", func(r chi.Router) {
			r.Post("/", h.CreateAudit)
			r.Get("/", h.ListAudits)
			r.Get("/latest", h.GetLatestAudit)

			r.Get("/{auditID}", h.GetAudit)
			r.Delete("/{auditID}", h.DeleteAudit)
			r.Post("/{auditID}/run", h.RunAudit)
			r.Get("/{auditID}/intelligence", h.GetIntelligenceSnapshot)
			r.Post("/{auditID}/report", h.GenerateReport)
			r.Get("/{auditID}/report", h.GetReport)
		})

		// Intelligence reads, backed by the stored snapshot
		r.Route("/intelligence", func(r chi.Router) {
			r.Get("/snapshot", h.GetSnapshot)
			r.Get("/opportunities", h.GetOpportunities)
			r.Get("/platform-visibility", h.GetPlatformVisibility)
			r.Get("/platform-visibility/weakest", h.GetWeakestPlatforms)
			r.Get("/competitive-analysis", h.GetCompetitiveAnalysis)
			r.Get("/coverage-health", h.GetCoverageHealth)
		})

		// Lead distribution
		r.Route("/leads/batches/{batchID}", func(r chi.Router) {
			r.Post("/preview-distribution", h.PreviewDistribution)
			r.Post("/sync", h.SyncBatch)
		})
	})

	return r
}
