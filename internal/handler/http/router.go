package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/CatalogSyncGo/pkg/health"
	"github.com/utafrali/CatalogSyncGo/pkg/middleware"
)

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(
	productHandler *ProductHandler,
	searchHandler *SearchHandler,
	ingestHandler *IngestHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("catalog"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", searchHandler.Search)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.GetByID)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", productHandler.ListCategories)
			r.Get("/{slug}/products", productHandler.ListByCategory)
		})

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/run", ingestHandler.Run)
			r.Get("/status", ingestHandler.Status)
			r.Post("/reindex", ingestHandler.Reindex)
		})
	})

	return r
}
