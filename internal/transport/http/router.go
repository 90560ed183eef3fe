package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/middleware"
)

// Handlers groups the API handlers mounted by APIRoutes
type Handlers struct {
	Instruments  *InstrumentHandler
	Ingestion    *IngestionHandler
	Analysis     *AnalysisHandler
	Health       *HealthHandler
	ErrorHandler *apperrors.ErrorHandler
}

// APIRoutes returns the /api route tree. Bodies are accepted as JSON or,
// for uploads, multipart forms.
func APIRoutes(h Handlers) func(r chi.Router) {
	return func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(middleware.ContentTypeValidator(h.ErrorHandler, "application/json", "multipart/form-data"))

		r.Mount("/health", h.Health.Routes())
		r.Get("/version", h.Health.Version)

		r.Route("/instruments", func(r chi.Router) {
			h.Instruments.RegisterRoutes(r)
			r.Route("/{symbol}", func(r chi.Router) {
				r.Use(SymbolCtx(h.ErrorHandler))
				h.Instruments.RegisterSymbolRoutes(r)
				h.Ingestion.RegisterSymbolRoutes(r)
				h.Analysis.RegisterSymbolRoutes(r)
			})
		})

		r.Mount("/batches", h.Ingestion.Routes())
		r.Post("/analysis", h.Analysis.RecomputeAll)
		r.Mount("/jobs", h.Analysis.JobRoutes())
	}
}
