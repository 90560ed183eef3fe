package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "borsapulse/internal/errors"
	customMiddleware "borsapulse/internal/middleware"
	handlers "borsapulse/internal/transport/http"
	ws "borsapulse/internal/websocket"
)

// setupRouter builds the middleware chain and mounts every route
func (a *Application) setupRouter() {
	c := a.Container
	cfg := a.Config
	errorHandler := apperrors.NewErrorHandler(a.Logger, cfg.Logging.Development)

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.Telemetry(c.OTel.Tracer, c.Metrics))
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(errorHandler))
	r.Use(customMiddleware.DefaultSecureHeaders().Handler)
	r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{AllowedOrigins: cfg.Security.AllowedOrigins}))

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	if c.OTel.PrometheusHTTP != nil {
		r.Handle("/metrics", c.OTel.PrometheusHTTP)
	}

	// The event stream outlives any request timeout.
	r.Get("/ws", ws.Handler(c.Hub, cfg.Security.AllowedOrigins, a.Logger))

	api := handlers.APIRoutes(handlers.Handlers{
		Instruments:  handlers.NewInstrumentHandler(c.Instruments, a.Logger, errorHandler),
		Ingestion:    handlers.NewIngestionHandler(c.Ingestion, cfg.Ingestion.MaxUploadBytes, a.Logger, errorHandler),
		Analysis:     handlers.NewAnalysisHandler(c.Analysis, a.Logger, errorHandler),
		Health:       handlers.NewHealthHandler(c.Health, a.Logger),
		ErrorHandler: errorHandler,
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.Timeout(cfg.Server.RequestTimeout))
		if cfg.Security.RateLimit.Enabled {
			limiter := customMiddleware.NewRateLimiter(cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst, errorHandler, a.Logger)
			r.Use(limiter.Handler)
		}
		api(r)
	})

	a.Router = r
}

// Handler returns the root HTTP handler
func (a *Application) Handler() http.Handler {
	return a.Router
}
