package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/middleware"
	"borsapulse/internal/operations"
	"borsapulse/pkg/contracts/domain"
)

// AnalysisHandler triggers recomputes and serves analysis records and jobs
type AnalysisHandler struct {
	service      AnalysisService
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewAnalysisHandler creates an analysis handler
func NewAnalysisHandler(service AnalysisService, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "analysis")),
		errorHandler: errorHandler,
	}
}

// Recompute handles POST /api/instruments/{symbol}/analysis. With
// ?async=true the recompute is queued and the job is returned with 202.
func (h *AnalysisHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	async, err := middleware.QueryBool(r, "async", false)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	symbol := symbolFrom(r)
	if async {
		job, err := h.service.RecomputeAsync(r.Context(), symbol)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		w.Header().Set("Location", "/api/jobs/"+job.ID)
		success(w, r, http.StatusAccepted, job)
		return
	}

	result, err := h.service.Recompute(r.Context(), symbol)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, result)
}

// RecomputeAll handles POST /api/analysis. It is queued unless
// ?async=false is given.
func (h *AnalysisHandler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	async, err := middleware.QueryBool(r, "async", true)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if async {
		job, err := h.service.RecomputeAllAsync(r.Context())
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		w.Header().Set("Location", "/api/jobs/"+job.ID)
		success(w, r, http.StatusAccepted, job)
		return
	}

	result, err := h.service.RecomputeAll(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, result)
}

// List handles GET /api/instruments/{symbol}/analysis?from=&to=
func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := analysisQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	records, err := h.service.ListAnalysis(r.Context(), symbolFrom(r), q)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	successList(w, r, records, len(records))
}

// Export handles GET /api/instruments/{symbol}/analysis.csv
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := analysisQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	symbol := symbolFrom(r)
	cw := &csvResponse{w: w, filename: fmt.Sprintf("%s_analysis.csv", symbol)}
	if err := h.service.ExportCSV(r.Context(), symbol, q, cw); err != nil {
		if !cw.started {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		// Headers are gone; all that is left is to log the truncation.
		h.logger.ErrorContext(r.Context(), "csv export aborted",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
	}
}

// csvResponse defers the CSV headers until the first byte is written so
// that lookup errors can still be rendered as problems.
type csvResponse struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (c *csvResponse) Write(p []byte) (int, error) {
	if !c.started {
		c.started = true
		c.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		c.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.filename))
		c.w.WriteHeader(http.StatusOK)
	}
	return c.w.Write(p)
}

func analysisQuery(r *http.Request) (domain.AnalysisQuery, error) {
	from, err := middleware.QueryDate(r, "from")
	if err != nil {
		return domain.AnalysisQuery{}, err
	}
	to, err := middleware.QueryDate(r, "to")
	if err != nil {
		return domain.AnalysisQuery{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return domain.AnalysisQuery{}, apperrors.ErrValidation("to", "to must not be before from")
	}
	return domain.AnalysisQuery{From: from, To: to}, nil
}

// GetJob handles GET /api/jobs/{id}
func (h *AnalysisHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs?status=&kind=&limit=
func (h *AnalysisHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status, err := middleware.QueryEnum(r, "status", []string{
		string(operations.JobStatusPending),
		string(operations.JobStatusRunning),
		string(operations.JobStatusCompleted),
		string(operations.JobStatusFailed),
		string(operations.JobStatusCancelled),
	}, "")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	kind, err := middleware.QueryEnum(r, "kind", []string{
		string(operations.KindRecompute),
		string(operations.KindRecomputeAll),
	}, "")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	limit, err := middleware.QueryInt(r, "limit", 1, 500, 50)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	jobs, err := h.service.ListJobs(r.Context(), operations.JobFilter{
		Status: operations.JobStatus(status),
		Kind:   operations.JobKind(kind),
		Limit:  limit,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	successList(w, r, jobs, len(jobs))
}

// CancelJob handles DELETE /api/jobs/{id}
func (h *AnalysisHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.CancelJob(r.Context(), id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, job)
}

// RegisterSymbolRoutes mounts the per-instrument routes on r
func (h *AnalysisHandler) RegisterSymbolRoutes(r chi.Router) {
	r.Post("/analysis", h.Recompute)
	r.Get("/analysis", h.List)
	r.Get("/analysis.csv", h.Export)
}

// JobRoutes returns the /api/jobs router
func (h *AnalysisHandler) JobRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListJobs)
	r.Get("/{id}", h.GetJob)
	r.Delete("/{id}", h.CancelJob)
	return r
}
