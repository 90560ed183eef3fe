package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/services"
)

// InstrumentHandler serves the instrument registry
type InstrumentHandler struct {
	service      InstrumentService
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewInstrumentHandler creates an instrument handler
func NewInstrumentHandler(service InstrumentService, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *InstrumentHandler {
	return &InstrumentHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "instruments")),
		errorHandler: errorHandler,
	}
}

// Create handles POST /api/instruments
func (h *InstrumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateInstrumentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	inst, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/instruments/"+inst.Symbol)
	success(w, r, http.StatusCreated, inst)
}

// List handles GET /api/instruments
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	successList(w, r, list, len(list))
}

// Get handles GET /api/instruments/{symbol}
func (h *InstrumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	inst, err := h.service.Get(r.Context(), symbolFrom(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, inst)
}

// Update handles PATCH /api/instruments/{symbol}
func (h *InstrumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateInstrumentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	inst, err := h.service.Update(r.Context(), symbolFrom(r), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, inst)
}

// Delete handles DELETE /api/instruments/{symbol}
func (h *InstrumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	symbol := symbolFrom(r)
	if err := h.service.Delete(r.Context(), symbol); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "instrument deleted", slog.String("symbol", symbol))
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes mounts the collection routes on r
func (h *InstrumentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
}

// RegisterSymbolRoutes mounts the per-instrument routes on r
func (h *InstrumentHandler) RegisterSymbolRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Patch("/", h.Update)
	r.Delete("/", h.Delete)
}
