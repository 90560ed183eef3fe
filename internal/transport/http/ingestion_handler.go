package http

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/services"
)

// multipartMemory is the part of a multipart upload kept in memory; the
// rest spills to temporary files.
const multipartMemory = 8 << 20

// multipartOverhead allows for form fields and part headers on top of the
// file itself.
const multipartOverhead = 1 << 20

// IngestionHandler accepts price file uploads and serves batches
type IngestionHandler struct {
	service        IngestionService
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apperrors.ErrorHandler
}

// NewIngestionHandler creates an ingestion handler. maxUploadBytes bounds
// the uploaded file; zero disables the limit.
func NewIngestionHandler(service IngestionService, maxUploadBytes int64, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *IngestionHandler {
	return &IngestionHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("handler", "ingestion")),
		errorHandler:   errorHandler,
	}
}

// Upload handles POST /api/instruments/{symbol}/uploads.
//
// The multipart form carries the file in "file" and the optional fields
// note, uploaded_by, header (auto|present|absent), date_layout, batch_id,
// reprocess and recompute.
func (h *IngestionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, apperrors.NewWithDetails(http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE", "Uploaded file exceeds maximum allowed size",
				map[string]int64{"max_size": h.maxUploadBytes}))
			return
		}
		h.errorHandler.HandleError(w, r, apperrors.New(http.StatusBadRequest, "INVALID_REQUEST", "Request must be a multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("file", "file is required"))
		return
	}
	defer file.Close()

	req, err := uploadRequest(r, symbolFrom(r), file, header)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.IngestFile(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	status := http.StatusCreated
	if req.BatchID != "" {
		status = http.StatusOK
	}
	success(w, r, status, result)
}

func uploadRequest(r *http.Request, symbol string, file multipart.File, header *multipart.FileHeader) (services.IngestFileRequest, error) {
	req := services.IngestFileRequest{
		Symbol:     symbol,
		Filename:   header.Filename,
		Reader:     file,
		Size:       header.Size,
		Note:       r.FormValue("note"),
		UploadedBy: r.FormValue("uploaded_by"),
		HeaderMode: r.FormValue("header"),
		DateLayout: r.FormValue("date_layout"),
		BatchID:    r.FormValue("batch_id"),
	}

	if v := r.FormValue("reprocess"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, apperrors.ErrValidation("reprocess", "reprocess must be true or false")
		}
		req.Reprocess = b
	}
	if v := r.FormValue("recompute"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, apperrors.ErrValidation("recompute", "recompute must be true or false")
		}
		req.Recompute = &b
	}
	return req, nil
}

// ListBatches handles GET /api/instruments/{symbol}/batches
func (h *IngestionHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ListBatches(r.Context(), symbolFrom(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	successList(w, r, batches, len(batches))
}

// GetBatch handles GET /api/batches/{id}
func (h *IngestionHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.service.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, batch)
}

// RegisterSymbolRoutes mounts the per-instrument routes on r
func (h *IngestionHandler) RegisterSymbolRoutes(r chi.Router) {
	r.Post("/uploads", h.Upload)
	r.Get("/batches", h.ListBatches)
}

// Routes returns the /api/batches router
func (h *IngestionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.GetBatch)
	return r
}
