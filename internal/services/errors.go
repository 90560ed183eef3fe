package services

import (
	"net/http"

	apperrors "borsapulse/internal/errors"
)

var (
	ErrInstrumentNotFound    = apperrors.New(http.StatusNotFound, "INSTRUMENT_NOT_FOUND", "instrument not found")
	ErrInstrumentExists      = apperrors.New(http.StatusConflict, "INSTRUMENT_EXISTS", "instrument already exists")
	ErrBatchNotFound         = apperrors.New(http.StatusNotFound, "BATCH_NOT_FOUND", "ingestion batch not found")
	ErrBatchAlreadyProcessed = apperrors.New(http.StatusConflict, "BATCH_ALREADY_PROCESSED", "ingestion batch already processed")
	ErrJobNotFound           = apperrors.New(http.StatusNotFound, "JOB_NOT_FOUND", "job not found")
	ErrJobNotCancellable     = apperrors.New(http.StatusConflict, "CONFLICT", "job already finished")
	ErrAsyncUnavailable      = apperrors.New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "background jobs are not available")
)
