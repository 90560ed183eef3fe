package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/services"
	"borsapulse/internal/validation"
)

type ctxKey string

const symbolKey ctxKey = "symbol"

// success renders the standard success envelope
func success(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

// successList renders a list with its count
func successList(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
		"count":  count,
	})
}

// SymbolCtx normalizes and validates the {symbol} URL parameter
func SymbolCtx(errorHandler *apperrors.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			symbol := services.NormalizeSymbol(chi.URLParam(r, "symbol"))
			if !validation.ValidSymbol(symbol) {
				errorHandler.HandleError(w, r, apperrors.ErrValidation("symbol", "symbol must be 1-12 characters of A-Z, 0-9 or '.'"))
				return
			}
			ctx := context.WithValue(r.Context(), symbolKey, symbol)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func symbolFrom(r *http.Request) string {
	if s, ok := r.Context().Value(symbolKey).(string); ok {
		return s
	}
	return services.NormalizeSymbol(chi.URLParam(r, "symbol"))
}
