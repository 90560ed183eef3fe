package middleware

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "borsapulse/internal/errors"
)

// ContentTypeValidator rejects request bodies whose media type is not one of
// contentTypes. Methods without a body are passed through.
func ContentTypeValidator(errorHandler *apperrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
				// Empty POST bodies such as a recompute trigger.
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				errorHandler.HandleError(w, r, apperrors.New(http.StatusBadRequest, "INVALID_CONTENT_TYPE", "Content-Type header is missing or malformed"))
				return
			}
			for _, allowed := range contentTypes {
				if strings.EqualFold(mediaType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			errorHandler.HandleError(w, r, apperrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]interface{}{
					"content_type": mediaType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}

// QueryDate parses an ISO date (YYYY-MM-DD) query parameter. A missing
// parameter yields the zero time.
func QueryDate(r *http.Request, param string) (time.Time, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, apperrors.ErrValidation(param, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", param))
	}
	return t, nil
}

// QueryBool parses a boolean query parameter, returning def when missing
func QueryBool(r *http.Request, param string, def bool) (bool, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, apperrors.ErrValidation(param, fmt.Sprintf("%s must be true or false", param))
	}
	return b, nil
}

// QueryInt parses an integer query parameter within [min, max]
func QueryInt(r *http.Request, param string, min, max, def int) (int, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param))
	}
	if n < min || n > max {
		return 0, apperrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max))
	}
	return n, nil
}

// QueryEnum checks a query parameter against allowed values
func QueryEnum(r *http.Request, param string, allowed []string, def string) (string, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return def, nil
	}
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", apperrors.ErrValidation(param, fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", ")))
}
