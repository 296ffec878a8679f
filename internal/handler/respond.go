// Package handler contains the HTTP handlers. Interactive endpoints
// always answer with JSON; errors carry a {"detail": ...} body mapped
// from the domain error code.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/middleware"
)

// DetailResponse is the envelope for informational and error bodies.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
// ECONFLICT maps to 400 rather than 409: already-subscribed is surfaced
// to clients as a plain bad request.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RespondJSON writes v as the JSON response body.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// ErrorResponse maps err onto a status and a {"detail": ...} body, and
// logs it on the request-scoped logger. Internal errors keep their detail
// out of the response.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	message := domain.ErrorMessage(err)

	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		slog.String("code", code),
		slog.String("op", domain.ErrorOp(err)),
		slog.Int("status", status),
		slog.Any("error", err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
		message = "Internal Server Error"
	} else {
		logger.Info("request rejected", attrs...)
	}

	RespondJSON(w, status, DetailResponse{Detail: message})
}
