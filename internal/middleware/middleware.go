// Package middleware holds the HTTP middleware chain: request ids,
// request-scoped logging, bearer authentication and panic recovery.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/ferdiga/subgate/internal/domain"
)

type contextKey string

// respondWithError mirrors the handler package's error mapping but stays
// self-contained, since handler imports this package for GetLogger.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)

	status := http.StatusInternalServerError
	switch code {
	case domain.EINVALID, domain.ECONFLICT:
		status = http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		status = http.StatusUnauthorized
	case domain.ENOTFOUND:
		status = http.StatusNotFound
	}

	logger := GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("middleware error", "error", err, "code", code, "status", status)
		message = "Internal Server Error"
	} else {
		logger.Info("middleware rejection", "error", err, "code", code, "status", status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
