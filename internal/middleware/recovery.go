package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/ferdiga/subgate/internal/domain"
)

// Recover turns handler panics into a 500 response instead of tearing
// down the connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				GetLogger(r.Context()).Error("handler panic",
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				respondWithError(w, r, domain.Errorf(domain.EINTERNAL, "middleware.Recover", "Internal Server Error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
