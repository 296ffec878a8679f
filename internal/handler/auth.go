package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ferdiga/subgate/internal/auth"
	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/middleware"
	"github.com/ferdiga/subgate/internal/telemetry"
)

// AuthHandler serves the session endpoints.
type AuthHandler struct {
	auth    *auth.Service
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func NewAuthHandler(auth *auth.Service, logger *slog.Logger, metrics *telemetry.Metrics) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		auth:    auth,
		logger:  logger,
		metrics: metrics,
	}
}

// Login handles POST /login. The form is OAuth2 password-grant shaped;
// username carries the email and the password field is accepted but
// never verified, matching the account model, which stores none.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.metrics.Logins.WithLabelValues("error").Inc()
		ErrorResponse(w, r, domain.Invalid("handler.Login", "malformed login form"))
		return
	}

	email := r.PostFormValue("username")
	if email == "" {
		h.metrics.Logins.WithLabelValues("error").Inc()
		ErrorResponse(w, r, domain.Invalid("handler.Login", "username is required"))
		return
	}

	pair, err := h.auth.Login(r.Context(), email)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			h.metrics.Logins.WithLabelValues("not_found").Inc()
		} else {
			h.metrics.Logins.WithLabelValues("error").Inc()
		}
		ErrorResponse(w, r, err)
		return
	}

	h.metrics.Logins.WithLabelValues("success").Inc()
	RespondJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh handles POST /refresh. A refresh token is single-use: the
// session rotates on success and replaying the old token fails with 401.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		h.metrics.TokenRefreshes.WithLabelValues("invalid").Inc()
		ErrorResponse(w, r, domain.Invalid("handler.Refresh", "refresh token is required"))
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if domain.IsCode(err, domain.EUNAUTHORIZED) {
			h.metrics.TokenRefreshes.WithLabelValues("invalid").Inc()
		} else {
			h.metrics.TokenRefreshes.WithLabelValues("error").Inc()
		}
		ErrorResponse(w, r, err)
		return
	}

	h.metrics.TokenRefreshes.WithLabelValues("success").Inc()
	RespondJSON(w, http.StatusOK, pair)
}

// Logout handles POST /logout, closing every active session the caller
// holds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, domain.Unauthorized("handler.Logout", "authentication required"))
		return
	}

	if err := h.auth.Logout(r.Context(), user.Email); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, DetailResponse{Detail: "Closed all sessions"})
}

// ExpiredSessions handles GET /expired: sessions that are inactive or
// past their deadline. An empty report answers with a detail body rather
// than an empty list.
func (h *AuthHandler) ExpiredSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.auth.ExpiredSessions(r.Context())
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if len(sessions) == 0 {
		RespondJSON(w, http.StatusOK, DetailResponse{Detail: "No expired sessions"})
		return
	}
	RespondJSON(w, http.StatusOK, sessions)
}
