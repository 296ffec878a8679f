package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ferdiga/subgate/internal/billing"
	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/middleware"
)

// UserHandler serves account signup and lookup. Signup creates the local
// row first, then the provider customer; the customer.created webhook
// reconciles if the synchronous stamp is lost.
type UserHandler struct {
	users    domain.UserStore
	provider billing.Provider
	logger   *slog.Logger
}

func NewUserHandler(users domain.UserStore, provider billing.Provider, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		users:    users,
		provider: provider,
		logger:   logger,
	}
}

type createUserRequest struct {
	Email string `json:"email"`
}

// Create handles POST /users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.CreateUser", "malformed request body"))
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		ErrorResponse(w, r, domain.Invalid("handler.CreateUser", "a valid email is required"))
		return
	}

	existing, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if existing != nil {
		ErrorResponse(w, r, domain.Conflict("handler.CreateUser", "user with this email already exists"))
		return
	}

	user, err := h.users.Create(r.Context(), email)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	customer, err := h.provider.CreateCustomer(r.Context(), email, user.ID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if err := h.users.SetCustomerID(r.Context(), user.ID, customer.ID); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.logger.Info("user created", "user_id", user.ID, "customer_id", customer.ID)
	RespondJSON(w, http.StatusCreated, DetailResponse{Detail: "User created"})
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, users)
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, domain.Unauthorized("handler.Me", "authentication required"))
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /users. The provider customer is deleted here;
// the local row goes away when the customer.deleted webhook lands.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, domain.Unauthorized("handler.DeleteUser", "authentication required"))
		return
	}
	if user.StripeCustomerID == nil {
		ErrorResponse(w, r, domain.Invalid("handler.DeleteUser", "user has no payment customer"))
		return
	}

	if err := h.provider.DeleteCustomer(r.Context(), *user.StripeCustomerID); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.logger.Info("customer deletion requested", "user_id", user.ID)
	RespondJSON(w, http.StatusOK, DetailResponse{Detail: "User deletion requested"})
}
