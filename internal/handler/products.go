package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/middleware"
)

// ProductHandler serves the tier-gated demonstration resources. The
// caller's effective tier is the highest among their active
// subscriptions, defaulting to free for users with none.
type ProductHandler struct {
	subs   domain.SubscriptionStore
	logger *slog.Logger
}

func NewProductHandler(subs domain.SubscriptionStore, logger *slog.Logger) *ProductHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductHandler{
		subs:   subs,
		logger: logger,
	}
}

// Tier handles GET /products/{tier}.
func (h *ProductHandler) Tier(w http.ResponseWriter, r *http.Request) {
	required, ok := domain.ParseTier(r.PathValue("tier"))
	if !ok {
		ErrorResponse(w, r, domain.NotFound("handler.ProductTier", "product tier", r.PathValue("tier")))
		return
	}

	user := middleware.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, domain.Unauthorized("handler.ProductTier", "authentication required"))
		return
	}

	subs, err := h.subs.ListActiveByUser(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	tier := domain.EffectiveTier(subs)
	if !tier.HasAccess(required) {
		ErrorResponse(w, r, domain.Unauthorized("handler.ProductTier",
			fmt.Sprintf("tier %s does not grant access to %s resources", tier, required)))
		return
	}

	RespondJSON(w, http.StatusOK, DetailResponse{
		Detail: fmt.Sprintf("User %d tier is %s, you have access to this level.", user.ID, tier),
	})
}
