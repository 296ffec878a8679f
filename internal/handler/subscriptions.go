package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ferdiga/subgate/internal/billing"
	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/middleware"
)

// SubscriptionHandler serves subscription creation and lookup. A new
// subscription starts inactive; the invoice.paid webhook activates it
// once the first payment settles.
type SubscriptionHandler struct {
	subs     domain.SubscriptionStore
	plans    domain.PlanStore
	provider billing.Provider
	logger   *slog.Logger
}

func NewSubscriptionHandler(subs domain.SubscriptionStore, plans domain.PlanStore, provider billing.Provider, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		subs:     subs,
		plans:    plans,
		provider: provider,
		logger:   logger,
	}
}

type createSubscriptionRequest struct {
	PlanID int64 `json:"plan_id"`
}

type createSubscriptionResponse struct {
	Detail          string `json:"detail"`
	LatestInvoiceID string `json:"latest_invoice_id,omitempty"`
}

// Create handles POST /subscriptions.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, domain.Unauthorized("handler.CreateSubscription", "authentication required"))
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == 0 {
		ErrorResponse(w, r, domain.Invalid("handler.CreateSubscription", "plan_id is required"))
		return
	}
	if user.StripeCustomerID == nil {
		ErrorResponse(w, r, domain.Invalid("handler.CreateSubscription", "user has no payment customer yet"))
		return
	}

	plan, err := h.plans.GetByID(r.Context(), req.PlanID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if plan == nil {
		ErrorResponse(w, r, domain.NotFound("handler.CreateSubscription", "plan", strconv.FormatInt(req.PlanID, 10)))
		return
	}

	tier, ok := domain.ParseTier(plan.Name)
	if !ok {
		ErrorResponse(w, r, domain.Invalid("handler.CreateSubscription", "plan does not map to a known tier"))
		return
	}

	active, err := h.subs.ListActiveByUser(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	for _, sub := range active {
		if sub.Tier == tier {
			ErrorResponse(w, r, domain.Conflict("handler.CreateSubscription", "user already subscribed to this tier"))
			return
		}
	}

	providerSub, err := h.provider.CreateSubscription(r.Context(), billing.CreateSubscriptionParams{
		CustomerID: *user.StripeCustomerID,
		PriceID:    plan.StripePriceID,
		UserID:     user.ID,
		PlanID:     plan.ID,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	_, err = h.subs.Create(r.Context(), domain.CreateSubscriptionParams{
		UserID:               user.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: providerSub.ID,
		Tier:                 tier,
		Status:               providerSub.Status,
		CurrentPeriodEnd:     providerSub.CurrentPeriodEnd,
		IsActive:             false,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.logger.Info("subscription created",
		"user_id", user.ID,
		"plan_id", plan.ID,
		"subscription_id", providerSub.ID,
	)
	RespondJSON(w, http.StatusCreated, createSubscriptionResponse{
		Detail:          "User subscribed successfully",
		LatestInvoiceID: providerSub.LatestInvoiceID,
	})
}

// List handles GET /subscriptions/all.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.List(r.Context())
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, subs)
}

// ListMine handles GET /subscriptions/me.
func (h *SubscriptionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, domain.Unauthorized("handler.ListSubscriptions", "authentication required"))
		return
	}

	subs, err := h.subs.ListByUser(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, subs)
}

// Get handles GET /subscriptions/{id}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.GetSubscription", "subscription id must be numeric"))
		return
	}

	sub, err := h.subs.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if sub == nil {
		ErrorResponse(w, r, domain.NotFound("handler.GetSubscription", "subscription", r.PathValue("id")))
		return
	}
	RespondJSON(w, http.StatusOK, sub)
}

// Cancel handles DELETE /subscriptions/{id}: cancels at the provider; the
// subscription.deleted webhook settles the local row.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, domain.Unauthorized("handler.CancelSubscription", "authentication required"))
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.CancelSubscription", "subscription id must be numeric"))
		return
	}

	sub, err := h.subs.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if sub == nil || sub.UserID != user.ID {
		ErrorResponse(w, r, domain.NotFound("handler.CancelSubscription", "subscription", r.PathValue("id")))
		return
	}

	if err := h.provider.CancelSubscription(r.Context(), sub.StripeSubscriptionID); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.logger.Info("subscription cancellation requested", "subscription_id", sub.StripeSubscriptionID)
	RespondJSON(w, http.StatusOK, DetailResponse{Detail: "Subscription cancellation requested"})
}
