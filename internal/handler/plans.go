package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ferdiga/subgate/internal/billing"
	"github.com/ferdiga/subgate/internal/domain"
)

// PlanHandler manages plans and their provider products and prices.
// Provider prices are immutable, so an amount change creates a new price
// and deactivates the old one rather than editing in place.
type PlanHandler struct {
	plans    domain.PlanStore
	provider billing.Provider
	logger   *slog.Logger
}

func NewPlanHandler(plans domain.PlanStore, provider billing.Provider, logger *slog.Logger) *PlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanHandler{
		plans:    plans,
		provider: provider,
		logger:   logger,
	}
}

// List handles GET /plans.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, plans)
}

type createPlanRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Create handles POST /plans: provider product, monthly price, local row.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.CreatePlan", "malformed request body"))
		return
	}
	if req.Name == "" || req.Amount < 0 || req.Currency == "" {
		ErrorResponse(w, r, domain.Invalid("handler.CreatePlan", "name, amount and currency are required"))
		return
	}

	product, err := h.provider.CreateProduct(r.Context(), req.Name, req.Description)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	price, err := h.provider.CreatePrice(r.Context(), req.Amount, req.Currency, product.ID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var description *string
	if req.Description != "" {
		description = &req.Description
	}
	_, err = h.plans.Create(r.Context(), domain.CreatePlanParams{
		StripePriceID: price.ID,
		Name:          req.Name,
		Description:   description,
		PriceCents:    price.UnitAmount,
		Interval:      price.Interval,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.logger.Info("plan created", "name", req.Name, "price_id", price.ID)
	RespondJSON(w, http.StatusCreated, DetailResponse{Detail: "New plan created: " + product.Name})
}

type updatePlanRequest struct {
	Amount      *int64  `json:"amount"`
	Currency    *string `json:"currency"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update handles PATCH /plans/{price_id}. Amount plus currency replaces
// the price; name or description edits the product and plan metadata.
func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	priceID := r.PathValue("price_id")

	var req updatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.UpdatePlan", "malformed request body"))
		return
	}

	plan, err := h.plans.GetByPriceID(r.Context(), priceID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if plan == nil {
		ErrorResponse(w, r, domain.NotFound("handler.UpdatePlan", "plan", priceID))
		return
	}

	price, err := h.provider.GetPrice(r.Context(), priceID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if req.Amount != nil && req.Currency != nil {
		replacement, err := h.provider.CreatePrice(r.Context(), *req.Amount, *req.Currency, price.ProductID)
		if err != nil {
			ErrorResponse(w, r, err)
			return
		}
		if err := h.plans.ReplacePrice(r.Context(), priceID, replacement.ID, replacement.UnitAmount, replacement.Interval); err != nil {
			ErrorResponse(w, r, err)
			return
		}
		if err := h.provider.DeactivatePrice(r.Context(), priceID); err != nil {
			ErrorResponse(w, r, err)
			return
		}
		priceID = replacement.ID
	}

	if req.Name != nil || req.Description != nil {
		if err := h.provider.UpdateProduct(r.Context(), price.ProductID, req.Name, req.Description); err != nil {
			ErrorResponse(w, r, err)
			return
		}
		if err := h.plans.SetMeta(r.Context(), priceID, req.Name, req.Description); err != nil {
			ErrorResponse(w, r, err)
			return
		}
	}

	h.logger.Info("plan updated", "price_id", priceID)
	RespondJSON(w, http.StatusOK, DetailResponse{Detail: "Plan " + plan.Name + " updated"})
}

// Delete handles DELETE /plans/{price_id}: deactivates the provider
// product with all its prices and removes the local row.
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	priceID := r.PathValue("price_id")

	price, err := h.provider.GetPrice(r.Context(), priceID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if err := h.provider.DeactivateProductPrices(r.Context(), price.ProductID); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if err := h.plans.DeleteByPriceID(r.Context(), priceID); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.logger.Info("plan deactivated", "price_id", priceID)
	RespondJSON(w, http.StatusOK, DetailResponse{Detail: "Plan and prices have been deactivated"})
}
