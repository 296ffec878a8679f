package domain

import "context"

// Plan is a purchasable tier definition mirroring a payment-provider price.
// Price changes never mutate a price in place: the provider treats prices
// as immutable, so updates create a new price and deactivate the old one.
type Plan struct {
	ID            int64   `json:"id"`
	StripePriceID string  `json:"stripe_price_id"`
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	PriceCents    int64   `json:"price_cents"`
	Interval      string  `json:"interval"`
}

// CreatePlanParams contains the fields persisted for a new plan.
type CreatePlanParams struct {
	StripePriceID string
	Name          string
	Description   *string
	PriceCents    int64
	Interval      string
}

// PlanStore persists plan definitions.
type PlanStore interface {
	Create(ctx context.Context, params CreatePlanParams) (*Plan, error)

	// GetByPriceID returns the plan matching the provider price reference,
	// or nil when absent.
	GetByPriceID(ctx context.Context, priceID string) (*Plan, error)

	// GetByID returns the plan or nil when absent.
	GetByID(ctx context.Context, id int64) (*Plan, error)

	// GetByName returns the plan whose name matches, or nil when absent.
	// Used to resolve the free plan for auto-enrollment.
	GetByName(ctx context.Context, name string) (*Plan, error)

	List(ctx context.Context) ([]Plan, error)

	// ReplacePrice swaps the provider price reference and amount after a
	// price change created a new provider price.
	ReplacePrice(ctx context.Context, oldPriceID, newPriceID string, priceCents int64, interval string) error

	// SetMeta updates name and/or description. Nil fields are left unchanged.
	SetMeta(ctx context.Context, priceID string, name, description *string) error

	// DeleteByPriceID removes all plans carrying the provider price
	// reference. Returns ENOTFOUND when no row matches.
	DeleteByPriceID(ctx context.Context, priceID string) error
}
