package domain

import (
	"context"
	"time"
)

// Subscription binds a user to a plan over time. Status is free text
// mirroring the payment provider's own status strings.
type Subscription struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	PlanID               int64      `json:"plan_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	Tier                 Tier       `json:"tier"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     time.Time  `json:"current_period_end"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	CanceledAt           *time.Time `json:"canceled_at,omitempty"`
}

// CreateSubscriptionParams contains the fields persisted for a new
// subscription row, pending provider confirmation.
type CreateSubscriptionParams struct {
	UserID               int64
	PlanID               int64
	StripeSubscriptionID string
	Tier                 Tier
	Status               string
	CurrentPeriodEnd     time.Time
	IsActive             bool
}

// SubscriptionUpdate carries the absolute state a webhook handler writes.
// Handlers overwrite status and period-end rather than accumulating, so
// out-of-order delivery stays idempotent.
type SubscriptionUpdate struct {
	Status           string
	CurrentPeriodEnd time.Time
	IsActive         bool
}

// SubscriptionStore persists subscription rows.
type SubscriptionStore interface {
	// Create inserts a new subscription. At most one active subscription may
	// exist per (user, tier); a concurrent duplicate fails with ECONFLICT.
	Create(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// GetByID returns the subscription or nil when absent.
	GetByID(ctx context.Context, id int64) (*Subscription, error)

	List(ctx context.Context) ([]Subscription, error)

	// ListByUser returns every subscription for a user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Subscription, error)

	// ListActiveByUser returns only active subscriptions for a user.
	ListActiveByUser(ctx context.Context, userID int64) ([]Subscription, error)

	// GetByProviderIDs resolves a subscription by the composite
	// (provider subscription id, provider customer id) key, or nil.
	GetByProviderIDs(ctx context.Context, subscriptionID, customerID string) (*Subscription, error)

	// UpdateByProviderIDs overwrites status, period-end and active flag for
	// the row matching the composite provider key. Returns ENOTFOUND when no
	// row matches.
	UpdateByProviderIDs(ctx context.Context, subscriptionID, customerID string, update SubscriptionUpdate) error

	// Cancel marks the row canceled: provider status, period-end,
	// is_active=false and canceled_at=now. Returns ENOTFOUND when no row
	// matches.
	Cancel(ctx context.Context, subscriptionID, customerID, status string, periodEnd time.Time) error

	// Activate flips a row to active without touching provider state. Used
	// by free-tier auto-enrollment.
	Activate(ctx context.Context, id int64) error
}
