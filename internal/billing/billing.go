// Package billing abstracts the payment provider. The application owns
// accounts and subscription state; the provider owns payment processing.
package billing

import (
	"context"
	"time"
)

// Provider defines the interface for the payment processor.
type Provider interface {
	// CreateCustomer creates a provider customer carrying the local user id
	// in metadata, so webhook events can be tied back to the account.
	CreateCustomer(ctx context.Context, email string, userID int64) (*Customer, error)

	// DeleteCustomer removes a provider customer.
	DeleteCustomer(ctx context.Context, customerID string) error

	// CreateProduct creates a provider product for a plan.
	CreateProduct(ctx context.Context, name, description string) (*Product, error)

	// UpdateProduct changes product name and/or description. Nil fields are
	// left unchanged.
	UpdateProduct(ctx context.Context, productID string, name, description *string) error

	// CreatePrice creates a monthly recurring price for a product. Prices
	// are immutable on the provider side; amount changes create a new price.
	CreatePrice(ctx context.Context, amountCents int64, currency, productID string) (*Price, error)

	// GetPrice retrieves an existing price.
	GetPrice(ctx context.Context, priceID string) (*Price, error)

	// DeactivatePrice marks a price inactive after it has been replaced.
	DeactivatePrice(ctx context.Context, priceID string) error

	// DeactivateProductPrices deactivates a product and every price
	// attached to it.
	DeactivateProductPrices(ctx context.Context, productID string) error

	// CreateSubscription starts a provider subscription pending payment
	// confirmation (the webhook path activates it).
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// CancelSubscription cancels a provider subscription immediately.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string) error
}

// Customer represents a provider customer record.
type Customer struct {
	ID    string
	Email string
}

// Product represents a provider product.
type Product struct {
	ID          string
	Name        string
	Description string
}

// Price represents a provider price.
type Price struct {
	ID         string
	ProductID  string
	UnitAmount int64
	Currency   string
	Interval   string
	Active     bool
}

// CreateSubscriptionParams contains parameters for starting a subscription.
type CreateSubscriptionParams struct {
	CustomerID string
	PriceID    string

	// UserID and PlanID travel in provider metadata for webhook correlation.
	UserID int64
	PlanID int64
}

// Subscription is the provider's view of a subscription.
type Subscription struct {
	ID               string
	Status           string
	CurrentPeriodEnd time.Time

	// LatestInvoiceID is handed to the client as the payment confirmation
	// reference for incomplete subscriptions.
	LatestInvoiceID string
}
