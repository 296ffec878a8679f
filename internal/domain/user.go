package domain

import (
	"context"
	"time"
)

// User is an account identity. StripeCustomerID is populated asynchronously
// once the payment-provider customer exists, so it starts out nil.
type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	StripeCustomerID *string   `json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserStore persists user accounts. Every read and write round-trips to the
// transactional store; there is no in-memory caching.
type UserStore interface {
	// Create inserts a new user with the given email and no customer reference.
	Create(ctx context.Context, email string) (*User, error)

	// GetByID returns the user or nil when absent.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail returns the user or nil when absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByCustomerID returns the user matching the payment-provider customer
	// reference, or nil when absent.
	GetByCustomerID(ctx context.Context, customerID string) (*User, error)

	// List returns all users.
	List(ctx context.Context) ([]User, error)

	// SetCustomerID stamps the payment-provider customer reference onto a user.
	SetCustomerID(ctx context.Context, id int64, customerID string) error

	// DeleteByCustomerID removes the user matching the customer reference.
	// Returns ENOTFOUND when no row matches.
	DeleteByCustomerID(ctx context.Context, customerID string) error
}
