package domain

import (
	"context"
	"time"
)

// Session represents one issued refresh-token lineage. A session is created
// on login and on each successful refresh (rotation creates a new row and
// deletes the consumed one), and deleted on logout.
type Session struct {
	// JTI is the unique token identifier embedded in the refresh token.
	JTI string `json:"jti"`

	// Subject identifies the user the session belongs to (the email).
	Subject string `json:"sub"`

	IsActive bool `json:"is_active"`

	// UseCount exists for future rotation-limiting; increments are not
	// currently enforced.
	UseCount int `json:"use_count"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is expired at the given instant:
// inactive OR past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.IsActive || s.ExpiresAt.Before(now)
}

// SessionStore persists session records. Rows are exclusively owned by the
// store, which is the sole source of truth for revocation.
type SessionStore interface {
	// Create inserts a new active session row.
	Create(ctx context.Context, jti, subject string, expiresAt time.Time) (*Session, error)

	// GetByJTI returns the session or nil when absent.
	GetByJTI(ctx context.Context, jti string) (*Session, error)

	// ActiveBySubject returns all active sessions for a subject.
	ActiveBySubject(ctx context.Context, subject string) ([]Session, error)

	// Delete removes a session row. Deleting an absent row is not an error.
	Delete(ctx context.Context, jti string) error

	// Rotate atomically deletes the consumed session and inserts its
	// replacement in a single transaction, so a concurrent refresh of the
	// same token cannot observe both rows.
	Rotate(ctx context.Context, oldJTI, newJTI, subject string, expiresAt time.Time) (*Session, error)

	// Expired returns sessions where is_active is false OR expires_at is in
	// the past.
	Expired(ctx context.Context, now time.Time) ([]Session, error)
}
