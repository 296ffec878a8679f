package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ferdiga/subgate/internal/domain"
)

// SubscriptionStore implements domain.SubscriptionStore using PostgreSQL.
type SubscriptionStore struct {
	db DB
}

// Compile-time check to ensure SubscriptionStore implements domain.SubscriptionStore.
var _ domain.SubscriptionStore = (*SubscriptionStore)(nil)

func NewSubscriptionStore(db DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, stripe_subscription_id, tier, status,
	current_period_end, is_active, created_at, updated_at, canceled_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.StripeSubscriptionID, &sub.Tier, &sub.Status,
		&sub.CurrentPeriodEnd, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt, &sub.CanceledAt,
	); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create inserts a new subscription inside a transaction that first scans
// for an active subscription of the same tier. The partial unique index on
// (user_id, tier) WHERE is_active backstops the scan, so a concurrent
// double-subscribe fails with a conflict instead of a silent duplicate.
func (s *SubscriptionStore) Create(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.Subscription, error) {
	const op = "postgres.subscriptions.create"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM subscriptions WHERE user_id = $1 AND tier = $2 AND is_active
		 )`, params.UserID, params.Tier).Scan(&exists)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to check existing subscriptions")
	}
	if exists {
		return nil, domain.Conflict(op, "user already has an active subscription for this tier")
	}

	sub, err := scanSubscription(tx.QueryRow(ctx,
		`INSERT INTO subscriptions
			(user_id, plan_id, stripe_subscription_id, tier, status, current_period_end, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+subscriptionColumns,
		params.UserID, params.PlanID, params.StripeSubscriptionID, params.Tier,
		params.Status, params.CurrentPeriodEnd, params.IsActive))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "user already has an active subscription for this tier")
		}
		return nil, domain.Internal(err, op, "failed to create subscription")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit subscription")
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByID(ctx context.Context, id int64) (*domain.Subscription, error) {
	const op = "postgres.subscriptions.get_by_id"

	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get subscription")
	}
	return sub, nil
}

func (s *SubscriptionStore) List(ctx context.Context) ([]domain.Subscription, error) {
	const op = "postgres.subscriptions.list"

	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list subscriptions")
	}
	defer rows.Close()

	return collectSubscriptions(rows, op)
}

func (s *SubscriptionStore) ListByUser(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	const op = "postgres.subscriptions.list_by_user"

	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list subscriptions")
	}
	defer rows.Close()

	return collectSubscriptions(rows, op)
}

func (s *SubscriptionStore) ListActiveByUser(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	const op = "postgres.subscriptions.list_active_by_user"

	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 AND is_active ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list subscriptions")
	}
	defer rows.Close()

	return collectSubscriptions(rows, op)
}

func (s *SubscriptionStore) GetByProviderIDs(ctx context.Context, subscriptionID, customerID string) (*domain.Subscription, error) {
	const op = "postgres.subscriptions.get_by_provider_ids"

	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT s.id, s.user_id, s.plan_id, s.stripe_subscription_id, s.tier, s.status,
			s.current_period_end, s.is_active, s.created_at, s.updated_at, s.canceled_at
		 FROM subscriptions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.stripe_subscription_id = $1 AND u.stripe_customer_id = $2`,
		subscriptionID, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get subscription")
	}
	return sub, nil
}

// UpdateByProviderIDs overwrites the provider-driven fields with absolute
// state so replayed or reordered webhook events converge on the same row.
func (s *SubscriptionStore) UpdateByProviderIDs(ctx context.Context, subscriptionID, customerID string, update domain.SubscriptionUpdate) error {
	const op = "postgres.subscriptions.update_by_provider_ids"

	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions s
		 SET status = $1, current_period_end = $2, is_active = $3, updated_at = now()
		 FROM users u
		 WHERE u.id = s.user_id
		   AND s.stripe_subscription_id = $4
		   AND u.stripe_customer_id = $5`,
		update.Status, update.CurrentPeriodEnd, update.IsActive, subscriptionID, customerID)
	if err != nil {
		return domain.Internal(err, op, "failed to update subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "subscription", subscriptionID)
	}
	return nil
}

func (s *SubscriptionStore) Cancel(ctx context.Context, subscriptionID, customerID, status string, periodEnd time.Time) error {
	const op = "postgres.subscriptions.cancel"

	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions s
		 SET status = $1, current_period_end = $2, is_active = false,
		     canceled_at = now(), updated_at = now()
		 FROM users u
		 WHERE u.id = s.user_id
		   AND s.stripe_subscription_id = $3
		   AND u.stripe_customer_id = $4`,
		status, periodEnd, subscriptionID, customerID)
	if err != nil {
		return domain.Internal(err, op, "failed to cancel subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "subscription", subscriptionID)
	}
	return nil
}

func (s *SubscriptionStore) Activate(ctx context.Context, id int64) error {
	const op = "postgres.subscriptions.activate"

	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions SET is_active = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, op, "failed to activate subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "subscription", "")
	}
	return nil
}

func collectSubscriptions(rows pgx.Rows, op string) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan subscription")
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read subscriptions")
	}
	return subs, nil
}
