package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ferdiga/subgate/internal/domain"
)

// PlanStore implements domain.PlanStore using PostgreSQL.
type PlanStore struct {
	db DB
}

// Compile-time check to ensure PlanStore implements domain.PlanStore.
var _ domain.PlanStore = (*PlanStore)(nil)

func NewPlanStore(db DB) *PlanStore {
	return &PlanStore{db: db}
}

const planColumns = `id, stripe_price_id, name, description, price_cents, interval`

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var p domain.Plan
	if err := row.Scan(&p.ID, &p.StripePriceID, &p.Name, &p.Description, &p.PriceCents, &p.Interval); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlanStore) Create(ctx context.Context, params domain.CreatePlanParams) (*domain.Plan, error) {
	const op = "postgres.plans.create"

	plan, err := scanPlan(s.db.QueryRow(ctx,
		`INSERT INTO plans (stripe_price_id, name, description, price_cents, interval)
		 VALUES ($1, $2, $3, $4, $5) RETURNING `+planColumns,
		params.StripePriceID, params.Name, params.Description, params.PriceCents, params.Interval))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create plan")
	}
	return plan, nil
}

func (s *PlanStore) GetByPriceID(ctx context.Context, priceID string) (*domain.Plan, error) {
	const op = "postgres.plans.get_by_price_id"

	plan, err := scanPlan(s.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE stripe_price_id = $1`, priceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get plan")
	}
	return plan, nil
}

func (s *PlanStore) GetByID(ctx context.Context, id int64) (*domain.Plan, error) {
	const op = "postgres.plans.get_by_id"

	plan, err := scanPlan(s.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get plan")
	}
	return plan, nil
}

func (s *PlanStore) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	const op = "postgres.plans.get_by_name"

	plan, err := scanPlan(s.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE lower(name) = lower($1) LIMIT 1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get plan")
	}
	return plan, nil
}

func (s *PlanStore) List(ctx context.Context) ([]domain.Plan, error) {
	const op = "postgres.plans.list"

	rows, err := s.db.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY id`)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list plans")
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan plan")
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list plans")
	}
	return plans, nil
}

func (s *PlanStore) ReplacePrice(ctx context.Context, oldPriceID, newPriceID string, priceCents int64, interval string) error {
	const op = "postgres.plans.replace_price"

	tag, err := s.db.Exec(ctx,
		`UPDATE plans SET stripe_price_id = $1, price_cents = $2, interval = $3 WHERE stripe_price_id = $4`,
		newPriceID, priceCents, interval, oldPriceID)
	if err != nil {
		return domain.Internal(err, op, "failed to replace price")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "plan", oldPriceID)
	}
	return nil
}

func (s *PlanStore) SetMeta(ctx context.Context, priceID string, name, description *string) error {
	const op = "postgres.plans.set_meta"

	tag, err := s.db.Exec(ctx,
		`UPDATE plans
		 SET name = COALESCE($1, name), description = COALESCE($2, description)
		 WHERE stripe_price_id = $3`,
		name, description, priceID)
	if err != nil {
		return domain.Internal(err, op, "failed to update plan")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "plan", priceID)
	}
	return nil
}

func (s *PlanStore) DeleteByPriceID(ctx context.Context, priceID string) error {
	const op = "postgres.plans.delete_by_price_id"

	tag, err := s.db.Exec(ctx, `DELETE FROM plans WHERE stripe_price_id = $1`, priceID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete plan")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "plan", priceID)
	}
	return nil
}
