package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ferdiga/subgate/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	db DB
}

// Compile-time check to ensure UserStore implements domain.UserStore.
var _ domain.UserStore = (*UserStore)(nil)

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, stripe_customer_id, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.StripeCustomerID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.users.create"

	user, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (email) VALUES ($1) RETURNING `+userColumns, email))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "user with this email already exists")
		}
		return nil, domain.Internal(err, op, "failed to create user")
	}
	return user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const op = "postgres.users.get_by_id"

	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get user")
	}
	return user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.users.get_by_email"

	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get user")
	}
	return user, nil
}

func (s *UserStore) GetByCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	const op = "postgres.users.get_by_customer_id"

	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get user")
	}
	return user, nil
}

func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	const op = "postgres.users.list"

	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list users")
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan user")
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list users")
	}
	return users, nil
}

func (s *UserStore) SetCustomerID(ctx context.Context, id int64, customerID string) error {
	const op = "postgres.users.set_customer_id"

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET stripe_customer_id = $1 WHERE id = $2`, customerID, id)
	if err != nil {
		return domain.Internal(err, op, "failed to update user")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "user", "")
	}
	return nil
}

func (s *UserStore) DeleteByCustomerID(ctx context.Context, customerID string) error {
	const op = "postgres.users.delete_by_customer_id"

	tag, err := s.db.Exec(ctx,
		`DELETE FROM users WHERE stripe_customer_id = $1`, customerID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete user")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "user", customerID)
	}
	return nil
}
