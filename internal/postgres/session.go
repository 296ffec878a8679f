package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ferdiga/subgate/internal/domain"
)

// SessionStore implements domain.SessionStore using PostgreSQL.
type SessionStore struct {
	db DB
}

// Compile-time check to ensure SessionStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionStore)(nil)

func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `jti, sub, is_active, use_count, created_at, expires_at`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	if err := row.Scan(&s.JTI, &s.Subject, &s.IsActive, &s.UseCount, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *SessionStore) Create(ctx context.Context, jti, subject string, expiresAt time.Time) (*domain.Session, error) {
	const op = "postgres.sessions.create"

	session, err := scanSession(s.db.QueryRow(ctx,
		`INSERT INTO sessions (jti, sub, expires_at) VALUES ($1, $2, $3) RETURNING `+sessionColumns,
		jti, subject, expiresAt))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create session")
	}
	return session, nil
}

func (s *SessionStore) GetByJTI(ctx context.Context, jti string) (*domain.Session, error) {
	const op = "postgres.sessions.get_by_jti"

	session, err := scanSession(s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE jti = $1`, jti))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to get session")
	}
	return session, nil
}

func (s *SessionStore) ActiveBySubject(ctx context.Context, subject string) ([]domain.Session, error) {
	const op = "postgres.sessions.active_by_subject"

	rows, err := s.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE sub = $1 AND is_active`, subject)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list sessions")
	}
	defer rows.Close()

	return collectSessions(rows, op)
}

func (s *SessionStore) Delete(ctx context.Context, jti string) error {
	const op = "postgres.sessions.delete"

	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE jti = $1`, jti); err != nil {
		return domain.Internal(err, op, "failed to delete session")
	}
	return nil
}

// Rotate consumes the old session and issues its replacement atomically.
// Two concurrent refreshes of the same token race on the DELETE: the loser
// sees zero rows and the rotation aborts instead of minting a second pair.
func (s *SessionStore) Rotate(ctx context.Context, oldJTI, newJTI, subject string, expiresAt time.Time) (*domain.Session, error) {
	const op = "postgres.sessions.rotate"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE jti = $1`, oldJTI)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to delete consumed session")
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.Unauthorized(op, "token not authorized")
	}

	session, err := scanSession(tx.QueryRow(ctx,
		`INSERT INTO sessions (jti, sub, expires_at) VALUES ($1, $2, $3) RETURNING `+sessionColumns,
		newJTI, subject, expiresAt))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create replacement session")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit rotation")
	}
	return session, nil
}

func (s *SessionStore) Expired(ctx context.Context, now time.Time) ([]domain.Session, error) {
	const op = "postgres.sessions.expired"

	rows, err := s.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE NOT is_active OR expires_at < $1`, now)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list expired sessions")
	}
	defer rows.Close()

	return collectSessions(rows, op)
}

func collectSessions(rows pgx.Rows, op string) ([]domain.Session, error) {
	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan session")
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read sessions")
	}
	return sessions, nil
}
