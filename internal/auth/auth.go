// Package auth orchestrates login, refresh rotation, logout and session
// reporting. All per-subject state lives in session rows; the store is the
// only synchronization point.
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/token"
)

// TokenPair is the envelope returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

type Service struct {
	users    domain.UserStore
	sessions domain.SessionStore
	tokens   *token.Service
	logger   *slog.Logger

	now func() time.Time
}

func NewService(users domain.UserStore, sessions domain.SessionStore, tokens *token.Service, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

// Login resolves the subject by email and opens a new session. There is no
// credential check beyond identity resolution; accounts carry no password.
func (s *Service) Login(ctx context.Context, email string) (*TokenPair, error) {
	const op = "auth.login"

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound(op, "user", email)
	}

	// A single insert: a store failure here leaves no partial session.
	jti := uuid.NewString()
	if _, err := s.sessions.Create(ctx, jti, user.Email, s.now().Add(s.tokens.RefreshTTL())); err != nil {
		return nil, err
	}

	pair, err := s.issuePair(user.Email, jti)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session opened", "sub", user.Email, "jti", jti)
	return pair, nil
}

// Refresh rotates a one-shot refresh token: the consumed session row is
// deleted and replaced in one transaction, so replaying the same token
// fails its session lookup (replay detection by absence).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "auth.refresh"

	// Phase one: unverified structural peek, only to find the session row.
	jti, err := s.tokens.PeekSessionID(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByJTI(ctx, jti)
	if err != nil {
		return nil, err
	}
	if session == nil {
		// Already consumed, revoked or never issued.
		return nil, domain.Unauthorized(op, "token not authorized")
	}

	// Phase two: signature, scope and expiry actually establish trust.
	claims, err := s.tokens.Validate(refreshToken, token.ScopeTokenRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound(op, "user", claims.Subject)
	}

	// The token's own expiry was checked above; the session row expiry is
	// enforced independently.
	if session.Expired(s.now()) {
		return nil, domain.Unauthorized(op, "token not authorized")
	}

	newJTI := uuid.NewString()
	if _, err := s.sessions.Rotate(ctx, session.JTI, newJTI, user.Email, s.now().Add(s.tokens.RefreshTTL())); err != nil {
		return nil, err
	}

	pair, err := s.issuePair(user.Email, newJTI)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session rotated", "sub", user.Email, "old_jti", session.JTI, "new_jti", newJTI)
	return pair, nil
}

// Logout revokes every active session for the subject.
func (s *Service) Logout(ctx context.Context, subject string) error {
	const op = "auth.logout"

	sessions, err := s.sessions.ActiveBySubject(ctx, subject)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return domain.NotFound(op, "session", subject)
	}

	for _, sess := range sessions {
		if err := s.sessions.Delete(ctx, sess.JTI); err != nil {
			return err
		}
	}

	s.logger.Info("sessions closed", "sub", subject, "count", len(sessions))
	return nil
}

// ExpiredSessions reports sessions that are inactive or past expiry.
// An empty result is not an error; the boundary renders a sentinel detail.
func (s *Service) ExpiredSessions(ctx context.Context) ([]domain.Session, error) {
	return s.sessions.Expired(ctx, s.now())
}

// Authenticate resolves the user behind a bearer access token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	const op = "auth.authenticate"

	claims, err := s.tokens.Validate(accessToken, token.ScopeAPIAccess)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound(op, "user", claims.Subject)
	}
	return user, nil
}

func (s *Service) issuePair(subject, jti string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(subject)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(subject, jti)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, TokenType: "bearer", RefreshToken: refresh}, nil
}
