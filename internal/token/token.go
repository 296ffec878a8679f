// Package token issues and validates the two token kinds the API uses:
// short-lived access tokens (scope api_access) and session-bound refresh
// tokens (scope token_refresh). Scope segregation means a leaked access
// token cannot be replayed as a refresh token.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ferdiga/subgate/internal/domain"
)

const (
	ScopeAPIAccess    = "api_access"
	ScopeTokenRefresh = "token_refresh"
)

// Claims are the signed token contents. The session token-id travels in
// the registered jti claim; the subject is the user's email.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// SessionID returns the jti claim binding a refresh token to a session row.
func (c *Claims) SessionID() string {
	return c.ID
}

type Service struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// NewService builds a token service signing with a shared secret.
// Supported algorithms are the HMAC family (HS256/HS384/HS512).
func NewService(secret, algorithm string, accessTTL, refreshTTL time.Duration) (*Service, error) {
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &Service{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// RefreshTTL is the refresh-token lifetime, which is also the session
// row lifetime.
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// IssueAccessToken signs a short-lived API token for the subject.
func (s *Service) IssueAccessToken(subject string) (string, error) {
	return s.sign(Claims{
		Scope: ScopeAPIAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
}

// IssueRefreshToken signs a refresh token bound to a session row via jti.
// Revoking the session invalidates the token before its embedded expiry,
// which a purely stateless token could not do.
func (s *Service) IssueRefreshToken(subject, sessionID string) (string, error) {
	return s.sign(Claims{
		Scope: ScopeTokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
}

func (s *Service) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", domain.Internal(err, "token.sign", "failed to sign token")
	}
	return signed, nil
}

// Validate verifies signature, structure, scope and expiry. Every failure
// maps to an unauthorized error; none of them is retryable.
func (s *Service) Validate(tokenStr, expectedScope string) (*Claims, error) {
	const op = "token.validate"

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, domain.Unauthorized(op, "token not authorized")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, domain.Unauthorized(op, "token not authorized")
	}

	if claims.Scope != expectedScope {
		return nil, domain.Unauthorized(op, "token not authorized")
	}
	if claims.Subject == "" {
		return nil, domain.Unauthorized(op, "token not authorized")
	}
	if expectedScope == ScopeTokenRefresh && claims.ID == "" {
		return nil, domain.Unauthorized(op, "token not authorized")
	}

	return claims, nil
}

// PeekSessionID extracts the jti claim without verifying the signature.
// The result is only a lookup key for the session row; authorization
// decisions always go through Validate.
func (s *Service) PeekSessionID(tokenStr string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return "", domain.Unauthorized("token.peek", "token not authorized")
	}
	if claims.ID == "" {
		return "", domain.Unauthorized("token.peek", "token not authorized")
	}
	return claims.ID, nil
}
