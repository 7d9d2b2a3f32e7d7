package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the access token lifetime used when none is configured
const DefaultTokenTTL = 30 * time.Minute

var ErrEmptySecret = errors.New("token secret must not be empty")

// Claims carries the subject and expiry of an access token
type Claims struct {
	jwt.RegisteredClaims
}

// Username is the subject the token was issued to
func (c *Claims) Username() string {
	return c.Subject
}

// TokenService issues and verifies HS256 access tokens
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source, used to test expiry
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for username that expires one TTL from now
func (s *TokenService) Issue(username string) (string, time.Time, error) {
	now := s.now()
	// exp carries whole seconds, round up so the token lives at least one TTL
	expiresAt := now.Add(s.ttl)
	if rounded := expiresAt.Truncate(time.Second); !rounded.Equal(expiresAt) {
		expiresAt = rounded.Add(time.Second)
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify returns the claims of a valid token. It never returns an error;
// any failure is reported as ok == false.
func (s *TokenService) Verify(tokenString string) (*Claims, bool) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		slog.Debug("Auth: token rejected", "error", err)
		return nil, false
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, false
	}
	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, false
	}
	return claims, true
}
