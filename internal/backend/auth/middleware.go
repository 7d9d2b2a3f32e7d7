package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jo-hoe/neuragallery/internal/backend/database"
	"github.com/labstack/echo/v4"
)

const (
	userContextKey   = "auth.user"
	claimsContextKey = "auth.claims"

	msgInvalidCredentials = "Invalid authentication credentials"
	msgUserNotFound       = "User not found"
)

// UserLookup resolves the subject of a token to a stored user
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
}

// Middleware guards routes that need a bearer token
type Middleware struct {
	tokens   *TokenService
	users    UserLookup
	denylist Denylist
}

// NewMiddleware builds the guard; denylist may be nil when revocation is disabled
func NewMiddleware(tokens *TokenService, users UserLookup, denylist Denylist) *Middleware {
	return &Middleware{tokens: tokens, users: users, denylist: denylist}
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidCredentials)
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireUser rejects requests without a valid, unrevoked token of an existing user
func (m *Middleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return unauthorized(c)
		}
		claims, ok := m.tokens.Verify(token)
		if !ok {
			return unauthorized(c)
		}

		ctx := c.Request().Context()
		if m.denylist != nil && claims.ID != "" {
			revoked, err := m.denylist.IsRevoked(ctx, claims.ID)
			if err != nil {
				slog.Error("Auth: revocation check failed", "error", err)
				return unauthorized(c)
			}
			if revoked {
				return unauthorized(c)
			}
		}

		user, err := m.users.GetUserByUsername(ctx, claims.Username())
		if err != nil {
			slog.Error("Auth: user lookup failed", "username", claims.Username(), "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if user == nil {
			return echo.NewHTTPError(http.StatusNotFound, msgUserNotFound)
		}

		c.Set(userContextKey, user)
		c.Set(claimsContextKey, claims)
		return next(c)
	}
}

// CurrentUser returns the user stored by RequireUser
func CurrentUser(c echo.Context) *database.User {
	user, _ := c.Get(userContextKey).(*database.User)
	return user
}

// CurrentClaims returns the verified token claims stored by RequireUser
func CurrentClaims(c echo.Context) *Claims {
	claims, _ := c.Get(claimsContextKey).(*Claims)
	return claims
}
