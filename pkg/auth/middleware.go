// Package auth provides password hashing, bearer token issuance and the
// echo middleware that guards write routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/questd/internal/logging"
	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/labstack/echo/v4"
)

type contextKey string

// principalKey is the echo context key holding the authenticated Principal.
const principalKey contextKey = "authenticated_principal"

// Principal identifies the authenticated caller.
type Principal struct {
	UserID   string
	Username string
}

// SubjectResolver maps a token subject to a principal. It returns an error
// wrapping apiv1.ErrNotFound when the subject names no user.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, subject string) (Principal, error)
}

// BearerAuth returns middleware that requires "Authorization: Bearer <token>",
// validates the token and resolves its subject to an existing user.
// Failures are returned as errors wrapping apiv1.ErrUnauthorized so the
// server's error handler maps them.
func BearerAuth(tokens *TokenIssuer, users SubjectResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return fmt.Errorf("%w: missing bearer token", apiv1.ErrUnauthorized)
			}

			subject, err := tokens.Parse(raw)
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			p, err := users.ResolveSubject(ctx, subject)
			if errors.Is(err, apiv1.ErrNotFound) {
				return fmt.Errorf("%w: unknown user", apiv1.ErrUnauthorized)
			}
			if err != nil {
				return err
			}

			c.Set(string(principalKey), p)
			c.SetRequest(c.Request().WithContext(logging.WithUserID(ctx, p.UserID)))
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal stored by BearerAuth.
func PrincipalFrom(c echo.Context) (Principal, bool) {
	p, ok := c.Get(string(principalKey)).(Principal)
	return p, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Challenge sets the WWW-Authenticate header sent with 401 responses.
func Challenge(h http.Header) {
	h.Set(echo.HeaderWWWAuthenticate, "Bearer")
}
