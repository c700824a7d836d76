package auth

import (
	"context"
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	authsvc "github.com/Skotchmaster/storefront/internal/service/auth"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*tokens.Claims, error)
	AuthenticateRefresh(ctx context.Context, raw string) (*tokens.Claims, error)
}

type TokenAuth struct {
	Svc Authenticator
}

// RequireAuth accepts requests carrying a valid, unrevoked access token in
// the Authorization header.
func (t *TokenAuth) RequireAuth() echo.MiddlewareFunc {
	return bearer(t.Svc.Authenticate)
}

// RequireRefresh is RequireAuth for refresh tokens.
func (t *TokenAuth) RequireRefresh() echo.MiddlewareFunc {
	return bearer(t.Svc.AuthenticateRefresh)
}

func bearer(verify func(ctx context.Context, raw string) (*tokens.Claims, error)) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:Authorization:Bearer ",
		ContextKey:  ClaimsKey,
		ParseTokenFunc: func(c echo.Context, raw string) (interface{}, error) {
			return verify(c.Request().Context(), raw)
		},
		SuccessHandler: func(c echo.Context) {
			if err := setUserContext(c); err != nil {
				c.Set(ClaimsKey, nil)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var missing *echojwt.TokenExtractionError
			if errors.As(err, &missing) || errors.Is(err, authsvc.ErrUnauthorized) {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			logging.FromContext(c.Request().Context()).Error("token_check_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		},
	})
}
