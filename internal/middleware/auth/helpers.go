package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	authsvc "github.com/Skotchmaster/storefront/internal/service/auth"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

// Context keys set by the middlewares in this package.
const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
	RoleKey   = "role"
)

var errNoClaims = errors.New("no verified token in context")

func setUserContext(c echo.Context) error {
	claims, ok := c.Get(ClaimsKey).(*tokens.Claims)
	if !ok {
		return errNoClaims
	}
	id, err := claims.UserID()
	if err != nil {
		return err
	}
	c.Set(UserIDKey, id)
	c.Set(RoleKey, claims.Role)
	req := c.Request()
	c.SetRequest(req.WithContext(logging.With(req.Context(), "user_id", id)))
	return nil
}

// Claims returns the verified token of the request.
func Claims(c echo.Context) (*tokens.Claims, error) {
	claims, ok := c.Get(ClaimsKey).(*tokens.Claims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return claims, nil
}

func UserID(c echo.Context) (uint, error) {
	id, ok := c.Get(UserIDKey).(uint)
	if !ok || id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

// Actor returns the authenticated caller as seen by the services.
func Actor(c echo.Context) (authsvc.Actor, error) {
	id, err := UserID(c)
	if err != nil {
		return authsvc.Actor{}, err
	}
	role, _ := c.Get(RoleKey).(string)
	return authsvc.Actor{ID: id, Role: role}, nil
}
