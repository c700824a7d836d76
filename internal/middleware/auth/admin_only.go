package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
)

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := UserID(c)
		if err != nil {
			return err
		}
		if role, _ := c.Get(RoleKey).(string); role != models.RoleAdmin {
			logging.FromContext(c.Request().Context()).Warn("admin_required", "status", 403, "user_id", id)
			return echo.NewHTTPError(http.StatusForbidden, "admin only")
		}
		return next(c)
	}
}
