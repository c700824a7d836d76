package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	mwauth "github.com/Skotchmaster/storefront/internal/middleware/auth"
	authsvc "github.com/Skotchmaster/storefront/internal/service/auth"
)

type AuthHandler struct {
	Svc *authsvc.Service
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req authsvc.RegisterInput
	if err := bindBody(c, &req); err != nil {
		return badBody(l, "register_failed", err)
	}

	user, err := h.Svc.Register(ctx, req)
	if err != nil {
		var verr *authsvc.ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, verr.Fields)
		}
		return internalError(l, "register_failed", err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req loginRequest
	if err := bindBody(c, &req); err != nil {
		return badBody(l, "login_failed", err)
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
		case errors.Is(err, authsvc.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid username or password")
		}
		return internalError(l, "login_failed", err)
	}
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

// Refresh runs behind RequireRefresh.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	claims, err := mwauth.Claims(c)
	if err != nil {
		return err
	}
	access, err := h.Svc.Refresh(ctx, claims)
	if err != nil {
		if errors.Is(err, authsvc.ErrUnauthorized) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return internalError(l, "refresh_failed", err)
	}
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: access.Raw})
}

// Logout revokes the bearer access token. A refresh token may be passed in
// the body to end the whole session.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	claims, err := mwauth.Claims(c)
	if err != nil {
		return err
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badBody(l, "logout_failed", err)
		}
	}

	if err := h.Svc.Logout(ctx, claims, req.RefreshToken); err != nil {
		return internalError(l, "logout_failed", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.forgot_password")

	var req struct {
		Email string `json:"email"`
	}
	if err := bindBody(c, &req); err != nil && !errors.Is(err, errNoInput) {
		return badBody(l, "forgot_password_failed", err)
	}

	err := h.Svc.ForgotPassword(ctx, req.Email)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, messageResponse{Message: "Send email reset password"})
	case errors.Is(err, authsvc.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, "Email is required")
	case errors.Is(err, authsvc.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found with this email")
	case errors.Is(err, authsvc.ErrDelivery):
		return echo.NewHTTPError(http.StatusBadGateway, "Could not send reset email, try again later")
	}
	return internalError(l, "forgot_password_failed", err)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.reset_password")

	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := bindBody(c, &req); err != nil && !errors.Is(err, errNoInput) {
		return badBody(l, "reset_password_failed", err)
	}

	err := h.Svc.ResetPassword(ctx, c.Param("token"), req.NewPassword)
	if err != nil {
		var verr *authsvc.ValidationError
		switch {
		case errors.As(err, &verr):
			return echo.NewHTTPError(http.StatusBadRequest, verr.Fields)
		case errors.Is(err, authsvc.ErrInvalidResetToken):
			return echo.NewHTTPError(http.StatusBadRequest, "Token is invalid or expired")
		}
		return internalError(l, "reset_password_failed", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password reset successfully"})
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.change_password")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := bindBody(c, &req); err != nil && !errors.Is(err, errNoInput) {
		return badBody(l, "change_password_failed", err)
	}

	err = h.Svc.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var verr *authsvc.ValidationError
		switch {
		case errors.As(err, &verr):
			return echo.NewHTTPError(http.StatusBadRequest, firstMessage(verr.Fields))
		case errors.Is(err, authsvc.ErrWrongCurrentPassword):
			return echo.NewHTTPError(http.StatusBadRequest, "Current password is incorrect")
		case errors.Is(err, authsvc.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return internalError(l, "change_password_failed", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password changed successfully"})
}
