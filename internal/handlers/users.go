package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	mwauth "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	authsvc "github.com/Skotchmaster/storefront/internal/service/auth"
)

type UserHandler struct {
	Svc *authsvc.Service
}

func (h *UserHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.me")

	id, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	user, err := h.Svc.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, authsvc.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return internalError(l, "get_me_failed", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.list")

	page, size := pageParams(c)
	res, err := h.Svc.ListUsers(ctx, page, size)
	if err != nil {
		return internalError(l, "list_users_failed", err)
	}
	return c.JSON(http.StatusOK, struct {
		Data []models.User `json:"data"`
		Meta pageMeta      `json:"meta"`
	}{res.Users, newPageMeta(res.Page, res.Size, res.Total)})
}

func (h *UserHandler) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.get")

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.Svc.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, authsvc.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return internalError(l, "get_user_failed", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.update")

	actor, err := mwauth.Actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if actor.ID != id {
		return echo.NewHTTPError(http.StatusForbidden, "Unauthorized")
	}

	var req authsvc.UpdateUserInput
	if err := bindBody(c, &req); err != nil {
		return badBody(l, "update_user_failed", err)
	}

	user, err := h.Svc.UpdateUser(ctx, actor, id, req)
	if err != nil {
		var verr *authsvc.ValidationError
		switch {
		case errors.As(err, &verr):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, verr.Fields)
		case errors.Is(err, authsvc.ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "Unauthorized")
		case errors.Is(err, authsvc.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return internalError(l, "update_user_failed", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.delete")

	actor, err := mwauth.Actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.Svc.DeleteUser(ctx, actor, id); err != nil {
		switch {
		case errors.Is(err, authsvc.ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "Unauthorized")
		case errors.Is(err, authsvc.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return internalError(l, "delete_user_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) UserLogs(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.logs")

	actor, err := mwauth.Actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	logs, err := h.Svc.UserLogs(ctx, actor, id)
	if err != nil {
		if errors.Is(err, authsvc.ErrForbidden) {
			return echo.NewHTTPError(http.StatusForbidden, "Unauthorized")
		}
		return internalError(l, "user_logs_failed", err)
	}
	return c.JSON(http.StatusOK, logs)
}
