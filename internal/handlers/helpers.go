package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/internal/validate"
)

var errNoInput = errors.New("no input data provided")

// bindBody binds a JSON body and reports a missing body as errNoInput.
func bindBody(c echo.Context, dst any) error {
	if c.Request().ContentLength == 0 {
		return errNoInput
	}
	return c.Bind(dst)
}

func badBody(l *slog.Logger, event string, err error) error {
	if errors.Is(err, errNoInput) {
		l.Warn(event, "status", 400, "reason", "no input data")
		return echo.NewHTTPError(http.StatusBadRequest, "No input data provided")
	}
	l.Warn(event, "status", 400, "reason", "invalid body", "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
}

func internalError(l *slog.Logger, event string, err error) error {
	l.Error(event, "status", 500, "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func pathID(c echo.Context, name string) (uint, error) {
	id, ok := util.ParseUint(c.Param(name))
	if !ok {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return id, nil
}

// firstMessage flattens a field map into one message, for endpoints whose
// error body is a single {"message": ...}.
func firstMessage(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "invalid input"
	}
	return fields[keys[0]]
}

// invalidInput turns validate.Errors into a 422 field map. It returns nil
// for any other error.
func invalidInput(l *slog.Logger, event string, err error) error {
	var fields validate.Errors
	if !errors.As(err, &fields) {
		return nil
	}
	l.Warn(event, "status", 422, "fields", map[string]string(fields))
	return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]string(fields))
}

type pageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func newPageMeta(page, size int, total int64) pageMeta {
	return pageMeta{
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: (total + int64(size) - 1) / int64(size),
		HasPrev:    page > 1,
		HasNext:    int64(page*size) < total,
	}
}

func pageParams(c echo.Context) (page, size int) {
	return util.ParseIntDefault(c.QueryParam("page"), 1), util.ParseIntDefault(c.QueryParam("size"), 10)
}
