package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/search"
)

type SearchHandler struct {
	Svc *search.Service
}

func (h *SearchHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}

	page, size := pageParams(c)
	res, err := h.Svc.Search(ctx, q, page, size)
	if err != nil {
		return internalError(l, "search_failed", err)
	}
	return c.JSON(http.StatusOK, struct {
		Data []models.Product `json:"data"`
		Meta pageMeta         `json:"meta"`
	}{res.Items, newPageMeta(res.Page, res.Size, res.Total)})
}
