package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/metrics"
	mwauth "github.com/Skotchmaster/storefront/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/storefront/internal/middleware/logging"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
	CartHandler    *handlers.CartHandler
	OrderHandler   *handlers.OrderHandler
	TokenAuth      *mwauth.TokenAuth
	Metrics        *metrics.Metrics
	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

// New builds the echo instance with the common middleware stack and all
// routes registered.
func New(base *slog.Logger, d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(base),
		d.Metrics.Middleware(),
	)

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", d.Metrics.Handler())
	}

	requireAuth := d.TokenAuth.RequireAuth()

	api := e.Group("/api")

	api.POST("/register", d.AuthHandler.Register)
	api.POST("/login", d.AuthHandler.Login)
	api.POST("/refresh", d.AuthHandler.Refresh, d.TokenAuth.RequireRefresh())
	api.POST("/logout", d.AuthHandler.Logout, requireAuth)
	api.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	api.POST("/reset-password/:token", d.AuthHandler.ResetPassword)
	api.POST("/change-password", d.AuthHandler.ChangePassword, requireAuth)

	api.GET("/me", d.UserHandler.Me, requireAuth)
	users := api.Group("/users", requireAuth)
	users.GET("", d.UserHandler.ListUsers, mwauth.RequireAdmin)
	users.GET("/:id", d.UserHandler.GetUser)
	users.PUT("/:id", d.UserHandler.UpdateUser)
	users.DELETE("/:id", d.UserHandler.DeleteUser)
	users.GET("/:id/logs", d.UserHandler.UserLogs)

	products := api.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.SearchHandler.Search)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.POST("", d.ProductHandler.CreateProduct, requireAuth, mwauth.RequireAdmin)
	products.PATCH("/:id", d.ProductHandler.PatchProduct, requireAuth, mwauth.RequireAdmin)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct, requireAuth, mwauth.RequireAdmin)

	cart := api.Group("/cart", requireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.DELETE("", d.CartHandler.DeleteAllFromCart)
	cart.DELETE("/:product_id", d.CartHandler.DeleteOneFromCart)

	orders := api.Group("/orders", requireAuth)
	orders.POST("", d.OrderHandler.Checkout)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
}
