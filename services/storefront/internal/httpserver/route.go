package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	middleware "github.com/Skotchmaster/souq/pkg/middleware/auth"
	"github.com/Skotchmaster/souq/pkg/middleware/ratelimit"
)

func init() {
	// prices and totals go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Deps struct {
	Catalog  *CatalogHTTP
	Delivery *DeliveryHTTP
	Orders   *OrderHTTP
	Auth     *AuthHTTP

	Bearer       *middleware.BearerAuth
	LoginLimiter *ratelimit.PerIP
	Ready        func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/api")
	admin := d.Bearer.RequireAdmin

	api.GET("/categories", d.Catalog.Categories)

	products := api.Group("/products")
	products.GET("", d.Catalog.ListProducts)
	products.GET("/featured", d.Catalog.Featured)
	products.GET("/search", d.Catalog.Search)
	products.GET("/category/:categoryId", d.Catalog.ByCategory)
	products.GET("/low-stock", d.Catalog.LowStock, admin)
	products.GET("/:id", d.Catalog.GetProduct)
	products.POST("/:id/reviews", d.Catalog.AddReview, d.Bearer.RequireAuth)
	products.POST("", d.Catalog.CreateProduct, admin)
	products.PATCH("/:id", d.Catalog.PatchProduct, admin)
	products.DELETE("/:id", d.Catalog.DeleteProduct, admin)

	delivery := api.Group("/delivery")
	delivery.GET("/zones", d.Delivery.Zones)
	delivery.GET("/cities", d.Delivery.Cities)
	delivery.POST("/check", d.Delivery.Check)
	delivery.POST("/calculate", d.Delivery.Calculate)

	orders := api.Group("/orders")
	orders.POST("", d.Orders.CreateOrder, d.Bearer.OptionalAuth)
	orders.GET("/my", d.Orders.MyOrders, d.Bearer.RequireAuth)
	orders.GET("/recent", d.Orders.Recent, admin)
	orders.GET("/stats", d.Orders.Stats, admin)
	orders.GET("/live", d.Orders.Live, admin)
	orders.GET("/status/:status", d.Orders.ByStatus, admin)
	orders.GET("/:id", d.Orders.GetOrder)
	orders.PUT("/:id/status", d.Orders.UpdateStatus, admin)

	auth := api.Group("/auth")
	login := []echo.MiddlewareFunc{}
	if d.LoginLimiter != nil {
		login = append(login, d.LoginLimiter.Middleware())
	}
	auth.POST("/login", d.Auth.Login, login...)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout)
	auth.GET("/profile", d.Auth.Profile, d.Bearer.RequireAuth)
	auth.PUT("/profile", d.Auth.UpdateProfile, d.Bearer.RequireAuth)
}
