package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/metrics"
	authmw "github.com/Skotchmaster/school_canteen/internal/middleware/auth"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	DB      Pinger
	Auth    *authmw.AutoRefreshMiddleware
	Users   *AuthHTTP
	Profile *ProfileHTTP
	Menu    *MenuHTTP
	Cart    *CartHTTP
	Orders  *OrderHTTP
	Balance *BalanceHTTP
	Promos  *PromoHTTP
	Admin   *AdminHTTP
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if err := d.DB.Ping(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", metrics.Handler())

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.Users.Register)
	v1.POST("/login", d.Users.Login)
	v1.POST("/refresh", d.Users.Refresh)
	v1.POST("/logout", d.Users.Logout)

	v1.GET("/menu", d.Menu.Menu)
	v1.GET("/menu/categories", d.Menu.Categories)
	v1.GET("/menu/search", d.Menu.Search)
	v1.GET("/meals/:id", d.Menu.Meal)
	v1.POST("/promo/validate", d.Promos.Validate)

	profile := v1.Group("/profile", d.Auth.RequireAuth)

	profile.GET("", d.Profile.Get)
	profile.PATCH("", d.Profile.Patch)

	balance := v1.Group("/balance")

	balance.GET("/fees", d.Balance.Fees)
	balance.GET("", d.Balance.Balance, d.Auth.RequireAuth)
	balance.POST("/topup", d.Balance.TopUp, d.Auth.RequireAuth)
	balance.GET("/payments", d.Balance.Payments, d.Auth.RequireAuth)

	cart := v1.Group("/cart", d.Auth.RequireAuth)

	cart.GET("", d.Cart.GetCart)
	cart.POST("", d.Cart.AddToCart)
	cart.POST("/checkout", d.Cart.Checkout)
	cart.DELETE("/:id", d.Cart.DeleteOneFromCart)
	cart.DELETE("", d.Cart.DeleteAllFromCart)

	orders := v1.Group("/orders", d.Auth.RequireAuth)

	orders.POST("", d.Orders.Place)
	orders.GET("", d.Orders.History)
	orders.GET("/:id", d.Orders.Get)

	admin := v1.Group("/admin", d.Auth.RequireAdmin)

	admin.GET("/stats", d.Admin.Stats)
	admin.GET("/users", d.Admin.Users)

	admin.GET("/orders", d.Orders.AdminList)
	admin.PATCH("/orders/:id/status", d.Orders.AdminSetStatus)

	admin.GET("/meals", d.Admin.Meals)
	admin.POST("/meals", d.Admin.CreateMeal)
	admin.PUT("/meals/:id", d.Admin.UpdateMeal)
	admin.PATCH("/meals/:id/availability", d.Admin.SetAvailability)
	admin.DELETE("/meals/:id", d.Admin.DeleteMeal)
	admin.POST("/meals/reindex", d.Admin.Reindex)

	admin.POST("/categories", d.Admin.CreateCategory)
	admin.PUT("/categories/:id", d.Admin.UpdateCategory)
	admin.DELETE("/categories/:id", d.Admin.DeleteCategory)

	admin.GET("/promos", d.Promos.AdminList)
	admin.POST("/promos", d.Promos.AdminCreate)
	admin.PUT("/promos/:id", d.Promos.AdminUpdate)
	admin.POST("/promos/:id/deactivate", d.Promos.AdminDeactivate)
}
