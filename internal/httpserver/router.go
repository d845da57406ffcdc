package httpserver

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/fardelhq/shop/internal/config"
	"github.com/fardelhq/shop/internal/handlers"
	"github.com/fardelhq/shop/internal/service/token"
)

type Deps struct {
	DB             *gorm.DB
	Config         *config.Config
	AuthHandler    *handlers.AuthHandler
	PanelHandler   *handlers.PanelHandler
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
	TokenService   *token.TokenService
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = &requestValidator{validate: validator.New()}
	e.Renderer = NewRenderer()

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := e.Group("/api/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.LogOut, d.TokenService.RequireAccess)
	auth.POST("/logout-refresh", d.AuthHandler.LogOutRefresh, d.TokenService.RequireRefresh)
	auth.POST("/refresh-token", d.AuthHandler.RefreshToken, d.TokenService.RequireRefresh)
	auth.GET("/profile", d.AuthHandler.Profile, d.TokenService.RequireAccess)
	auth.PUT("/profile", d.AuthHandler.UpdateProfile, d.TokenService.RequireAccess)

	if !d.Config.AppActive("ecommerce") {
		return
	}

	panel := e.Group("/orders", d.TokenService.RequireStaff)
	panel.GET("/list", d.PanelHandler.OrdersList)
	panel.GET("/list/:id", d.PanelHandler.OrdersInfo)
	panel.GET("/confirm_order/:id", d.PanelHandler.ConfirmOrder)
	panel.GET("/delete/:id", d.PanelHandler.OrderDelete)

	v1 := e.Group("/api/v1")

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	admin := v1.Group("/products", d.TokenService.RequireAdmin)
	admin.POST("", d.ProductHandler.CreateProduct)
	admin.PATCH("/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/:id", d.ProductHandler.DeleteProduct)
	admin.POST("/:id/image", d.ProductHandler.UploadImage)

	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}
}
