package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/domain/access"
)

// Sellers list their own sales; the use case widens the list for sale.view_all.
func SetupSaleRouter(v1 *echo.Group, mw Middlewares) {
	saleHandler := handler.GetSaleHandler()

	sales := v1.Group("/sales", mw.Auth.Authenticate)
	sales.POST("", saleHandler.CreateSale, mw.Capability.Require(access.SaleCreate))
	sales.GET("", saleHandler.ListSales)
	sales.GET("/:id", saleHandler.GetSale)
}
