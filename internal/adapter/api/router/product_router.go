package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/domain/access"
)

func SetupProductRouter(v1 *echo.Group, mw Middlewares) {
	productHandler := handler.GetProductHandler()

	products := v1.Group("/products", mw.Auth.Authenticate, mw.Capability.Require(access.ProductView))
	products.GET("", productHandler.ListProducts)
	products.GET("/:id", productHandler.GetProduct)
	products.POST("", productHandler.CreateProduct, mw.Capability.Require(access.ProductManage))
	products.PUT("/:id", productHandler.UpdateProduct, mw.Capability.Require(access.ProductManage))
	products.POST("/:id/stock", productHandler.AdjustStock, mw.Capability.Require(access.StockAdjust))
}
