package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/middleware"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/usecase"
)

var (
	authHandler         *AuthHandler
	userHandler         *UserHandler
	chatHandler         *ChatHandler
	notificationHandler *NotificationHandler
	auditHandler        *AuditHandler
	productHandler      *ProductHandler
	saleHandler         *SaleHandler
	serviceOrderHandler *ServiceOrderHandler
)

type UseCases struct {
	Auth          *usecase.AuthUseCase
	Users         *usecase.UserUseCase
	Chat          *usecase.ChatUseCase
	Notifications *usecase.NotificationUseCase
	Audit         *usecase.AuditUseCase
	Products      *usecase.ProductUseCase
	Sales         *usecase.SaleUseCase
	ServiceOrders *usecase.ServiceOrderUseCase
}

func Setup(uc UseCases) {
	authHandler = NewAuthHandler(uc.Auth)
	userHandler = NewUserHandler(uc.Users)
	chatHandler = NewChatHandler(uc.Chat)
	notificationHandler = NewNotificationHandler(uc.Notifications)
	auditHandler = NewAuditHandler(uc.Audit)
	productHandler = NewProductHandler(uc.Products)
	saleHandler = NewSaleHandler(uc.Sales)
	serviceOrderHandler = NewServiceOrderHandler(uc.ServiceOrders)
}

func GetAuthHandler() *AuthHandler {
	return authHandler
}

func GetUserHandler() *UserHandler {
	return userHandler
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetNotificationHandler() *NotificationHandler {
	return notificationHandler
}

func GetAuditHandler() *AuditHandler {
	return auditHandler
}

func GetProductHandler() *ProductHandler {
	return productHandler
}

func GetSaleHandler() *SaleHandler {
	return saleHandler
}

func GetServiceOrderHandler() *ServiceOrderHandler {
	return serviceOrderHandler
}

func currentUser(c echo.Context) *entity.User {
	return middleware.CurrentUser(c)
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
