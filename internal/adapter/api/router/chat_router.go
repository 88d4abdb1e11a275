package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/domain/access"
)

// SetupChatRouter mounts the HTTP chat routes. The live path is the websocket.
func SetupChatRouter(v1 *echo.Group, mw Middlewares) {
	chatHandler := handler.GetChatHandler()

	chats := v1.Group("/chats", mw.Auth.Authenticate, mw.Capability.Require(access.ChatUse))
	chats.GET("", chatHandler.ListConversations)
	chats.POST("/direct", chatHandler.CreateDirect)
	chats.POST("/groups", chatHandler.CreateGroup, mw.Capability.Require(access.ChatCreateGroup))
	chats.GET("/:id", chatHandler.GetConversation)
	chats.PUT("/:id/archive", chatHandler.Archive)
	chats.DELETE("/:id", chatHandler.DeleteConversation)
	chats.PUT("/:id/read", chatHandler.MarkRead)

	chats.GET("/:id/messages", chatHandler.ListMessages)
	chats.POST("/:id/messages", chatHandler.SendMessage)
	chats.POST("/:id/files", chatHandler.SendFile, mw.Capability.Require(access.FileUpload))
	chats.POST("/messages/:messageId/reactions", chatHandler.React)
}
