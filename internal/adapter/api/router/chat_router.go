package router

import (
	"github.com/labstack/echo/v4"

	"servisku/internal/adapter/api/handler"
	"servisku/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.POST("", chatHandler.StartChat)              // POST /v1/chats - start chat about a service
	chatGroup.GET("", chatHandler.GetMyChats)              // GET /v1/chats - caller's active chats
	chatGroup.GET("/:id", chatHandler.GetChatByID)         // GET /v1/chats/:id
	chatGroup.PUT("/:id/read", chatHandler.MarkChatAsRead) // PUT /v1/chats/:id/read

	chatGroup.POST("/:id/messages", chatHandler.SendMessage)    // POST /v1/chats/:id/messages
	chatGroup.GET("/:id/messages", chatHandler.GetChatMessages) // GET /v1/chats/:id/messages
}
