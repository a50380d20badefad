package router

import (
	"github.com/labstack/echo/v4"

	"servisku/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes.
// Auth happens inside the handler so the handshake can carry the token
// as a query parameter.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
