package router

import (
	"github.com/labstack/echo/v4"

	"parley/internal/adapter/api/handler"
)

// The WebSocket route authenticates itself from the token query parameter,
// so it sits outside the Authorization-header middleware.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
