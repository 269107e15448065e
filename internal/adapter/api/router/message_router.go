package router

import (
	"github.com/labstack/echo/v4"

	"parley/internal/adapter/api/handler"
	"parley/internal/adapter/api/middleware"
)

func SetupMessageRouter(e *echo.Echo, messageHandler *handler.MessageHandler, authMiddleware *middleware.AuthMiddleware) {
	messageGroup := e.Group("/v1/messages")
	messageGroup.Use(authMiddleware.Authenticate)

	messageGroup.POST("", messageHandler.Send)
	messageGroup.GET("", messageHandler.Fetch)
	messageGroup.PUT("/:id", messageHandler.Edit)
	messageGroup.DELETE("/:id", messageHandler.Delete)
	messageGroup.POST("/:id/forward", messageHandler.Forward)
	messageGroup.POST("/:id/seen", messageHandler.MarkSeen)
}
