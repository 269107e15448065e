package router

import (
	"github.com/labstack/echo/v4"

	"parley/internal/adapter/api/handler"
	"parley/internal/adapter/api/middleware"
)

func SetupChannelRouter(e *echo.Echo, channelHandler *handler.ChannelHandler, authMiddleware *middleware.AuthMiddleware) {
	channelGroup := e.Group("/v1/channels")
	channelGroup.Use(authMiddleware.Authenticate)

	channelGroup.POST("", channelHandler.Create)
	channelGroup.GET("", channelHandler.List)
	channelGroup.GET("/:id", channelHandler.Get)
	channelGroup.PUT("/:id", channelHandler.Update)
	channelGroup.DELETE("/:id", channelHandler.Delete)

	channelGroup.GET("/:id/invite", channelHandler.InviteLink)
	channelGroup.POST("/:id/invite", channelHandler.RegenerateInvite)

	inviteGroup := e.Group("/v1/invite")
	inviteGroup.Use(authMiddleware.Authenticate)
	inviteGroup.POST("/:token/accept", channelHandler.AcceptInvite)
}
