package router

import (
	"github.com/labstack/echo/v4"

	"parley/internal/adapter/api/handler"
	"parley/internal/adapter/api/middleware"
)

func SetupUserRouter(e *echo.Echo, userHandler *handler.UserHandler, authMiddleware *middleware.AuthMiddleware) {
	userGroup := e.Group("/v1/users")
	userGroup.Use(authMiddleware.Authenticate)

	userGroup.GET("", userHandler.List)
	userGroup.GET("/me", userHandler.Me)
	userGroup.PUT("/me", userHandler.UpdateProfile)
	userGroup.POST("/me/devices", userHandler.RegisterDevice)
}
