package router

import (
	"github.com/labstack/echo/v4"

	"servisku/internal/adapter/api/handler"
	"servisku/internal/adapter/api/middleware"
)

// SetupFileRouter sets up blob-upload routes
func SetupFileRouter(e *echo.Echo, fileHandler *handler.FileHandler, authMiddleware *middleware.AuthMiddleware) {
	fileGroup := e.Group("/v1/files")
	fileGroup.Use(authMiddleware.Authenticate)

	fileGroup.POST("/upload", fileHandler.UploadFile) // POST /v1/files/upload
}
