package notification

import (
	"github.com/gin-gonic/gin"

	"jdcportal/internal/middleware"
)

// RegisterRoutes mounts the feed and the admin-only manual trigger on protected.
func RegisterRoutes(protected *gin.RouterGroup, handler *Handler) {
	notifGroup := protected.Group("/notifications")
	{
		notifGroup.POST("", middleware.AdminOnly(), handler.Create)
		notifGroup.GET("/list", handler.List)
		notifGroup.POST("/mark-all-read", handler.MarkAllAsRead)
		notifGroup.POST("/:id/read", handler.MarkAsRead)
		notifGroup.DELETE("/:id", handler.Delete)
	}
}
