package employee

import (
	"go-leavedesk/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	employees := r.Group("/employees")
	employees.Use(middleware.AuthMiddleware())
	{
		employees.GET("", middleware.RoleMiddleware(RoleManager, RoleHR), handler.GetAll)
		employees.GET("/options", handler.GetOptions)
		employees.GET("/:id", handler.GetById)
		employees.POST("", middleware.RoleMiddleware(RoleHR), handler.Create)
		employees.PUT("/:id", middleware.RoleMiddleware(RoleHR), handler.Update)
		employees.PUT("/:id/manager", middleware.RoleMiddleware(RoleHR), handler.ReassignManager)
		employees.DELETE("/:id", middleware.RoleMiddleware(RoleHR), handler.Delete)
	}
}
