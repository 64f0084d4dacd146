package leave

import (
	"go-leavedesk/internal/employee"
	"go-leavedesk/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, rdb *redis.Client) {
	leaves := r.Group("/leaves")
	leaves.Use(middleware.AuthMiddleware())
	if rdb != nil {
		leaves.Use(middleware.Idempotency(rdb))
	}
	{
		leaves.POST("", handler.Apply)
		leaves.GET("", middleware.RoleMiddleware(employee.RoleManager, employee.RoleHR), handler.GetAll)
		leaves.GET("/mine", handler.GetMine)
		leaves.GET("/pending", middleware.RoleMiddleware(employee.RoleManager, employee.RoleHR), handler.GetPending)
		leaves.GET("/:id", handler.GetById)
		leaves.PUT("/:id", handler.Edit)
		leaves.POST("/:id/approve", middleware.RoleMiddleware(employee.RoleManager, employee.RoleHR), handler.Approve)
		leaves.POST("/:id/reject", middleware.RoleMiddleware(employee.RoleManager, employee.RoleHR), handler.Reject)
		leaves.POST("/:id/cancel", handler.Cancel)
	}
}
