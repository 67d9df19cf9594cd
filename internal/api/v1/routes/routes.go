package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/dmlat/STT-Telegram/internal/api/v1/handlers"
)

// HandlerContainer holds the handlers behind the v1 routes. The
// payments handler registers even without a configured gateway: the
// tariff list and the webhook keep working, only opening a payment
// answers 503.
type HandlerContainer struct {
	Jobs     *handlers.JobsHandler
	Users    *handlers.UsersHandler
	Payments *handlers.PaymentsHandler
}

// RegisterRoutes registers all v1 API routes
func RegisterRoutes(router *gin.RouterGroup, container *HandlerContainer) {
	jobs := router.Group("/jobs")
	{
		jobs.POST("", container.Jobs.Create)
	}

	users := router.Group("/users")
	{
		users.GET("/:id/balance", container.Users.GetBalance)
		users.GET("/:id/stats", container.Users.GetStats)
		users.GET("/:id/jobs", container.Users.GetJobs)
	}

	payments := router.Group("/payments")
	{
		payments.GET("/tariffs", container.Payments.Tariffs)
		payments.POST("", container.Payments.Create)
		payments.POST("/webhook", container.Payments.Webhook)
	}
}
