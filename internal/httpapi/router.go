package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every ordering route registered.
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/health/payments", handlers.PaymentsHealth)

	orders := router.Group("/orders")
	{
		orders.POST("", handlers.CreateOrder)
		orders.GET("", handlers.ListOrders)
		orders.GET("/dashboard", handlers.Dashboard)
		orders.GET("/:id", handlers.GetOrder)
		orders.POST("/:id/pay", handlers.PayOrder)
		orders.POST("/:id/cancel", handlers.CancelOrder)
		orders.PATCH("/:id/status", handlers.UpdateStatus)
	}

	router.POST("/webhooks/payments", handlers.PaymentWebhook)

	return router
}
