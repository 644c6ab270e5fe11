package http

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает gin-маршрутизатор API чекаута.
func NewRouter(handler *Handler, logger *log.Entry, releaseMode bool) *gin.Engine {
	if releaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/orders", handler.createOrder)
		v1.GET("/orders", handler.listOrders)
		v1.GET("/orders/:id", handler.getOrder)
		v1.GET("/orders/:id/timeline", handler.timeline)

		v1.POST("/orders/:id/items", handler.addItem)
		v1.PUT("/orders/:id/items", handler.setQuantity)
		v1.PUT("/orders/:id/address", handler.setAddress)
		v1.POST("/orders/:id/delivery", handler.selectDelivery)
		v1.POST("/orders/:id/payments", handler.selectPayment)
		v1.POST("/orders/:id/payments/:payment_id/retry", handler.retryPayment)
		v1.POST("/orders/:id/promotions", handler.applyPromotion)

		v1.POST("/orders/:id/confirm", handler.confirm)
		v1.POST("/orders/:id/complete", handler.complete)
		v1.POST("/orders/:id/cancel", handler.cancel)
		v1.POST("/orders/:id/return", handler.returnOrder)
		v1.POST("/orders/:id/partial-return", handler.partialReturn)

		v1.POST("/orders/:id/shipments/:shipment_id/ready", handler.shipmentReady)
		v1.POST("/orders/:id/shipments/:shipment_id/ship", handler.shipmentShipped)

		v1.POST("/webhooks/:provider", handler.webhook)
	}

	return router
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.WithFields(log.Fields{
			"method":      method,
			"path":        path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("http request")
	}
}
