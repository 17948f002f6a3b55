package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"api_ventas/internal/sales"
)

// RouterConfig carries the HTTP-level settings of the sales API.
type RouterConfig struct {
	CORSOrigins  []string
	WebhookRate  float64 // requests per second; 0 disables the limiter
	WebhookBurst int
	MaxBodyBytes int64
}

// InitRoutes registers the webhook, listing and health endpoints on the given Gin engine.
func InitRoutes(e *gin.Engine, salesService *sales.Service, logger *zap.Logger, cfg RouterConfig) {
	if logger == nil {
		logger = zap.NewNop()
	}
	salesHandler := NewSalesHandler(salesService, logger, cfg.MaxBodyBytes)

	e.Use(RequestLogger(logger), Recovery(logger), CORS(cfg.CORSOrigins))

	webhook := []gin.HandlerFunc{}
	if cfg.WebhookRate > 0 {
		burst := cfg.WebhookBurst
		if burst < 1 {
			burst = 1
		}
		webhook = append(webhook, RateLimit(rate.NewLimiter(rate.Limit(cfg.WebhookRate), burst), logger))
	}
	webhook = append(webhook, salesHandler.handleReceiveSale)

	e.POST("/webhook/venta", webhook...)
	e.GET("/api/ventas", salesHandler.handleListSales)
	e.GET("/health", handleHealth)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "route not found"})
	})
}
