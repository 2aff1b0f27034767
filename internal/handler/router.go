package handler

import (
	"marketplace/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, cfg *config.Config) *gin.Engine {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// RequestID 最先执行，后面的中间件日志都能带上它
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(cfg.Auth))
	{
		market := api.Group("/market")
		{
			market.GET("/items", h.ListItems)
			market.GET("/items/:id", h.GetItem)
			market.GET("/featured", h.Featured)
			market.GET("/recommended", h.Recommended)
			market.POST("/buy", h.Buy)
			market.POST("/sell", h.Sell)
		}

		api.GET("/account", h.GetAccount)
		api.GET("/inventory", h.ListInventory)
		api.GET("/transactions", h.ListTransactions)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
