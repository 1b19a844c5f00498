package http

import (
	"github.com/gin-gonic/gin"

	"github.com/pricepilot/linkverify/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// Verification endpoints
	router.POST("/verify", handler.VerifyLink)
	router.POST("/verify-batch", handler.VerifyBatch)

	return router
}
