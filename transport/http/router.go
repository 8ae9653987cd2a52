package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/config"
	"github.com/giovaborgogno/siwe-auth/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cfg *config.Store, logger *zap.Logger) *gin.Engine {
	router := gin.Default()

	handlers := NewAuthHandlers(authService, logger)

	auth := router.Group("/auth")
	auth.Use(CSRFMiddleware(cfg))
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
		auth.GET("/verify", AuthMiddleware(authService), handlers.Verify)
	}

	wallet := router.Group("/wallet")
	wallet.Use(AuthMiddleware(authService))
	{
		wallet.GET("/me", handlers.Me)
	}

	return router
}
